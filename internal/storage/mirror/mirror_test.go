// Package mirror tests for the S3-compatible file mirror.
package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/likevault/internal/config"
)

// TestNew_disabled verifies an unconfigured mirror is nil and a no-op.
func TestNew_disabled(t *testing.T) {
	m, err := New(config.MirrorConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, m.Upload(context.Background(), "ab/cd/abcd", "/nonexistent", "image/png"))
}

// TestNew_enabled verifies a configured mirror builds a client without dialing.
func TestNew_enabled(t *testing.T) {
	m, err := New(config.MirrorConfig{
		Endpoint:  "localhost:9000",
		Bucket:    "likes",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "likes", m.bucket)
}

// s3Stub answers the bucket, stat and put requests a mirror upload makes.
type s3Stub struct {
	*httptest.Server
	mu            sync.Mutex
	bucketChecks  int
	bucketDenials int
	puts          int
	putFailures   int
}

func newS3Stub(t *testing.T) *s3Stub {
	s := &s3Stub{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case r.Method == http.MethodHead && strings.TrimSuffix(r.URL.Path, "/") == "/likes":
			s.bucketChecks++
			if s.bucketDenials > 0 {
				s.bucketDenials--
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			s.puts++
			if s.putFailures > 0 {
				s.putFailures--
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *s3Stub) mirror(t *testing.T, retries uint) *Mirror {
	t.Helper()
	m, err := New(config.MirrorConfig{
		Endpoint:   strings.TrimPrefix(s.URL, "http://"),
		Bucket:     "likes",
		AccessKey:  "key",
		SecretKey:  "secret",
		Region:     "us-east-1",
		Retries:    retries,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return m
}

func writeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	return path
}

// TestUpload_bucketCheckRepeatedAfterFailure verifies one failed bucket
// check does not disable the mirror.
func TestUpload_bucketCheckRepeatedAfterFailure(t *testing.T) {
	s := newS3Stub(t)
	s.bucketDenials = 1
	m := s.mirror(t, 1)
	path := writeFile(t)
	ctx := context.Background()

	require.Error(t, m.Upload(ctx, "ab/cd/abcd", path, "text/plain"))
	require.NoError(t, m.Upload(ctx, "ab/cd/abcd", path, "text/plain"))
	require.NoError(t, m.Upload(ctx, "ab/cd/ef01", path, "text/plain"))

	assert.Equal(t, 2, s.bucketChecks)
	assert.Equal(t, 2, s.puts)
}

// TestUpload_retriesFailedPut verifies a rejected upload is attempted again.
func TestUpload_retriesFailedPut(t *testing.T) {
	s := newS3Stub(t)
	s.putFailures = 1
	m := s.mirror(t, 3)

	require.NoError(t, m.Upload(context.Background(), "ab/cd/abcd", writeFile(t), "text/plain"))
	assert.Equal(t, 2, s.puts)
}
