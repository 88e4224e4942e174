package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/avast/retry-go"
	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
)

// sniffLen is how much of the body is kept for type detection.
const sniffLen = 3072

const (
	fallbackMime = "application/octet-stream"
	fallbackExt  = "bin"
)

type download struct {
	tempPath string
	hash     models.Hash
	size     int64
	mime     string
	ext      string
}

// headBuffer keeps the first max bytes written to it and discards the rest.
type headBuffer struct {
	buf bytes.Buffer
	max int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.max - h.buf.Len(); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf.Write(p[:room])
	}
	return len(p), nil
}

// statusError is a non-2xx response. 4xx is not retried.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code >= 500 || se.code == 429
	}
	return true
}

func (s *Store) download(ctx context.Context, url string) (*download, error) {
	var dl *download
	err := retry.Do(
		func() error {
			var err error
			dl, err = s.attempt(ctx, url)
			return err
		},
		retry.Context(ctx),
		retry.RetryIf(retryable),
		retry.Attempts(s.retries),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.Warn("Retrying download", map[string]interface{}{
				"url":     url,
				"attempt": n + 1,
				"error":   err.Error(),
			})
		}),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDownloadFailed, "download "+url, err)
	}
	return dl, nil
}

// attempt streams one GET into a temp file. Hashing, writing and type
// sniffing all consume the same single pass over the body.
func (s *Store) attempt(ctx context.Context, url string) (*download, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &statusError{code: resp.StatusCode()}
	}

	tmp, err := os.CreateTemp(s.tempDir, "download-*")
	if err != nil {
		return nil, err
	}
	tempPath := tmp.Name()

	var h hash.Hash = sha256.New()
	head := &headBuffer{max: sniffLen}
	size, err := io.Copy(io.MultiWriter(tmp, h, head), body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	mime, ext := detect(head.buf.Bytes())
	dl := &download{tempPath: tempPath, size: size, mime: mime, ext: ext}
	copy(dl.hash[:], h.Sum(nil))
	return dl, nil
}

// detect classifies content from its leading bytes.
func detect(head []byte) (string, string) {
	m := mimetype.Detect(head)
	mime := m.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	ext := strings.TrimPrefix(m.Extension(), ".")
	if mime == "" || ext == "" {
		return fallbackMime, fallbackExt
	}
	return mime, ext
}
