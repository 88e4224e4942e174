// Package mirror copies stored files to an S3-compatible bucket.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	pkgerrors "github.com/pkg/errors"

	"github.com/kimhsiao/likevault/internal/config"
	"github.com/kimhsiao/likevault/internal/logging"
)

// Mirror uploads files under their content-addressed key.
type Mirror struct {
	client *minio.Client
	bucket string

	retries    uint
	retryDelay time.Duration

	mu    sync.Mutex
	ready bool
}

// New returns a Mirror for cfg, or nil when mirroring is not configured.
func New(cfg config.MirrorConfig) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create mirror client")
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 1
	}
	return &Mirror{client: client, bucket: cfg.Bucket, retries: retries, retryDelay: cfg.RetryDelay}, nil
}

// ensureBucket creates the bucket on first successful use. A failed check
// is repeated by the next call.
func (m *Mirror) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check mirror bucket")
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return pkgerrors.Wrap(err, "failed to create mirror bucket")
		}
		logging.Info("Created mirror bucket", map[string]interface{}{"bucket": m.bucket})
	}
	m.ready = true
	return nil
}

// Upload puts the file at path under key, retrying failed attempts.
// Objects are immutable, so an existing key is left alone.
func (m *Mirror) Upload(ctx context.Context, key, path, contentType string) error {
	if m == nil {
		return nil
	}
	return retry.Do(
		func() error { return m.upload(ctx, key, path, contentType) },
		retry.Context(ctx),
		retry.Attempts(m.retries),
		retry.Delay(m.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.Warn("Retrying mirror upload", map[string]interface{}{
				"key":     key,
				"attempt": n + 1,
				"error":   err.Error(),
			})
		}),
	)
}

func (m *Mirror) upload(ctx context.Context, key, path, contentType string) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err == nil {
		return nil
	}
	info, err := m.client.FPutObject(ctx, m.bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to upload %s", key)
	}
	logging.Debug("Mirrored file", map[string]interface{}{
		"bucket": m.bucket,
		"key":    key,
		"size":   info.Size,
	})
	return nil
}
