// Package storage provides the content-addressed file store for downloaded media.
package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/kimhsiao/likevault/internal/db"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
)

// Uploader receives every newly stored file. Failures are logged only.
type Uploader interface {
	Upload(ctx context.Context, key, path, contentType string) error
}

// Options configures a Store.
type Options struct {
	FilesDir    string
	TempDir     string
	Concurrency int
	Retries     uint
	RetryDelay  time.Duration
	Timeout     time.Duration
	Mirror      Uploader
}

// Store keeps one file per content hash under
// FilesDir/{hash[0:2]}/{hash[2:4]}/{hash}.
type Store struct {
	filesDir   string
	tempDir    string
	files      db.FileRepository
	client     *resty.Client
	sem        *semaphore.Weighted
	retries    uint
	retryDelay time.Duration
	mirror     Uploader
}

// New creates a Store and its directories. files must not be bound to a
// transaction: downloads run outside the page transaction.
func New(files db.FileRepository, opts Options) (*Store, error) {
	for _, dir := range []string{opts.FilesDir, opts.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Retries == 0 {
		opts.Retries = 1
	}

	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &Store{
		filesDir:   opts.FilesDir,
		tempDir:    opts.TempDir,
		files:      files,
		client:     client,
		sem:        semaphore.NewWeighted(int64(opts.Concurrency)),
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		mirror:     opts.Mirror,
	}, nil
}

// RelPath returns the hash's location relative to the files root.
func RelPath(hash models.Hash) string {
	h := hash.Hex()
	return filepath.Join(h[0:2], h[2:4], h)
}

// Path returns the absolute path a hash is stored at.
func (s *Store) Path(hash models.Hash) string {
	return filepath.Join(s.filesDir, RelPath(hash))
}

// Exists reports whether the file for hash is present on disk.
func (s *Store) Exists(hash models.Hash) bool {
	_, err := os.Stat(s.Path(hash))
	return err == nil
}

// FetchOrReuse returns the LocalFile for url, downloading it only when no
// stored media already points at a present, intact file for the same url.
func (s *Store) FetchOrReuse(ctx context.Context, url string) (*models.LocalFile, error) {
	existing, err := s.files.LatestFileForURL(ctx, url)
	switch {
	case err == nil && s.Exists(existing.Hash):
		verr := s.Verify(existing.Hash)
		if verr == nil {
			logging.Debug("Reusing stored file", map[string]interface{}{
				"url":  url,
				"hash": existing.Hash.Hex(),
			})
			return existing, nil
		}
		if !apperrors.Is(verr, apperrors.ErrStorageIntegrity) {
			return nil, verr
		}
		logging.Warn("Stored file failed verification, downloading again", map[string]interface{}{
			"url":  url,
			"hash": existing.Hash.Hex(),
		})
	case err != nil && !apperrors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDownloadFailed, "download cancelled", err)
	}
	defer s.sem.Release(1)

	dl, err := s.download(ctx, url)
	if err != nil {
		return nil, err
	}

	created, err := s.place(dl)
	if err != nil {
		return nil, err
	}

	file, err := s.files.UpsertLocalFile(ctx, &models.LocalFile{
		Hash:      dl.hash,
		Size:      dl.size,
		Extension: dl.ext,
		MimeType:  dl.mime,
	})
	if err != nil {
		return nil, err
	}

	logging.Info("Stored file", map[string]interface{}{
		"url":  url,
		"hash": file.Hash.Hex(),
		"size": file.Size,
		"mime": file.MimeType,
		"new":  created,
	})

	// Upload skips objects already mirrored, so a file whose earlier upload
	// failed is offered again whenever it is downloaded.
	if s.mirror != nil {
		if err := s.mirror.Upload(ctx, filepath.ToSlash(RelPath(file.Hash)), s.Path(file.Hash), file.MimeType); err != nil {
			logging.Warn("Mirror upload failed", map[string]interface{}{
				"hash":  file.Hash.Hex(),
				"error": err.Error(),
			})
		}
	}
	return file, nil
}

// place moves a completed download to its content address. An existing file
// that verifies is kept and the download discarded; one that does not is
// replaced.
func (s *Store) place(dl *download) (bool, error) {
	target := s.Path(dl.hash)
	if s.Exists(dl.hash) {
		err := s.Verify(dl.hash)
		if err == nil {
			os.Remove(dl.tempPath)
			return false, nil
		}
		if !apperrors.Is(err, apperrors.ErrStorageIntegrity) {
			os.Remove(dl.tempPath)
			return false, err
		}
		logging.Warn("Replacing corrupt stored file", map[string]interface{}{"hash": dl.hash.Hex()})
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		os.Remove(dl.tempPath)
		return false, pkgerrors.Wrap(err, "failed to create storage directory")
	}
	if err := moveFile(dl.tempPath, target); err != nil {
		os.Remove(dl.tempPath)
		return false, apperrors.Wrap(apperrors.ErrDownloadFailed, "failed to place file", err)
	}
	return true, nil
}

// Open returns the stored file contents after verifying they still hash to
// the expected value.
func (s *Store) Open(hash models.Hash) (io.ReadCloser, error) {
	if err := s.Verify(hash); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(hash))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open stored file")
	}
	return f, nil
}

// Verify recomputes the digest of the stored file for hash.
func (s *Store) Verify(hash models.Hash) error {
	f, err := os.Open(s.Path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.Wrap(apperrors.ErrNotFound, "content not found", err)
		}
		return pkgerrors.Wrap(err, "failed to open stored file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return pkgerrors.Wrap(err, "failed to read stored file")
	}
	var got models.Hash
	copy(got[:], h.Sum(nil))
	if got != hash {
		return apperrors.New(apperrors.ErrStorageIntegrity,
			fmt.Sprintf("hash mismatch: expected %s, got %s", hash.Hex(), got.Hex()))
	}
	return nil
}
