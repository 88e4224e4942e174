// Package db tests for repository operations.
package db

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/models"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(setupTestDB(t).DB)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedPost(t *testing.T, repo *Repository, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.UpsertUser(ctx, &models.User{ID: "author", Username: "author"}))
	_, err := repo.InsertPostIfAbsent(ctx, &models.Post{ID: id, Text: "text " + id, CreatedAt: 1, AuthorID: "author"})
	require.NoError(t, err)
}

func seedJob(t *testing.T, repo *Repository, id string) {
	t.Helper()
	require.NoError(t, repo.CreateJob(context.Background(), &models.Job{ID: id, Type: "download_likes"}))
}

// =====================================================
// LocalFile / Media Tests
// =====================================================

// TestUpsertLocalFile_dedup verifies one row per hash with the first row winning.
func TestUpsertLocalFile_dedup(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	h := models.Hash(sha256.Sum256([]byte("content")))

	first, err := repo.UpsertLocalFile(ctx, &models.LocalFile{Hash: h, Size: 7, Extension: "jpg", MimeType: "image/jpeg", CreatedAt: 100})
	require.NoError(t, err)
	second, err := repo.UpsertLocalFile(ctx, &models.LocalFile{Hash: h, Size: 7, Extension: "png", MimeType: "image/png", CreatedAt: 200})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "jpg", second.Extension)
	assert.Equal(t, int64(100), second.CreatedAt)

	n, err := repo.Count(ctx, "local_files")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestGetLocalFile_notFound verifies the NotFound code.
func TestGetLocalFile_notFound(t *testing.T) {
	repo := setupTestRepo(t)
	_, err := repo.GetLocalFile(context.Background(), models.Hash{1})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

// TestLatestFileForURL verifies the newest media row for a url wins.
func TestLatestFileForURL(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	old := models.Hash(sha256.Sum256([]byte("old")))
	newer := models.Hash(sha256.Sum256([]byte("new")))
	for _, h := range []models.Hash{old, newer} {
		_, err := repo.UpsertLocalFile(ctx, &models.LocalFile{Hash: h, Size: 3, Extension: "bin", MimeType: "application/octet-stream"})
		require.NoError(t, err)
	}

	_, err := repo.UpsertMedia(ctx, &models.Media{ID: "m1", Type: models.MediaPhoto, URL: "https://x/a.jpg", LocalFileHash: old, CreatedAt: 10})
	require.NoError(t, err)
	_, err = repo.UpsertMedia(ctx, &models.Media{ID: "m2", Type: models.MediaPhoto, URL: "https://x/a.jpg", LocalFileHash: newer, CreatedAt: 20})
	require.NoError(t, err)

	f, err := repo.LatestFileForURL(ctx, "https://x/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, newer, f.Hash)

	_, err = repo.LatestFileForURL(ctx, "https://x/missing.jpg")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

// TestUpsertMedia_keepsFile verifies an existing media row is not rebound.
func TestUpsertMedia_keepsFile(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	a := models.Hash(sha256.Sum256([]byte("a")))
	b := models.Hash(sha256.Sum256([]byte("b")))
	for _, h := range []models.Hash{a, b} {
		_, err := repo.UpsertLocalFile(ctx, &models.LocalFile{Hash: h, Size: 1, Extension: "bin", MimeType: "application/octet-stream"})
		require.NoError(t, err)
	}

	_, err := repo.UpsertMedia(ctx, &models.Media{ID: "m", Type: models.MediaVideo, URL: "u1", LocalFileHash: a})
	require.NoError(t, err)
	got, err := repo.UpsertMedia(ctx, &models.Media{ID: "m", Type: models.MediaVideo, URL: "u2", LocalFileHash: b})
	require.NoError(t, err)

	assert.Equal(t, a, got.LocalFileHash)
	assert.Equal(t, "u1", got.URL)

	n, err := repo.CountMediaForFile(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestUpsertMedia_missingFile verifies the foreign key maps to storage integrity.
func TestUpsertMedia_missingFile(t *testing.T) {
	repo := setupTestRepo(t)
	_, err := repo.UpsertMedia(context.Background(), &models.Media{ID: "m", Type: models.MediaPhoto, URL: "u", LocalFileHash: models.Hash{9}})
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageIntegrity))
}

// =====================================================
// User / Post Tests
// =====================================================

// TestUpsertUser_usernameMoves verifies a username held by another id is released.
func TestUpsertUser_usernameMoves(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, &models.User{ID: "1", Username: "alice", Name: "Alice"}))
	require.NoError(t, repo.UpsertUser(ctx, &models.User{ID: "2", Username: "alice", Name: "New Alice"}))

	u1, err := repo.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "", u1.Username)

	u2, err := repo.GetUser(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "alice", u2.Username)

	require.NoError(t, repo.UpsertUser(ctx, &models.User{ID: "2", Username: "alice2", Name: "Renamed"}))
	u2, err = repo.GetUser(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "alice2", u2.Username)
	assert.Equal(t, "Renamed", u2.Name)
}

// TestInsertPostIfAbsent verifies existing posts are retained.
func TestInsertPostIfAbsent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertUser(ctx, &models.User{ID: "a"}))

	created, err := repo.InsertPostIfAbsent(ctx, &models.Post{ID: "p", Text: "first", CreatedAt: 1, AuthorID: "a"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.InsertPostIfAbsent(ctx, &models.Post{ID: "p", Text: "second", CreatedAt: 2, AuthorID: "a"})
	require.NoError(t, err)
	assert.False(t, created)

	p, err := repo.GetPost(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "first", p.Text)
	assert.Nil(t, p.ReplyToUserID)

	exists, err := repo.PostExists(ctx, "p")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.PostExists(ctx, "q")
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestPostAnnotations verifies annotations are unique per range.
func TestPostAnnotations(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedPost(t, repo, "p")

	tagID, err := repo.LookupHashtag(ctx, "go")
	require.NoError(t, err)
	again, err := repo.LookupHashtag(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, tagID, again)

	span := models.Span{Start: 0, End: 3}
	require.NoError(t, repo.InsertHashtag(ctx, "p", span, tagID))
	require.NoError(t, repo.InsertHashtag(ctx, "p", span, tagID))
	require.NoError(t, repo.InsertMention(ctx, "p", models.PostMention{Span: models.Span{Start: 4, End: 8}, Username: "bob"}))
	require.NoError(t, repo.InsertLink(ctx, "p", models.PostLink{Span: models.Span{Start: 9, End: 20}, URL: "https://t.co/x"}))

	p, err := repo.GetPost(ctx, "p")
	require.NoError(t, err)
	require.Len(t, p.Hashtags, 1)
	assert.Equal(t, "go", p.Hashtags[0].Tag)
	require.Len(t, p.Mentions, 1)
	assert.Nil(t, p.Mentions[0].UserID)
	require.Len(t, p.Links, 1)
	assert.Equal(t, "https://t.co/x", p.Links[0].URL)
}

// =====================================================
// Likes Tests
// =====================================================

// TestStagingAndLedger verifies staging order and ledger uniqueness.
func TestStagingAndLedger(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedPost(t, repo, "a")
	seedPost(t, repo, "b")
	seedJob(t, repo, "j")

	_, err := repo.InsertStaging(ctx, "j", "u", "a")
	require.NoError(t, err)
	_, err = repo.InsertStaging(ctx, "j", "u", "b")
	require.NoError(t, err)

	staged, err := repo.ListStagingDesc(ctx, "j")
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.Equal(t, "b", staged[0].PostID)
	assert.Equal(t, "a", staged[1].PostID)

	ok, err := repo.InsertLikeIfAbsent(ctx, "u", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.InsertLikeIfAbsent(ctx, "u", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.CountLikedAmong(ctx, "u", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err := repo.DeleteStaging(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

// TestInsertStaging_unknownJob verifies staging requires a job row.
func TestInsertStaging_unknownJob(t *testing.T) {
	repo := setupTestRepo(t)
	seedPost(t, repo, "a")
	_, err := repo.InsertStaging(context.Background(), "missing", "u", "a")
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageIntegrity))
}

// =====================================================
// Job / Session Tests
// =====================================================

// TestJobs verifies job CRUD and ordering.
func TestJobs(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateJob(ctx, &models.Job{ID: "b", Type: "t", CreatedAt: 2}))
	require.NoError(t, repo.CreateJob(ctx, &models.Job{ID: "a", Type: "t", CreatedAt: 1}))

	jobs, err := repo.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.JSONEq(t, `{}`, string(jobs[0].Args))

	require.NoError(t, repo.UpdateJobArgs(ctx, "a", json.RawMessage(`{"cursor":"c1"}`)))
	j, err := repo.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cursor":"c1"}`, string(j.Args))

	err = repo.UpdateJobArgs(ctx, "zzz", json.RawMessage(`{}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, repo.DeleteJob(ctx, "a"))
	require.NoError(t, repo.DeleteJob(ctx, "a"))
	_, err = repo.GetJob(ctx, "a")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

// TestSessions verifies put replaces the credential.
func TestSessions(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutSession(ctx, &models.Session{ID: "s", Credential: "one"}))
	require.NoError(t, repo.PutSession(ctx, &models.Session{ID: "s", Credential: "two"}))

	sess, err := repo.GetSession(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "two", sess.Credential)
}

// TestWithTx_rollback verifies a failing callback leaves nothing behind.
func TestWithTx_rollback(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(q *Queries) error {
		if err := q.UpsertUser(ctx, &models.User{ID: "u"}); err != nil {
			return err
		}
		_, err := q.InsertPostIfAbsent(ctx, &models.Post{ID: "p", AuthorID: "missing"})
		return err
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageIntegrity))

	n, err := repo.Count(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestEnsureUser verifies references never overwrite known users.
func TestEnsureUser(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, &models.User{ID: "1", Username: "alice", Name: "Alice"}))
	require.NoError(t, repo.EnsureUser(ctx, &models.User{ID: "1"}))
	require.NoError(t, repo.EnsureUser(ctx, &models.User{ID: "2"}))

	u, err := repo.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Alice", u.Name)

	_, err = repo.GetUser(ctx, "2")
	require.NoError(t, err)
}
