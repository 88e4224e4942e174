package db

import (
	"context"
	"time"

	"github.com/kimhsiao/likevault/internal/models"
)

// UpsertMedia inserts m keyed by its external id. An existing row keeps its
// original file reference and is returned as stored.
func (s *Queries) UpsertMedia(ctx context.Context, m *models.Media) (*models.Media, error) {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().Unix()
	}
	query := `
	INSERT INTO media (id, type, url, local_file_hash, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, m.ID, string(m.Type), m.URL, m.LocalFileHash, m.CreatedAt); err != nil {
		return nil, wrapErr(err, "insert media "+m.ID)
	}
	return s.GetMedia(ctx, m.ID)
}

// GetMedia retrieves a media row by id.
func (s *Queries) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	var m models.Media
	var typ string
	err := s.q.QueryRowContext(ctx,
		"SELECT id, type, url, local_file_hash, created_at FROM media WHERE id = ?", id,
	).Scan(&m.ID, &typ, &m.URL, &m.LocalFileHash, &m.CreatedAt)
	if err != nil {
		return nil, wrapErr(err, "get media "+id)
	}
	m.Type = models.MediaType(typ)
	return &m, nil
}

// LinkPostMedia attaches a media item to a post at a position.
func (s *Queries) LinkPostMedia(ctx context.Context, postID, mediaID string, position int) error {
	query := `
	INSERT INTO post_media (post_id, media_id, position) VALUES (?, ?, ?)
	ON CONFLICT(post_id, media_id) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, postID, mediaID, position)
	return wrapErr(err, "link post media")
}

// CountMediaForFile returns how many media rows reference a file.
func (s *Queries) CountMediaForFile(ctx context.Context, hash models.Hash) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM media WHERE local_file_hash = ?", hash).Scan(&n)
	return n, wrapErr(err, "count media for file")
}
