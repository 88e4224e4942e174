package db

import (
	"context"
	"time"

	"github.com/kimhsiao/likevault/internal/models"
)

// GetSession retrieves a sealed credential by session id.
func (s *Queries) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.q.QueryRowContext(ctx,
		"SELECT id, credential, updated_at FROM sessions WHERE id = ?", id,
	).Scan(&sess.ID, &sess.Credential, &sess.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err, "get session "+id)
	}
	return &sess, nil
}

// PutSession creates or replaces the sealed credential for a session id.
func (s *Queries) PutSession(ctx context.Context, sess *models.Session) error {
	sess.UpdatedAt = time.Now().Unix()
	query := `
	INSERT INTO sessions (id, credential, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET credential = excluded.credential, updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query, sess.ID, sess.Credential, sess.UpdatedAt)
	return wrapErr(err, "put session "+sess.ID)
}
