package db

import (
	"context"
	"time"

	"github.com/kimhsiao/likevault/internal/models"
)

// InsertStaging appends a staging row. Rows for a job are written in
// observation order, so idx ascending is newest like first.
func (s *Queries) InsertStaging(ctx context.Context, jobID, userID, postID string) (*models.LikeStaging, error) {
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO like_staging (user_id, post_id, job_id) VALUES (?, ?, ?)",
		userID, postID, jobID)
	if err != nil {
		return nil, wrapErr(err, "insert like staging")
	}
	idx, err := res.LastInsertId()
	if err != nil {
		return nil, wrapErr(err, "insert like staging")
	}
	return &models.LikeStaging{Index: idx, UserID: userID, PostID: postID, JobID: jobID}, nil
}

// ListStagingDesc returns a job's staging rows by idx descending, which is
// oldest like first.
func (s *Queries) ListStagingDesc(ctx context.Context, jobID string) ([]models.LikeStaging, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT idx, user_id, post_id, job_id FROM like_staging WHERE job_id = ? ORDER BY idx DESC", jobID)
	if err != nil {
		return nil, wrapErr(err, "list like staging")
	}
	defer rows.Close()

	var out []models.LikeStaging
	for rows.Next() {
		var ls models.LikeStaging
		if err := rows.Scan(&ls.Index, &ls.UserID, &ls.PostID, &ls.JobID); err != nil {
			return nil, wrapErr(err, "scan like staging")
		}
		out = append(out, ls)
	}
	return out, wrapErr(rows.Err(), "list like staging")
}

// DeleteStaging removes all staging rows for a job.
func (s *Queries) DeleteStaging(ctx context.Context, jobID string) (int64, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM like_staging WHERE job_id = ?", jobID)
	if err != nil {
		return 0, wrapErr(err, "delete like staging")
	}
	n, err := res.RowsAffected()
	return n, wrapErr(err, "delete like staging")
}

// InsertLikeIfAbsent appends (userID, postID) to the ledger unless present.
// Returns true when a row was written.
func (s *Queries) InsertLikeIfAbsent(ctx context.Context, userID, postID string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?)",
		userID, postID, time.Now().Unix())
	if err != nil {
		return false, wrapErr(err, "insert like")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(err, "insert like")
	}
	return n > 0, nil
}

// CountLikedAmong returns how many of postIDs are in the user's ledger.
func (s *Queries) CountLikedAmong(ctx context.Context, userID string, postIDs []string) (int, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(postIDs)+1)
	args = append(args, userID)
	for _, id := range postIDs {
		args = append(args, id)
	}
	query := "SELECT COUNT(DISTINCT post_id) FROM likes WHERE user_id = ? AND post_id IN (" + placeholders(len(postIDs)) + ")"

	var n int
	err := s.q.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, wrapErr(err, "count liked")
}

// ListLikes returns a user's ledger in chronological order, oldest first.
// limit <= 0 returns everything.
func (s *Queries) ListLikes(ctx context.Context, userID string, limit int) ([]models.Like, error) {
	query := "SELECT idx, user_id, post_id, created_at FROM likes WHERE user_id = ? ORDER BY idx ASC"
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err, "list likes")
	}
	defer rows.Close()

	var out []models.Like
	for rows.Next() {
		var l models.Like
		if err := rows.Scan(&l.Index, &l.UserID, &l.PostID, &l.CreatedAt); err != nil {
			return nil, wrapErr(err, "scan like")
		}
		out = append(out, l)
	}
	return out, wrapErr(rows.Err(), "list likes")
}
