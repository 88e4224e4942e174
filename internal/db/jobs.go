package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kimhsiao/likevault/internal/models"
)

// CreateJob persists a new job row. CreatedAt/UpdatedAt default to now.
func (s *Queries) CreateJob(ctx context.Context, j *models.Job) error {
	now := time.Now().Unix()
	if j.CreatedAt == 0 {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if len(j.Args) == 0 {
		j.Args = json.RawMessage("{}")
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO jobs (id, type, args, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		j.ID, string(j.Type), string(j.Args), j.CreatedAt, j.UpdatedAt)
	return wrapErr(err, "create job "+j.ID)
}

// UpdateJobArgs replaces a job's args, typically to advance its cursor.
func (s *Queries) UpdateJobArgs(ctx context.Context, id string, args json.RawMessage) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE jobs SET args = ?, updated_at = ? WHERE id = ?",
		string(args), time.Now().Unix(), id)
	if err != nil {
		return wrapErr(err, "update job "+id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "update job "+id)
	}
	if n == 0 {
		return wrapErr(sql.ErrNoRows, "update job "+id)
	}
	return nil
}

// DeleteJob removes a job row. Deleting a missing row is not an error.
func (s *Queries) DeleteJob(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	return wrapErr(err, "delete job "+id)
}

func scanJob(scan func(dest ...interface{}) error) (*models.Job, error) {
	var j models.Job
	var typ, args string
	if err := scan(&j.ID, &typ, &args, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Type = models.JobType(typ)
	j.Args = json.RawMessage(args)
	return &j, nil
}

// GetJob retrieves a job by id.
func (s *Queries) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, type, args, created_at, updated_at FROM jobs WHERE id = ?", id)
	j, err := scanJob(row.Scan)
	if err != nil {
		return nil, wrapErr(err, "get job "+id)
	}
	return j, nil
}

// ListJobs returns every persisted job, oldest first.
func (s *Queries) ListJobs(ctx context.Context) ([]*models.Job, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, type, args, created_at, updated_at FROM jobs ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, wrapErr(err, "list jobs")
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, wrapErr(err, "scan job")
		}
		out = append(out, j)
	}
	return out, wrapErr(rows.Err(), "list jobs")
}
