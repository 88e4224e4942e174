package db

import (
	"context"
	"encoding/json"

	"github.com/kimhsiao/likevault/internal/models"
)

// JobRepository is the persistence the scheduler needs.
type JobRepository interface {
	CreateJob(ctx context.Context, j *models.Job) error
	UpdateJobArgs(ctx context.Context, id string, args json.RawMessage) error
	DeleteJob(ctx context.Context, id string) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]*models.Job, error)
}

// SessionRepository stores sealed credentials.
type SessionRepository interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	PutSession(ctx context.Context, sess *models.Session) error
}

// FileRepository resolves and records content-addressed files.
type FileRepository interface {
	UpsertLocalFile(ctx context.Context, f *models.LocalFile) (*models.LocalFile, error)
	GetLocalFile(ctx context.Context, hash models.Hash) (*models.LocalFile, error)
	LatestFileForURL(ctx context.Context, url string) (*models.LocalFile, error)
}

// Ensure *Queries implements the interfaces at compile time.
var (
	_ JobRepository     = (*Queries)(nil)
	_ SessionRepository = (*Queries)(nil)
	_ FileRepository    = (*Queries)(nil)
	_ Querier           = stmtQuerier{}
)
