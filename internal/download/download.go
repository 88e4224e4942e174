// Package download implements the job that archives a user's liked posts.
package download

import (
	"context"
	"database/sql"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/kimhsiao/likevault/internal/db"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/importer"
	"github.com/kimhsiao/likevault/internal/jobs"
	"github.com/kimhsiao/likevault/internal/likes"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
	"github.com/kimhsiao/likevault/internal/source"
)

// JobType is the scheduler type for this job.
const JobType models.JobType = "download_likes"

// Args are the persisted job arguments. Cursor is advanced in the same
// transaction as each page's writes. Exhausted is set once pagination has
// ended, so a restart goes straight to promotion.
type Args struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Cursor    string `json:"cursor,omitempty"`
	Exhausted bool   `json:"exhausted,omitempty"`
}

// ForUser matches active jobs downloading userID's likes.
func ForUser(userID string) func(*models.Job) bool {
	return func(j *models.Job) bool {
		if j.Type != JobType {
			return false
		}
		var a Args
		return jobs.DecodeArgs(j, &a) == nil && a.UserID == userID
	}
}

// Fetcher resolves a media URL to a stored file.
type Fetcher interface {
	FetchOrReuse(ctx context.Context, url string) (*models.LocalFile, error)
}

// Credentials loads and persists source tokens.
type Credentials interface {
	Load(ctx context.Context, id string) (*oauth2.Token, error)
	Save(ctx context.Context, id string, tok *oauth2.Token) error
}

// Handler runs download_likes jobs.
type Handler struct {
	conn        *sql.DB
	files       Fetcher
	sessions    Credentials
	sources     source.Factory
	concurrency int
}

var _ jobs.Handler = (*Handler)(nil)

// NewHandler creates a Handler. concurrency bounds parallel media
// downloads per page.
func NewHandler(conn *sql.DB, files Fetcher, sessions Credentials, sources source.Factory, concurrency int) *Handler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Handler{
		conn:        conn,
		files:       files,
		sessions:    sessions,
		sources:     sources,
		concurrency: concurrency,
	}
}

// Run pages through the user's likes from the persisted cursor. Each page
// is committed atomically with the advanced cursor, so an interrupted job
// resumes at the first uncommitted page. Staged likes are promoted once
// pagination ends, including on a restart after pagination had ended.
func (h *Handler) Run(ctx context.Context, job *models.Job) error {
	var args Args
	if err := jobs.DecodeArgs(job, &args); err != nil {
		return err
	}
	if args.UserID == "" || args.SessionID == "" {
		return apperrors.Newf(apperrors.ErrInvalid, "job %s: user_id and session_id are required", job.ID)
	}

	if !args.Exhausted {
		if err := h.paginate(ctx, job.ID, args); err != nil {
			return err
		}
	} else {
		logging.Info("Pagination already complete, promoting", map[string]interface{}{
			"job_id":  job.ID,
			"user_id": args.UserID,
		})
	}

	_, err := likes.Promote(ctx, h.conn, job.ID)
	return err
}

// paginate fetches and commits pages until the source has no more or a page
// is already fully archived. The job's args end up marked Exhausted.
func (h *Handler) paginate(ctx context.Context, jobID string, args Args) error {
	tok, err := h.sessions.Load(ctx, args.SessionID)
	if err != nil {
		return err
	}
	src, err := h.sources(ctx, tok)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"job_id":  jobID,
		"user_id": args.UserID,
	}
	reader := db.NewQueries(h.conn)
	pages := 0

	for !args.Exhausted {
		page, fetchErr := src.FetchLikedPostsPage(ctx, args.UserID, args.Cursor)
		// A refresh may have happened even if the fetch then failed.
		if tok, err = h.persistToken(ctx, args.SessionID, tok, src); err != nil {
			return err
		}
		if fetchErr != nil {
			return fetchErr
		}

		if len(page.Posts) > 0 {
			done, err := likes.AllLiked(ctx, reader, args.UserID, page.PostIDs())
			if err != nil {
				return err
			}
			if done {
				logging.Info("Reached archived likes, stopping", fields)
				args.Exhausted = true
				raw, err := jobs.EncodeArgs(args)
				if err != nil {
					return err
				}
				return reader.UpdateJobArgs(ctx, jobID, raw)
			}
		}

		files, err := h.downloadMedia(ctx, page)
		if err != nil {
			return err
		}

		next := args
		next.Cursor = page.NextCursor
		next.Exhausted = page.NextCursor == ""
		if err := h.commitPage(ctx, jobID, next, page, files); err != nil {
			return err
		}
		args = next
		pages++

		logging.Info("Committed page", map[string]interface{}{
			"job_id":  jobID,
			"user_id": args.UserID,
			"posts":   len(page.Posts),
			"page":    pages,
		})
	}
	return nil
}

// persistToken saves the source's current token when it differs from prev.
func (h *Handler) persistToken(ctx context.Context, sessionID string, prev *oauth2.Token, src source.Source) (*oauth2.Token, error) {
	cur, err := src.Token()
	if err != nil {
		logging.Warn("Could not read source credential", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return prev, nil
	}
	if !source.TokenChanged(prev, cur) {
		return prev, nil
	}
	if err := h.sessions.Save(ctx, sessionID, cur); err != nil {
		return prev, err
	}
	logging.Info("Persisted refreshed credential", map[string]interface{}{"session_id": sessionID})
	return cur, nil
}

// downloadMedia stores every media item of page. Work is submitted newest
// post first so recent content gets download slots first.
func (h *Handler) downloadMedia(ctx context.Context, page *source.Page) (map[string]*models.LocalFile, error) {
	type task struct{ key, url string }
	var tasks []task
	seen := make(map[string]bool)
	for _, post := range page.Posts {
		for _, m := range post.Media {
			if seen[m.Key] {
				continue
			}
			seen[m.Key] = true
			url := importer.SelectVariant(m)
			if url == "" {
				return nil, apperrors.Newf(apperrors.ErrSourceMalformed, "post %s: media %s has no url", post.ID, m.Key)
			}
			tasks = append(tasks, task{key: m.Key, url: url})
		}
	}

	var mu sync.Mutex
	files := make(map[string]*models.LocalFile, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			f, err := h.files.FetchOrReuse(gctx, t.url)
			if err != nil {
				return err
			}
			mu.Lock()
			files[t.key] = f
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// commitPage writes a page's entities, its staged likes and the advanced
// cursor in one transaction.
func (h *Handler) commitPage(ctx context.Context, jobID string, next Args, page *source.Page, files map[string]*models.LocalFile) error {
	raw, err := jobs.EncodeArgs(next)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, h.conn, func(q *db.Queries) error {
		for _, post := range page.Posts {
			if _, err := importer.UpsertPost(ctx, q, post, files); err != nil {
				return err
			}
		}
		if _, err := likes.Stage(ctx, q, jobID, next.UserID, page.PostIDs()); err != nil {
			return err
		}
		return q.UpdateJobArgs(ctx, jobID, raw)
	})
}
