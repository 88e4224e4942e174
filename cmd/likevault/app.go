package main

import (
	"context"
	"os"

	"github.com/kimhsiao/likevault/internal/config"
	"github.com/kimhsiao/likevault/internal/crypto"
	"github.com/kimhsiao/likevault/internal/db"
	"github.com/kimhsiao/likevault/internal/download"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/jobs"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/session"
	"github.com/kimhsiao/likevault/internal/source"
	"github.com/kimhsiao/likevault/internal/source/twitter"
	"github.com/kimhsiao/likevault/internal/storage"
	"github.com/kimhsiao/likevault/internal/storage/mirror"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg       *config.Config
	database  *db.DB
	repo      *db.Repository
	sessions  *session.Store
	scheduler *jobs.Scheduler
}

// initLogging configures the global logger from cfg. Console output goes
// to stderr so command output stays clean.
func initLogging(cfg *config.Config) {
	logging.Init(logging.Options{
		Level:      logging.ParseLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Out:        os.Stderr,
	})
}

// openApp opens the database, applies migrations and wires the pipeline.
// sources overrides the Twitter adapter when non-nil.
func openApp(ctx context.Context, cfg *config.Config, sources source.Factory) (*app, error) {
	database, err := db.OpenPath(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database.DB); err != nil {
		database.Close()
		return nil, err
	}
	repo := db.NewRepository(database.DB)

	a := &app{cfg: cfg, database: database, repo: repo}
	if err := a.wire(ctx, sources); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, sources source.Factory) error {
	secret := []byte(a.cfg.Secret)
	if len(secret) == 0 {
		secret = crypto.MachineSecret()
	}
	sealer, err := crypto.NewSealer(secret)
	if err != nil {
		return err
	}
	a.sessions = session.NewStore(a.repo, sealer)

	m, err := mirror.New(a.cfg.Mirror)
	if err != nil {
		return err
	}
	opts := storage.Options{
		FilesDir:    a.cfg.FilesDir,
		TempDir:     a.cfg.TempDir,
		Concurrency: a.cfg.Download.Concurrency,
		Retries:     a.cfg.Download.Retries,
		RetryDelay:  a.cfg.Download.RetryDelay,
		Timeout:     a.cfg.Download.Timeout,
	}
	if m != nil {
		opts.Mirror = m
	}
	store, err := storage.New(a.repo, opts)
	if err != nil {
		return err
	}

	if sources == nil {
		sources = twitter.NewFactory(twitter.Options{
			BaseURL:       a.cfg.Twitter.BaseURL,
			TokenURL:      a.cfg.Twitter.TokenURL,
			ClientID:      a.cfg.Twitter.ClientID,
			ClientSecret:  a.cfg.Twitter.ClientSecret,
			PageSize:      a.cfg.Twitter.PageSize,
			RequestsPer15: a.cfg.Twitter.RequestsPer15,
			Timeout:       a.cfg.Twitter.Timeout,
		})
	}

	a.scheduler = jobs.New(ctx, a.repo)
	a.scheduler.Register(download.JobType, download.NewHandler(a.repo.DB(), store, a.sessions, sources, a.cfg.Download.Concurrency))
	a.scheduler.Subscribe(logEvent)
	return nil
}

// logEvent reports every terminated job.
func logEvent(ev jobs.Event) {
	fields := map[string]interface{}{
		"job_id":   ev.Job.ID,
		"job_type": string(ev.Job.Type),
	}
	if ev.Kind == jobs.EventFailed {
		fields["action"] = failureAction(ev.Err)
		logging.Error("Job failed", ev.Err, fields)
		return
	}
	logging.Info("Job completed", fields)
}

// failureAction tells the operator what a failed job needs. The row is
// kept in every case.
func failureAction(err error) string {
	switch {
	case apperrors.IsTransient(err):
		return "retry on next run"
	case apperrors.IsFatal(err):
		return "needs inspection"
	case apperrors.Is(err, apperrors.ErrSourceAuthExpired), apperrors.Is(err, apperrors.ErrCredentialMissing):
		return "store a new session"
	default:
		return "retry on next run"
	}
}

// drain waits for the scheduler to go idle, stopping it early when ctx is
// cancelled. Interrupted jobs keep their rows and resume on the next run.
func (a *app) drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("Interrupted, stopping scheduler", nil)
		a.scheduler.Stop()
		<-done
	}
}

// Close stops the scheduler and releases the database.
func (a *app) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if err := a.repo.Close(); err != nil {
		a.database.Close()
		return err
	}
	return a.database.Close()
}
