// Package jobs runs durable, resumable jobs one at a time.
package jobs

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/kimhsiao/likevault/internal/db"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
	"github.com/kimhsiao/likevault/internal/uuid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler executes one job. It persists its own progress, typically the
// cursor in job.Args, and returns nil only when the job is finished.
type Handler interface {
	Run(ctx context.Context, job *models.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *models.Job) error

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, job *models.Job) error {
	return f(ctx, job)
}

// EventKind tells observers how a job ended.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is published after every job terminates.
type Event struct {
	Kind EventKind
	Job  *models.Job
	Err  error
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running string
	Queued  int
	Stopped bool
}

// Scheduler owns the run queue and its single worker. A job that succeeds
// is deleted; a job that fails keeps its row and is picked up again by the
// next Restore, never within the same run.
type Scheduler struct {
	repo     db.JobRepository
	queue    *runQueue
	handlers map[models.JobType]Handler

	mu        sync.Mutex
	idle      *sync.Cond
	ctx       context.Context
	working   bool
	stopped   bool
	observers []func(Event)
}

// New creates a Scheduler. Handlers run with ctx; cancelling it aborts the
// running job, which then fails and keeps its row.
func New(ctx context.Context, repo db.JobRepository) *Scheduler {
	s := &Scheduler{
		repo:     repo,
		queue:    newRunQueue(),
		handlers: make(map[models.JobType]Handler),
		ctx:      ctx,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Register binds a handler to a job type. Register before Enqueue or Restore.
func (s *Scheduler) Register(jobType models.JobType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = h
}

// Subscribe adds an observer called after every job terminates, on the
// worker goroutine.
func (s *Scheduler) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Enqueue persists a new job with args encoded as JSON and admits it.
func (s *Scheduler) Enqueue(ctx context.Context, jobType models.JobType, args interface{}) (*models.Job, error) {
	s.mu.Lock()
	_, known := s.handlers[jobType]
	stopped := s.stopped
	s.mu.Unlock()
	if !known {
		return nil, apperrors.Newf(apperrors.ErrUnknownJobType, "unknown job type %q", jobType)
	}
	if stopped {
		return nil, apperrors.New(apperrors.ErrInvalid, "scheduler is stopped")
	}

	raw, err := EncodeArgs(args)
	if err != nil {
		return nil, err
	}
	job := &models.Job{ID: uuid.New(), Type: jobType, Args: raw}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	logging.Info("Job enqueued", map[string]interface{}{
		"job_id":   job.ID,
		"job_type": string(job.Type),
	})
	s.admit(job)
	return job.Clone(), nil
}

// Restore admits every persisted job, oldest first. Call once at startup.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	jobs, err := s.repo.ListJobs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range jobs {
		if s.admit(job) {
			n++
		}
	}
	if n > 0 {
		logging.Info("Restored jobs", map[string]interface{}{"count": n})
	}
	return n, nil
}

// admit adds job to the run queue and starts the worker if it is idle.
func (s *Scheduler) admit(job *models.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.queue.push(job) {
		return false
	}
	if !s.working {
		s.working = true
		go s.work()
	}
	return true
}

// IsActive reports whether a running or queued job matches pred. Only the
// in-memory queue is consulted.
func (s *Scheduler) IsActive(pred func(*models.Job) bool) bool {
	for _, item := range s.queue.snapshot() {
		if pred(item.Job) {
			return true
		}
	}
	return false
}

// Status returns the running job id and the number waiting.
func (s *Scheduler) Status() Status {
	st := Status{}
	for _, item := range s.queue.snapshot() {
		if item.Status == QueueStatusRunning {
			st.Running = item.Job.ID
		} else {
			st.Queued++
		}
	}
	s.mu.Lock()
	st.Stopped = s.stopped
	s.mu.Unlock()
	return st
}

// Wait blocks until the queue is empty and no job is running.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.working {
		s.idle.Wait()
	}
}

// Stop stops admitting jobs, drops queued ones (their rows remain for the
// next Restore) and waits for the running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if n := s.queue.drop(); n > 0 {
		logging.Info("Dropped queued jobs on stop", map[string]interface{}{"count": n})
	}
	s.Wait()
	logging.Info("Job scheduler stopped", nil)
}

// work is the single worker: it runs admitted jobs strictly in order.
func (s *Scheduler) work() {
	for {
		item := s.queue.next()
		if item == nil {
			s.mu.Lock()
			// Re-check under the lock: admit may have pushed after next.
			if item = s.queue.next(); item == nil {
				s.working = false
				s.idle.Broadcast()
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
		s.run(item.Job)
		s.queue.finish(item.Job.ID)
	}
}

func (s *Scheduler) run(job *models.Job) {
	s.mu.Lock()
	h, ok := s.handlers[job.Type]
	s.mu.Unlock()

	fields := map[string]interface{}{
		"job_id":   job.ID,
		"job_type": string(job.Type),
	}
	logging.Info("Job started", fields)

	var err error
	if !ok {
		err = apperrors.Newf(apperrors.ErrUnknownJobType, "no handler for job type %q", job.Type)
	} else {
		err = s.dispatch(h, job)
	}

	if err == nil {
		// A failed delete leaves a finished job behind; rerunning it is
		// harmless, so it is reported but the work stands.
		if err = s.repo.DeleteJob(s.ctx, job.ID); err == nil {
			logging.Info("Job completed", fields)
			s.publish(Event{Kind: EventCompleted, Job: job.Clone()})
			return
		}
	}

	logging.Error("Job failed", err, fields)
	s.publish(Event{Kind: EventFailed, Job: job.Clone(), Err: err})
}

// dispatch runs h, converting a panic into an error.
func (s *Scheduler) dispatch(h Handler, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.ErrInternal, fmt.Sprintf("job panicked: %v", r))
		}
	}()
	return h.Run(s.ctx, job.Clone())
}

func (s *Scheduler) publish(ev Event) {
	s.mu.Lock()
	observers := append([]func(Event){}, s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// DecodeArgs unmarshals a job's args into v.
func DecodeArgs(job *models.Job, v interface{}) error {
	if err := json.Unmarshal(job.Args, v); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "failed to decode args for job "+job.ID, err)
	}
	return nil
}

// EncodeArgs marshals v for storage in a job's args.
func EncodeArgs(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to encode job args", err)
	}
	return raw, nil
}
