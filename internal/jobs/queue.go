package jobs

import (
	"sync"
	"time"

	"github.com/kimhsiao/likevault/internal/models"
)

// QueueStatus is the in-memory state of an admitted job.
type QueueStatus string

const (
	QueueStatusQueued  QueueStatus = "queued"
	QueueStatusRunning QueueStatus = "running"
)

// QueueItem is a job admitted to the run queue.
type QueueItem struct {
	Job        *models.Job
	Status     QueueStatus
	AdmittedAt time.Time
}

// runQueue is the FIFO of admitted jobs. The running item stays at the
// head until it is finished.
type runQueue struct {
	mu    sync.Mutex
	items []*QueueItem
}

func newRunQueue() *runQueue {
	return &runQueue{}
}

// push admits job unless a job with the same id is already admitted.
func (q *runQueue) push(job *models.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Job.ID == job.ID {
			return false
		}
	}
	q.items = append(q.items, &QueueItem{Job: job, Status: QueueStatusQueued, AdmittedAt: time.Now()})
	return true
}

// next marks the oldest queued item running and returns it, or nil.
func (q *runQueue) next() *QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Status == QueueStatusQueued {
			item.Status = QueueStatusRunning
			return item
		}
	}
	return nil
}

// finish removes the item for id.
func (q *runQueue) finish(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.Job.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// drop removes every item that is not running.
func (q *runQueue) drop() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	dropped := 0
	for _, item := range q.items {
		if item.Status == QueueStatusRunning {
			kept = append(kept, item)
		} else {
			dropped++
		}
	}
	q.items = kept
	return dropped
}

// snapshot returns copies of the admitted items in order.
func (q *runQueue) snapshot() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueItem, len(q.items))
	for i, item := range q.items {
		out[i] = QueueItem{Job: item.Job.Clone(), Status: item.Status, AdmittedAt: item.AdmittedAt}
	}
	return out
}
