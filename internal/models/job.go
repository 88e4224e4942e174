package models

import (
	"encoding/json"
	"time"
)

// JobType identifies the handler a job is dispatched to.
type JobType string

// Job is a durable, resumable unit of work. Args is handler-specific JSON
// and carries the resumption cursor.
type Job struct {
	ID        string          `db:"id" json:"id"`
	Type      JobType         `db:"type" json:"type"`
	Args      json.RawMessage `db:"args" json:"args"`
	CreatedAt int64           `db:"created_at" json:"created_at"`
	UpdatedAt int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (j *Job) CreatedAtTime() time.Time {
	return time.Unix(j.CreatedAt, 0)
}

// Clone returns a deep copy so callers cannot mutate queued state.
func (j *Job) Clone() *Job {
	c := *j
	c.Args = append(json.RawMessage(nil), j.Args...)
	return &c
}
