package models

import "time"

// LocalFile is a downloaded blob, keyed by its content hash.
// Rows are created once per distinct hash and never mutated.
type LocalFile struct {
	Hash      Hash   `db:"hash" json:"hash"`
	Size      int64  `db:"size" json:"size"`
	Extension string `db:"extension" json:"extension"`
	MimeType  string `db:"mime_type" json:"mime_type"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for LocalFile.
func (LocalFile) TableName() string {
	return "local_files"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (f *LocalFile) CreatedAtTime() time.Time {
	return time.Unix(f.CreatedAt, 0)
}
