package models

// Like is a row in the permanent ledger. Index order is like chronology,
// oldest first.
type Like struct {
	Index     int64  `db:"idx" json:"idx"`
	UserID    string `db:"user_id" json:"user_id"`
	PostID    string `db:"post_id" json:"post_id"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Like.
func (Like) TableName() string {
	return "likes"
}

// LikeStaging is a like observed by a running job, in observation order
// (newest first). Rows are consumed by promotion.
type LikeStaging struct {
	Index  int64  `db:"idx" json:"idx"`
	UserID string `db:"user_id" json:"user_id"`
	PostID string `db:"post_id" json:"post_id"`
	JobID  string `db:"job_id" json:"job_id"`
}

// TableName returns the table name for LikeStaging.
func (LikeStaging) TableName() string {
	return "like_staging"
}
