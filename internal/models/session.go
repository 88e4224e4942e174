package models

// Session holds a sealed OAuth credential for one signed-in user.
type Session struct {
	ID         string `db:"id" json:"id"`
	Credential string `db:"credential" json:"-"`
	UpdatedAt  int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}
