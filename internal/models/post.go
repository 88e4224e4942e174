package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// User is a post author, reply target or mentioned account.
type User struct {
	ID              string `db:"id" json:"id"`
	Username        string `db:"username" json:"username"`
	Name            string `db:"name" json:"name"`
	ProfileImageURL string `db:"profile_image_url" json:"profile_image_url,omitempty"`
	CreatedAt       int64  `db:"created_at" json:"created_at"`
	UpdatedAt       int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Post is an archived post.
type Post struct {
	ID            string  `db:"id" json:"id"`
	Text          string  `db:"text" json:"text"`
	CreatedAt     int64   `db:"created_at" json:"created_at"`
	AuthorID      string  `db:"author_id" json:"author_id"`
	ReplyToUserID *string `db:"reply_to_user_id" json:"reply_to_user_id,omitempty"`
	SourceID      *int64  `db:"source_id" json:"source_id,omitempty"`
	ArchivedAt    int64   `db:"archived_at" json:"archived_at"`

	Hashtags []PostHashtag `db:"-" json:"hashtags,omitempty"`
	Mentions []PostMention `db:"-" json:"mentions,omitempty"`
	Links    []PostLink    `db:"-" json:"links,omitempty"`
	MediaIDs []string      `db:"-" json:"media_ids,omitempty"`
}

// TableName returns the table name for Post.
func (Post) TableName() string {
	return "posts"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (p *Post) CreatedAtTime() time.Time {
	return time.Unix(p.CreatedAt, 0)
}

// Span is a half-open code-point range [Start, End) within a post's text.
type Span struct {
	Start int `db:"start" json:"start"`
	End   int `db:"end" json:"end"`
}

// PostHashtag annotates a hashtag occurrence.
type PostHashtag struct {
	Span
	Tag string `db:"tag" json:"tag"`
}

// PostMention annotates a mention. UserID is set when the account is known.
type PostMention struct {
	Span
	Username string  `db:"username" json:"username"`
	UserID   *string `db:"user_id" json:"user_id,omitempty"`
}

// PostLink annotates a link.
type PostLink struct {
	Span
	URL         string `db:"url" json:"url"`
	ExpandedURL string `db:"expanded_url" json:"expanded_url"`
	DisplayURL  string `db:"display_url" json:"display_url"`
}

// NormalizeTag returns the natural key a hashtag is stored under: case
// folded, without a leading '#'. A Caser is stateful, so one is built per
// call.
func NormalizeTag(tag string) string {
	return cases.Fold().String(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
