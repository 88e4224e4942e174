// Package source defines the contract for paginated liked-post sources.
package source

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/kimhsiao/likevault/internal/models"
)

// User is an account as reported by the source.
type User struct {
	ID              string
	Username        string
	Name            string
	ProfileImageURL string
}

// Variant is one encoding of a video or animated gif.
type Variant struct {
	Bitrate     int
	ContentType string
	URL         string
}

// Media is an attachment. URL is set for photos; videos and gifs carry
// Variants instead.
type Media struct {
	Key      string
	Type     models.MediaType
	URL      string
	Variants []Variant
}

// Hashtag, Mention and Link are entity annotations over code-point ranges.
type Hashtag struct {
	models.Span
	Tag string
}

type Mention struct {
	models.Span
	Username string
	UserID   string
}

type Link struct {
	models.Span
	URL         string
	ExpandedURL string
	DisplayURL  string
}

// Entities groups a post's annotations.
type Entities struct {
	Hashtags []Hashtag
	Mentions []Mention
	Links    []Link
}

// Post is one liked post with everything needed to archive it.
type Post struct {
	ID          string
	Text        string
	CreatedAt   time.Time
	Author      User
	ReplyToUser *User
	Source      string
	Media       []Media
	Entities    Entities
	// MentionedUsers are resolved accounts for Entities.Mentions.
	MentionedUsers []User
}

// Page is one response of liked posts, newest first. An empty NextCursor
// means no further pages.
type Page struct {
	Posts      []Post
	NextCursor string
}

// PostIDs returns the page's post ids in source order.
func (p *Page) PostIDs() []string {
	ids := make([]string, len(p.Posts))
	for i, post := range p.Posts {
		ids[i] = post.ID
	}
	return ids
}

// Source fetches a user's liked posts. Errors carry the SOURCE_* codes from
// internal/errors.
type Source interface {
	FetchLikedPostsPage(ctx context.Context, userID, cursor string) (*Page, error)
	// Token returns the credential currently in use, which may have been
	// refreshed by the previous call.
	Token() (*oauth2.Token, error)
}

// Factory builds a Source from a stored credential.
type Factory func(ctx context.Context, token *oauth2.Token) (Source, error)

// TokenChanged reports whether next differs from prev in any field that
// would need persisting.
func TokenChanged(prev, next *oauth2.Token) bool {
	if prev == nil || next == nil {
		return prev != next
	}
	return prev.AccessToken != next.AccessToken ||
		prev.RefreshToken != next.RefreshToken ||
		!prev.Expiry.Equal(next.Expiry)
}
