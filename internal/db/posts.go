package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/kimhsiao/likevault/internal/models"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// UpsertUser inserts or refreshes a user keyed by id. Usernames move between
// accounts on the source, so a username currently held by a different id is
// released first.
func (s *Queries) UpsertUser(ctx context.Context, u *models.User) error {
	now := time.Now().Unix()
	if u.Username != "" {
		if _, err := s.q.ExecContext(ctx,
			"UPDATE users SET username = NULL, updated_at = ? WHERE username = ? AND id != ?",
			now, u.Username, u.ID,
		); err != nil {
			return wrapErr(err, "release username")
		}
	}

	query := `
	INSERT INTO users (id, username, name, profile_image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		username = excluded.username,
		name = excluded.name,
		profile_image_url = excluded.profile_image_url,
		updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query, u.ID, nullString(u.Username), u.Name, u.ProfileImageURL, now, now)
	return wrapErr(err, "upsert user "+u.ID)
}

// EnsureUser inserts a user known only by reference. Existing rows, and
// rows whose username is taken, are left alone.
func (s *Queries) EnsureUser(ctx context.Context, u *models.User) error {
	now := time.Now().Unix()
	query := `
	INSERT INTO users (id, username, name, profile_image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, u.ID, nullString(u.Username), u.Name, u.ProfileImageURL, now, now)
	return wrapErr(err, "ensure user "+u.ID)
}

// GetUser retrieves a user by id.
func (s *Queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var username sql.NullString
	err := s.q.QueryRowContext(ctx,
		"SELECT id, username, name, profile_image_url, created_at, updated_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &username, &u.Name, &u.ProfileImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err, "get user "+id)
	}
	u.Username = username.String
	return &u, nil
}

// LookupSource returns the id for a client source name, creating it if new.
func (s *Queries) LookupSource(ctx context.Context, name string) (int64, error) {
	return s.lookupID(ctx, "sources", "name", name)
}

// LookupHashtag returns the id for a normalized tag, creating it if new.
func (s *Queries) LookupHashtag(ctx context.Context, tag string) (int64, error) {
	return s.lookupID(ctx, "hashtags", "tag", tag)
}

// InsertPostIfAbsent inserts p unless a post with the same id exists.
// Returns true when a row was written.
func (s *Queries) InsertPostIfAbsent(ctx context.Context, p *models.Post) (bool, error) {
	if p.ArchivedAt == 0 {
		p.ArchivedAt = time.Now().Unix()
	}
	query := `
	INSERT INTO posts (id, text, created_at, author_id, reply_to_user_id, source_id, archived_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query,
		p.ID, p.Text, p.CreatedAt, p.AuthorID, p.ReplyToUserID, p.SourceID, p.ArchivedAt)
	if err != nil {
		return false, wrapErr(err, "insert post "+p.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(err, "insert post "+p.ID)
	}
	return n > 0, nil
}

// PostExists reports whether a post with id is stored.
func (s *Queries) PostExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, "SELECT 1 FROM posts WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapErr(err, "post exists")
	}
	return true, nil
}

// InsertHashtag records a hashtag annotation; an existing range is kept.
func (s *Queries) InsertHashtag(ctx context.Context, postID string, span models.Span, hashtagID int64) error {
	query := `
	INSERT INTO post_hashtags (post_id, start_offset, end_offset, hashtag_id) VALUES (?, ?, ?, ?)
	ON CONFLICT(post_id, start_offset, end_offset) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, postID, span.Start, span.End, hashtagID)
	return wrapErr(err, "insert post hashtag")
}

// InsertMention records a mention annotation; an existing range is kept.
func (s *Queries) InsertMention(ctx context.Context, postID string, m models.PostMention) error {
	query := `
	INSERT INTO post_mentions (post_id, start_offset, end_offset, username, user_id) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(post_id, start_offset, end_offset) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, postID, m.Start, m.End, m.Username, m.UserID)
	return wrapErr(err, "insert post mention")
}

// InsertLink records a link annotation; an existing range is kept.
func (s *Queries) InsertLink(ctx context.Context, postID string, l models.PostLink) error {
	query := `
	INSERT INTO post_links (post_id, start_offset, end_offset, url, expanded_url, display_url)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(post_id, start_offset, end_offset) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, postID, l.Start, l.End, l.URL, l.ExpandedURL, l.DisplayURL)
	return wrapErr(err, "insert post link")
}

// GetPost retrieves a post with its annotations and media ids.
func (s *Queries) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	var replyTo sql.NullString
	var sourceID sql.NullInt64
	err := s.q.QueryRowContext(ctx, `
	SELECT id, text, created_at, author_id, reply_to_user_id, source_id, archived_at
	FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.Text, &p.CreatedAt, &p.AuthorID, &replyTo, &sourceID, &p.ArchivedAt)
	if err != nil {
		return nil, wrapErr(err, "get post "+id)
	}
	if replyTo.Valid {
		p.ReplyToUserID = &replyTo.String
	}
	if sourceID.Valid {
		p.SourceID = &sourceID.Int64
	}

	if err := s.loadHashtags(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.loadMentions(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.loadLinks(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.loadMediaIDs(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Queries) loadHashtags(ctx context.Context, p *models.Post) error {
	rows, err := s.q.QueryContext(ctx, `
	SELECT ph.start_offset, ph.end_offset, h.tag
	FROM post_hashtags ph JOIN hashtags h ON h.id = ph.hashtag_id
	WHERE ph.post_id = ? ORDER BY ph.start_offset`, p.ID)
	if err != nil {
		return wrapErr(err, "list post hashtags")
	}
	defer rows.Close()
	for rows.Next() {
		var h models.PostHashtag
		if err := rows.Scan(&h.Start, &h.End, &h.Tag); err != nil {
			return wrapErr(err, "scan post hashtag")
		}
		p.Hashtags = append(p.Hashtags, h)
	}
	return wrapErr(rows.Err(), "list post hashtags")
}

func (s *Queries) loadMentions(ctx context.Context, p *models.Post) error {
	rows, err := s.q.QueryContext(ctx, `
	SELECT start_offset, end_offset, username, user_id
	FROM post_mentions WHERE post_id = ? ORDER BY start_offset`, p.ID)
	if err != nil {
		return wrapErr(err, "list post mentions")
	}
	defer rows.Close()
	for rows.Next() {
		var m models.PostMention
		var userID sql.NullString
		if err := rows.Scan(&m.Start, &m.End, &m.Username, &userID); err != nil {
			return wrapErr(err, "scan post mention")
		}
		if userID.Valid {
			id := userID.String
			m.UserID = &id
		}
		p.Mentions = append(p.Mentions, m)
	}
	return wrapErr(rows.Err(), "list post mentions")
}

func (s *Queries) loadLinks(ctx context.Context, p *models.Post) error {
	rows, err := s.q.QueryContext(ctx, `
	SELECT start_offset, end_offset, url, expanded_url, display_url
	FROM post_links WHERE post_id = ? ORDER BY start_offset`, p.ID)
	if err != nil {
		return wrapErr(err, "list post links")
	}
	defer rows.Close()
	for rows.Next() {
		var l models.PostLink
		if err := rows.Scan(&l.Start, &l.End, &l.URL, &l.ExpandedURL, &l.DisplayURL); err != nil {
			return wrapErr(err, "scan post link")
		}
		p.Links = append(p.Links, l)
	}
	return wrapErr(rows.Err(), "list post links")
}

func (s *Queries) loadMediaIDs(ctx context.Context, p *models.Post) error {
	rows, err := s.q.QueryContext(ctx,
		"SELECT media_id FROM post_media WHERE post_id = ? ORDER BY position", p.ID)
	if err != nil {
		return wrapErr(err, "list post media")
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return wrapErr(err, "scan post media")
		}
		p.MediaIDs = append(p.MediaIDs, id)
	}
	return wrapErr(rows.Err(), "list post media")
}
