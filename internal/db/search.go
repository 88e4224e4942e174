package db

import (
	"context"
	"database/sql"
	"strings"

	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
)

// SearchOptions contains parameters for post search.
type SearchOptions struct {
	// Query is the FTS5 match expression (required)
	Query string

	// Limit is the maximum number of results (default: 20, max: 100)
	Limit int

	AuthorID string
	Hashtags []string
	LikedBy  string
	DateFrom int64
	DateTo   int64

	// SnippetTokens bounds the snippet length (default: 16, max: 64)
	SnippetTokens int
}

// SearchResult is a matching post with a highlighted excerpt.
type SearchResult struct {
	Post    *models.Post
	Snippet string
}

// SearchResponse contains search results and metadata.
type SearchResponse struct {
	Results []*SearchResult
	Total   int
	Query   string
}

// Filters converts the options to a FilterBuilder.
func (o *SearchOptions) Filters() *FilterBuilder {
	return NewFilterBuilder().
		Author(o.AuthorID).
		Hashtags(o.Hashtags...).
		LikedBy(o.LikedBy).
		DateRange(o.DateFrom, o.DateTo)
}

// SearchPosts runs a BM25-ranked full-text query over archived post text.
// Matches are wrapped in [ and ] in the snippet.
func (s *Queries) SearchPosts(ctx context.Context, opts *SearchOptions) (*SearchResponse, error) {
	if opts == nil || strings.TrimSpace(opts.Query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "search query is required")
	}
	if err := ValidateDateRange(opts.DateFrom, opts.DateTo); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid search filter", err)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	tokens := opts.SnippetTokens
	if tokens <= 0 {
		tokens = 16
	}
	if tokens > 64 {
		tokens = 64
	}

	filters := opts.Filters()
	logging.Debug("Searching posts", map[string]interface{}{
		"query":   opts.Query,
		"filters": filters.String(),
		"limit":   limit,
	})

	where := "posts_fts MATCH ?"
	filterSQL, filterArgs := filters.Build()
	if filterSQL != "" {
		where += " AND " + filterSQL
	}
	from := `
	FROM posts p
	INNER JOIN posts_fts ON posts_fts.rowid = p.rowid
	WHERE ` + where

	args := append([]interface{}{tokens, opts.Query}, filterArgs...)
	args = append(args, limit)
	rows, err := s.q.QueryContext(ctx, `
	SELECT p.id, p.text, p.created_at, p.author_id, p.reply_to_user_id, p.source_id, p.archived_at,
		snippet(posts_fts, 0, '[', ']', '...', ?)`+from+`
	ORDER BY rank LIMIT ?`, args...)
	if err != nil {
		return nil, wrapErr(err, "search posts")
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var p models.Post
		var replyTo sql.NullString
		var sourceID sql.NullInt64
		var snippet string
		if err := rows.Scan(&p.ID, &p.Text, &p.CreatedAt, &p.AuthorID, &replyTo, &sourceID, &p.ArchivedAt, &snippet); err != nil {
			return nil, wrapErr(err, "scan search result")
		}
		if replyTo.Valid {
			p.ReplyToUserID = &replyTo.String
		}
		if sourceID.Valid {
			p.SourceID = &sourceID.Int64
		}
		results = append(results, &SearchResult{Post: &p, Snippet: snippet})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "search posts")
	}

	var total int
	countArgs := append([]interface{}{opts.Query}, filterArgs...)
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*)"+from, countArgs...).Scan(&total); err != nil {
		return nil, wrapErr(err, "count search results")
	}

	return &SearchResponse{Results: results, Total: total, Query: opts.Query}, nil
}
