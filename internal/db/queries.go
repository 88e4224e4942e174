package db

import (
	"context"
	"fmt"
)

// Queries groups the per-table operations. Built on a *sql.Tx inside
// WithTx, or on the *sql.DB for standalone reads and writes.
type Queries struct {
	q Querier
}

// NewQueries binds operations to q.
func NewQueries(q Querier) *Queries {
	return &Queries{q: q}
}

var countableTables = map[string]bool{
	"jobs": true, "local_files": true, "media": true, "users": true,
	"sources": true, "posts": true, "post_media": true, "hashtags": true,
	"post_hashtags": true, "post_mentions": true, "post_links": true,
	"like_staging": true, "likes": true, "sessions": true,
	"file_extensions": true, "mime_types": true,
}

// Count returns the number of rows in a known table.
func (s *Queries) Count(ctx context.Context, table string) (int, error) {
	if !countableTables[table] {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, wrapErr(err, "count "+table)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
