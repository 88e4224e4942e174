package db

import (
	"fmt"
	"strings"

	"github.com/kimhsiao/likevault/internal/models"
)

// Filter is a single search condition over the posts table aliased as p.
type Filter interface {
	Valid() bool
	SQL() string
	Args() []interface{}
}

// AuthorFilter matches posts by author id.
type AuthorFilter struct {
	AuthorID string
}

func (f *AuthorFilter) Valid() bool         { return f.AuthorID != "" }
func (f *AuthorFilter) SQL() string         { return "p.author_id = ?" }
func (f *AuthorFilter) Args() []interface{} { return []interface{}{f.AuthorID} }

// DateRangeFilter matches posts created within [From, To]. Zero means open.
type DateRangeFilter struct {
	From int64
	To   int64
}

// Valid checks if the date range is valid.
func (f *DateRangeFilter) Valid() bool {
	if f.From < 0 || f.To < 0 {
		return false
	}
	if f.From > 0 && f.To > 0 && f.From > f.To {
		return false
	}
	return f.From > 0 || f.To > 0
}

// SQL returns the SQL fragment for date range filtering.
func (f *DateRangeFilter) SQL() string {
	var parts []string
	if f.From > 0 {
		parts = append(parts, "p.created_at >= ?")
	}
	if f.To > 0 {
		parts = append(parts, "p.created_at <= ?")
	}
	return strings.Join(parts, " AND ")
}

// Args returns the arguments for date range filtering.
func (f *DateRangeFilter) Args() []interface{} {
	var args []interface{}
	if f.From > 0 {
		args = append(args, f.From)
	}
	if f.To > 0 {
		args = append(args, f.To)
	}
	return args
}

// HashtagFilter matches posts carrying any of the given tags. Tags are
// normalized the way they are stored.
type HashtagFilter struct {
	Tags []string
}

// Valid checks that at least one non-blank tag is present.
func (f *HashtagFilter) Valid() bool {
	return len(f.Args()) > 0
}

// SQL returns an EXISTS over the hashtag annotations.
func (f *HashtagFilter) SQL() string {
	return `EXISTS (SELECT 1 FROM post_hashtags ph JOIN hashtags h ON h.id = ph.hashtag_id
		WHERE ph.post_id = p.id AND h.tag IN (` + placeholders(len(f.Args())) + `))`
}

// Args returns the non-blank tags in their stored form.
func (f *HashtagFilter) Args() []interface{} {
	var args []interface{}
	for _, tag := range f.Tags {
		if tag = models.NormalizeTag(tag); tag != "" {
			args = append(args, tag)
		}
	}
	return args
}

// LikedByFilter restricts results to a user's ledger.
type LikedByFilter struct {
	UserID string
}

func (f *LikedByFilter) Valid() bool { return f.UserID != "" }
func (f *LikedByFilter) SQL() string {
	return "EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = ?)"
}
func (f *LikedByFilter) Args() []interface{} { return []interface{}{f.UserID} }

// FilterBuilder builds SQL filter conditions from multiple filters.
type FilterBuilder struct {
	filters []Filter
}

// NewFilterBuilder creates a new FilterBuilder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// Add appends f when it is valid.
func (fb *FilterBuilder) Add(f Filter) *FilterBuilder {
	if f.Valid() {
		fb.filters = append(fb.filters, f)
	}
	return fb
}

// Author adds an author filter.
func (fb *FilterBuilder) Author(id string) *FilterBuilder {
	return fb.Add(&AuthorFilter{AuthorID: id})
}

// DateRange adds a date range filter.
func (fb *FilterBuilder) DateRange(from, to int64) *FilterBuilder {
	return fb.Add(&DateRangeFilter{From: from, To: to})
}

// Hashtags adds a hashtag filter.
func (fb *FilterBuilder) Hashtags(tags ...string) *FilterBuilder {
	return fb.Add(&HashtagFilter{Tags: tags})
}

// LikedBy adds a ledger filter.
func (fb *FilterBuilder) LikedBy(userID string) *FilterBuilder {
	return fb.Add(&LikedByFilter{UserID: userID})
}

// HasFilters returns true if any filters have been added.
func (fb *FilterBuilder) HasFilters() bool {
	return len(fb.filters) > 0
}

// Build returns the AND-joined SQL fragment and its arguments.
func (fb *FilterBuilder) Build() (string, []interface{}) {
	if !fb.HasFilters() {
		return "", nil
	}
	var sqlParts []string
	var args []interface{}
	for _, filter := range fb.filters {
		sqlParts = append(sqlParts, filter.SQL())
		args = append(args, filter.Args()...)
	}
	return strings.Join(sqlParts, " AND "), args
}

// String returns a string representation of the filters (for debugging).
func (fb *FilterBuilder) String() string {
	if !fb.HasFilters() {
		return "(no filters)"
	}
	var parts []string
	for _, filter := range fb.filters {
		parts = append(parts, fmt.Sprintf("%T", filter))
	}
	return strings.Join(parts, ", ")
}

// ValidateDateRange validates a date range.
func ValidateDateRange(from, to int64) error {
	if from < 0 || to < 0 || (from > 0 && to > 0 && from > to) {
		return fmt.Errorf("invalid date range: from=%d, to=%d", from, to)
	}
	return nil
}
