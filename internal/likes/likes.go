// Package likes maintains the chronological like ledger.
//
// Sources return likes newest first, page by page. A job appends each page's
// likes to a staging area in that order, inside the page transaction. When
// the job has seen every page, Promote replays the staging rows from the
// highest index down, which is oldest first, into the ledger. The ledger's
// insertion order is the like chronology.
package likes

import (
	"context"
	"database/sql"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/kimhsiao/likevault/internal/db"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
)

// Stage appends postIDs, given newest to oldest, to jobID's staging area.
// q should be bound to the page transaction.
func Stage(ctx context.Context, q *db.Queries, jobID, userID string, postIDs []string) ([]models.LikeStaging, error) {
	out := make([]models.LikeStaging, 0, len(postIDs))
	for _, id := range postIDs {
		ls, err := q.InsertStaging(ctx, jobID, userID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *ls)
	}
	return out, nil
}

// Promote moves every staged like of jobID into the ledger, oldest first,
// and clears the staging area in the same transaction. Likes already in the
// ledger keep their position. Returns the number of new ledger rows.
func Promote(ctx context.Context, conn *sql.DB, jobID string) (int, error) {
	var inserted int
	err := db.WithTx(ctx, conn, func(q *db.Queries) error {
		staged, err := q.ListStagingDesc(ctx, jobID)
		if err != nil {
			return err
		}
		for _, ls := range staged {
			ok, err := q.InsertLikeIfAbsent(ctx, ls.UserID, ls.PostID)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		_, err = q.DeleteStaging(ctx, jobID)
		return err
	})
	if err != nil {
		return 0, err
	}

	logging.Info("Promoted staged likes", map[string]interface{}{
		"job_id":   jobID,
		"inserted": inserted,
	})
	return inserted, nil
}

// AllLiked reports whether every one of postIDs is already in userID's
// ledger. An empty list is never "all liked".
func AllLiked(ctx context.Context, q *db.Queries, userID string, postIDs []string) (bool, error) {
	if len(postIDs) == 0 {
		return false, nil
	}
	unique := uniqueIDs(postIDs)
	n, err := q.CountLikedAmong(ctx, userID, unique)
	if err != nil {
		return false, err
	}
	return n == len(unique), nil
}

// Ledger returns userID's likes oldest first. limit <= 0 returns all.
func Ledger(ctx context.Context, q *db.Queries, userID string, limit int) ([]models.Like, error) {
	return q.ListLikes(ctx, userID, limit)
}

// uniqueIDs drops repeated ids, keeping first occurrences in order.
func uniqueIDs(ids []string) []string {
	seen := mapset.NewThreadUnsafeSetWithSize[string](len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen.Add(id) {
			out = append(out, id)
		}
	}
	return out
}
