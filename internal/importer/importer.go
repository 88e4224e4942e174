// Package importer writes fetched posts and their entities into the archive.
package importer

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/kimhsiao/likevault/internal/db"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/models"
	"github.com/kimhsiao/likevault/internal/source"
)

// NormalizeTag returns the natural key a hashtag is stored under.
func NormalizeTag(tag string) string {
	return models.NormalizeTag(tag)
}

// SelectVariant returns the URL to download for m: the photo URL, or the
// highest-bitrate variant for videos and gifs.
func SelectVariant(m source.Media) string {
	if m.Type == models.MediaPhoto || len(m.Variants) == 0 {
		return m.URL
	}
	best := m.Variants[0]
	for _, v := range m.Variants[1:] {
		if v.Bitrate > best.Bitrate {
			best = v
		}
	}
	return best.URL
}

// UpsertPost records post with its author, reply target, source, media and
// annotations. files maps media keys to already stored files and must cover
// every media item. Every write is connect-or-create so re-importing the
// same post changes nothing. q should be bound to the page transaction.
func UpsertPost(ctx context.Context, q *db.Queries, post source.Post, files map[string]*models.LocalFile) (*models.Post, error) {
	known := mapset.NewThreadUnsafeSet[string]()

	upsert := func(u source.User) error {
		if u.ID == "" {
			return apperrors.Newf(apperrors.ErrSourceMalformed, "post %s references a user without id", post.ID)
		}
		m := &models.User{ID: u.ID, Username: u.Username, Name: u.Name, ProfileImageURL: u.ProfileImageURL}
		var err error
		if u.Username == "" {
			err = q.EnsureUser(ctx, m)
		} else {
			err = q.UpsertUser(ctx, m)
		}
		if err != nil {
			return err
		}
		known.Add(u.ID)
		return nil
	}

	if err := upsert(post.Author); err != nil {
		return nil, err
	}
	row := &models.Post{
		ID:        post.ID,
		Text:      post.Text,
		CreatedAt: post.CreatedAt.Unix(),
		AuthorID:  post.Author.ID,
	}
	if post.ReplyToUser != nil {
		if err := upsert(*post.ReplyToUser); err != nil {
			return nil, err
		}
		id := post.ReplyToUser.ID
		row.ReplyToUserID = &id
	}
	for _, u := range post.MentionedUsers {
		if err := upsert(u); err != nil {
			return nil, err
		}
	}
	if post.Source != "" {
		id, err := q.LookupSource(ctx, post.Source)
		if err != nil {
			return nil, err
		}
		row.SourceID = &id
	}

	if _, err := q.InsertPostIfAbsent(ctx, row); err != nil {
		return nil, err
	}

	if err := upsertMedia(ctx, q, post, files); err != nil {
		return nil, err
	}
	if err := upsertAnnotations(ctx, q, post, known); err != nil {
		return nil, err
	}
	return q.GetPost(ctx, post.ID)
}

func upsertMedia(ctx context.Context, q *db.Queries, post source.Post, files map[string]*models.LocalFile) error {
	seen := mapset.NewThreadUnsafeSet[string]()
	for i, m := range post.Media {
		if !seen.Add(m.Key) {
			continue
		}
		file, ok := files[m.Key]
		if !ok || file == nil {
			return apperrors.Newf(apperrors.ErrInternal, "post %s: media %s has no stored file", post.ID, m.Key)
		}
		if _, err := q.UpsertMedia(ctx, &models.Media{
			ID:            m.Key,
			Type:          m.Type,
			URL:           SelectVariant(m),
			LocalFileHash: file.Hash,
		}); err != nil {
			return err
		}
		if err := q.LinkPostMedia(ctx, post.ID, m.Key, i); err != nil {
			return err
		}
	}
	return nil
}

func upsertAnnotations(ctx context.Context, q *db.Queries, post source.Post, known mapset.Set[string]) error {
	for _, h := range post.Entities.Hashtags {
		id, err := q.LookupHashtag(ctx, NormalizeTag(h.Tag))
		if err != nil {
			return err
		}
		if err := q.InsertHashtag(ctx, post.ID, h.Span, id); err != nil {
			return err
		}
	}
	for _, m := range post.Entities.Mentions {
		pm := models.PostMention{Span: m.Span, Username: m.Username}
		// Only link accounts this import has recorded.
		if m.UserID != "" && known.Contains(m.UserID) {
			id := m.UserID
			pm.UserID = &id
		}
		if err := q.InsertMention(ctx, post.ID, pm); err != nil {
			return err
		}
	}
	for _, l := range post.Entities.Links {
		if err := q.InsertLink(ctx, post.ID, models.PostLink{
			Span:        l.Span,
			URL:         l.URL,
			ExpandedURL: l.ExpandedURL,
			DisplayURL:  l.DisplayURL,
		}); err != nil {
			return err
		}
	}
	return nil
}
