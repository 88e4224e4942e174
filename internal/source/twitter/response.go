package twitter

import (
	"time"

	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/models"
	"github.com/kimhsiao/likevault/internal/source"
)

type likedTweetsResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user  `json:"users"`
		Media []media `json:"media"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type tweet struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	CreatedAt       string `json:"created_at"`
	AuthorID        string `json:"author_id"`
	InReplyToUserID string `json:"in_reply_to_user_id"`
	Source          string `json:"source"`
	Attachments     struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	Entities struct {
		Hashtags []struct {
			Start int    `json:"start"`
			End   int    `json:"end"`
			Tag   string `json:"tag"`
		} `json:"hashtags"`
		Mentions []struct {
			Start    int    `json:"start"`
			End      int    `json:"end"`
			Username string `json:"username"`
			ID       string `json:"id"`
		} `json:"mentions"`
		URLs []struct {
			Start       int    `json:"start"`
			End         int    `json:"end"`
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
			DisplayURL  string `json:"display_url"`
		} `json:"urls"`
	} `json:"entities"`
}

type user struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

type media struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Variants []struct {
		BitRate     int    `json:"bit_rate"`
		ContentType string `json:"content_type"`
		URL         string `json:"url"`
	} `json:"variants"`
}

func (u user) toSource() source.User {
	return source.User{ID: u.ID, Username: u.Username, Name: u.Name, ProfileImageURL: u.ProfileImageURL}
}

func malformed(format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.ErrSourceMalformed, format, args...)
}

// toPage resolves expansions and validates required fields.
func (r *likedTweetsResponse) toPage() (*source.Page, error) {
	users := make(map[string]user, len(r.Includes.Users))
	for _, u := range r.Includes.Users {
		users[u.ID] = u
	}
	mediaByKey := make(map[string]media, len(r.Includes.Media))
	for _, m := range r.Includes.Media {
		mediaByKey[m.MediaKey] = m
	}

	page := &source.Page{NextCursor: r.Meta.NextToken}
	for _, t := range r.Data {
		post, err := t.toPost(users, mediaByKey)
		if err != nil {
			return nil, err
		}
		page.Posts = append(page.Posts, *post)
	}
	return page, nil
}

func (t *tweet) toPost(users map[string]user, mediaByKey map[string]media) (*source.Post, error) {
	if t.ID == "" {
		return nil, malformed("post without id")
	}
	author, ok := users[t.AuthorID]
	if !ok {
		return nil, malformed("post %s: author %q not included", t.ID, t.AuthorID)
	}
	createdAt, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return nil, malformed("post %s: bad created_at %q", t.ID, t.CreatedAt)
	}

	post := &source.Post{
		ID:        t.ID,
		Text:      t.Text,
		CreatedAt: createdAt,
		Author:    author.toSource(),
		Source:    t.Source,
	}
	if t.InReplyToUserID != "" {
		reply := source.User{ID: t.InReplyToUserID}
		if u, ok := users[t.InReplyToUserID]; ok {
			reply = u.toSource()
		}
		post.ReplyToUser = &reply
	}

	for _, key := range t.Attachments.MediaKeys {
		m, ok := mediaByKey[key]
		if !ok {
			return nil, malformed("post %s: media %q not included", t.ID, key)
		}
		sm := source.Media{Key: m.MediaKey, Type: models.MediaType(m.Type), URL: m.URL}
		if !sm.Type.Valid() {
			return nil, malformed("post %s: unknown media type %q", t.ID, m.Type)
		}
		for _, v := range m.Variants {
			sm.Variants = append(sm.Variants, source.Variant{Bitrate: v.BitRate, ContentType: v.ContentType, URL: v.URL})
		}
		post.Media = append(post.Media, sm)
	}

	for _, h := range t.Entities.Hashtags {
		post.Entities.Hashtags = append(post.Entities.Hashtags, source.Hashtag{
			Span: models.Span{Start: h.Start, End: h.End}, Tag: h.Tag,
		})
	}
	for _, m := range t.Entities.Mentions {
		post.Entities.Mentions = append(post.Entities.Mentions, source.Mention{
			Span: models.Span{Start: m.Start, End: m.End}, Username: m.Username, UserID: m.ID,
		})
		if u, ok := users[m.ID]; ok && m.ID != "" {
			post.MentionedUsers = append(post.MentionedUsers, u.toSource())
		}
	}
	for _, u := range t.Entities.URLs {
		post.Entities.Links = append(post.Entities.Links, source.Link{
			Span: models.Span{Start: u.Start, End: u.End}, URL: u.URL, ExpandedURL: u.ExpandedURL, DisplayURL: u.DisplayURL,
		})
	}
	return post, nil
}
