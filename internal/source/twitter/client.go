// Package twitter implements source.Source over the v2 liked_tweets endpoint.
package twitter

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/source"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	tweetFields = "id,text,created_at,author_id,in_reply_to_user_id,source,attachments,entities"
	userFields  = "id,name,username,profile_image_url"
	mediaFields = "media_key,type,url,variants"
	expansions  = "author_id,in_reply_to_user_id,attachments.media_keys,entities.mentions.username"
)

// Options configures the adapter.
type Options struct {
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	PageSize      int
	RequestsPer15 int
	Timeout       time.Duration
}

// Client fetches liked posts with an OAuth2 bearer token, refreshing it
// through the token endpoint when it expires or is rejected.
type Client struct {
	http     *resty.Client
	conf     *oauth2.Config
	limiter  *rate.Limiter
	pageSize int

	// ctx scopes token refresh requests.
	ctx context.Context

	mu      sync.Mutex
	tokens  oauth2.TokenSource
	current *oauth2.Token
}

var _ source.Source = (*Client)(nil)

// NewFactory returns a source.Factory producing Clients for opts.
func NewFactory(opts Options) source.Factory {
	return func(ctx context.Context, token *oauth2.Token) (source.Source, error) {
		return New(ctx, opts, token)
	}
}

// New creates a Client starting from token.
func New(ctx context.Context, opts Options, token *oauth2.Token) (*Client, error) {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return nil, apperrors.New(apperrors.ErrCredentialMissing, "no credential for source")
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}

	limit := rate.Inf
	if opts.RequestsPer15 > 0 {
		limit = rate.Every(15 * time.Minute / time.Duration(opts.RequestsPer15))
	}

	conf := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: opts.TokenURL},
	}

	httpClient := resty.New().SetBaseURL(opts.BaseURL)
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	return &Client{
		http:     httpClient,
		conf:     conf,
		limiter:  rate.NewLimiter(limit, 1),
		pageSize: opts.PageSize,
		ctx:      ctx,
		tokens:   conf.TokenSource(ctx, token),
		current:  token,
	}, nil
}

// Token returns the credential used by the most recent request.
func (c *Client) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, apperrors.New(apperrors.ErrCredentialMissing, "no credential for source")
	}
	t := *c.current
	return &t, nil
}

// token returns a valid access token, refreshing when expired.
func (c *Client) token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.tokens.Token()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceAuthExpired, "token refresh failed", err)
	}
	c.current = t
	return t, nil
}

// forceRefresh discards the access token and exchanges the refresh token.
func (c *Client) forceRefresh() (*oauth2.Token, error) {
	c.mu.Lock()
	refresh := ""
	if c.current != nil {
		refresh = c.current.RefreshToken
	}
	if refresh == "" {
		c.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrSourceAuthExpired, "access token rejected and no refresh token")
	}
	c.tokens = c.conf.TokenSource(c.ctx, &oauth2.Token{RefreshToken: refresh})
	c.mu.Unlock()
	return c.token()
}

// FetchLikedPostsPage returns one page of userID's liked posts.
func (c *Client) FetchLikedPostsPage(ctx context.Context, userID, cursor string) (*source.Page, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, userID, cursor, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		logging.Warn("Access token rejected, refreshing", map[string]interface{}{"user_id": userID})
		if tok, err = c.forceRefresh(); err != nil {
			return nil, err
		}
		if resp, err = c.get(ctx, userID, cursor, tok); err != nil {
			return nil, err
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, apperrors.New(apperrors.ErrSourceAuthExpired, "access token rejected after refresh")
		}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		msg := "rate limited"
		if reset := resp.Header().Get("x-rate-limit-reset"); reset != "" {
			if ts, err := strconv.ParseInt(reset, 10, 64); err == nil {
				msg += " until " + time.Unix(ts, 0).UTC().Format(time.RFC3339)
			}
		}
		return nil, apperrors.New(apperrors.ErrSourceRateLimited, msg)
	case code < 200 || code > 299:
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, "liked posts request failed with status %d", code)
	}

	var body likedTweetsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceMalformed, "undecodable liked posts response", err)
	}
	return body.toPage()
}

func (c *Client) get(ctx context.Context, userID, cursor string, tok *oauth2.Token) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceUnavailable, "rate limiter wait", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok.AccessToken).
		SetPathParam("id", userID).
		SetQueryParams(map[string]string{
			"max_results":  strconv.Itoa(c.pageSize),
			"tweet.fields": tweetFields,
			"user.fields":  userFields,
			"media.fields": mediaFields,
			"expansions":   expansions,
		})
	if cursor != "" {
		req.SetQueryParam("pagination_token", cursor)
	}

	resp, err := req.Get("/2/users/{id}/liked_tweets")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceUnavailable, "liked posts request", err)
	}
	return resp, nil
}
