// Package session persists source credentials, sealed at rest.
package session

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/oauth2"

	"github.com/kimhsiao/likevault/internal/crypto"
	"github.com/kimhsiao/likevault/internal/db"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store loads and saves OAuth tokens by session id.
type Store struct {
	repo   db.SessionRepository
	sealer *crypto.Sealer
}

// NewStore creates a Store sealing credentials with sealer.
func NewStore(repo db.SessionRepository, sealer *crypto.Sealer) *Store {
	return &Store{repo: repo, sealer: sealer}
}

// Load returns the token stored for id.
func (s *Store) Load(ctx context.Context, id string) (*oauth2.Token, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCredentialMissing, "no credential stored for session %s", id)
		}
		return nil, err
	}

	plain, err := s.sealer.Open(sess.Credential)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCryptoFailed, "failed to open credential", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(plain, &tok); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCryptoFailed, "failed to decode credential", err)
	}
	return &tok, nil
}

// Save replaces the token stored for id.
func (s *Store) Save(ctx context.Context, id string, tok *oauth2.Token) error {
	if tok == nil {
		return apperrors.New(apperrors.ErrInvalid, "nil credential")
	}
	plain, err := json.Marshal(tok)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode credential", err)
	}
	sealed, err := s.sealer.Seal(plain)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCryptoFailed, "failed to seal credential", err)
	}
	if err := s.repo.PutSession(ctx, &models.Session{ID: id, Credential: sealed}); err != nil {
		return err
	}
	logging.Debug("Saved credential", map[string]interface{}{"session_id": id})
	return nil
}
