package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/kimhsiao/likevault/internal/crypto"
	"github.com/kimhsiao/likevault/internal/db"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
)

func setupStore(t *testing.T, secret string) (*Store, *db.Repository) {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database.DB))

	repo := db.NewRepository(database.DB)
	sealer, err := crypto.NewSealer([]byte(secret))
	require.NoError(t, err)
	return NewStore(repo, sealer), repo
}

// TestSaveLoad verifies tokens round-trip and are not stored in clear.
func TestSaveLoad(t *testing.T) {
	store, repo := setupStore(t, "secret")
	ctx := context.Background()
	tok := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.Save(ctx, "s1", tok))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, got.AccessToken)
	assert.Equal(t, tok.RefreshToken, got.RefreshToken)
	assert.True(t, tok.Expiry.Equal(got.Expiry))

	raw, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, raw.Credential, "access-123")
}

// TestLoad_missing verifies the credential-missing code.
func TestLoad_missing(t *testing.T) {
	store, _ := setupStore(t, "secret")
	_, err := store.Load(context.Background(), "nope")
	assert.True(t, apperrors.Is(err, apperrors.ErrCredentialMissing))
}

// TestLoad_wrongKey verifies a credential sealed under another key fails.
func TestLoad_wrongKey(t *testing.T) {
	store, repo := setupStore(t, "one")
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", &oauth2.Token{AccessToken: "a"}))

	other, err := crypto.NewSealer([]byte("two"))
	require.NoError(t, err)
	_, err = NewStore(repo, other).Load(ctx, "s1")
	assert.True(t, apperrors.Is(err, apperrors.ErrCryptoFailed))

	assert.True(t, apperrors.Is(store.Save(ctx, "s1", nil), apperrors.ErrInvalid))
}
