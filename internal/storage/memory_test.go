package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_Clients(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	_, err := s.GetClient(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	client := &Client{
		ID:           "cli-1",
		Secret:       "sec-1",
		RedirectURIs: []string{"http://app/cb"},
		Grants:       []string{"authorization_code", "refresh_token"},
	}
	require.NoError(t, s.SaveClient(ctx, client))

	got, err := s.GetClient(ctx, "cli-1")
	require.NoError(t, err)
	assert.Equal(t, "sec-1", got.Secret)
	assert.Equal(t, []string{"http://app/cb"}, got.RedirectURIs)

	// mutating the returned copy must not corrupt the stored record
	got.Secret = ""
	again, err := s.GetClient(ctx, "cli-1")
	require.NoError(t, err)
	assert.Equal(t, "sec-1", again.Secret)
}

func TestMemoryStorage_Users(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	_, err := s.GetUser(ctx, "marvin")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveUser(ctx, &User{Handle: "marvin", Email: "marvin@student.ecole.dev"}))
	got, err := s.GetUser(ctx, "marvin")
	require.NoError(t, err)
	assert.Equal(t, "marvin@student.ecole.dev", got.Email)
	assert.False(t, got.CreatedAt.IsZero())

	// upsert keeps CreatedAt, refreshes UpdatedAt
	created := got.CreatedAt
	require.NoError(t, s.SaveUser(ctx, &User{Handle: "marvin", Email: "marvin@student.ecole.dev", Name: "Marvin"}))
	got, err = s.GetUser(ctx, "marvin")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, "Marvin", got.Name)
}

func TestMemoryStorage_AuthorizationCodes(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	code := &AuthorizationCode{
		Code:        "code-1",
		ClientID:    "cli-1",
		UserID:      "marvin",
		RedirectURI: "http://app/cb",
		Scope:       "read write",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.SaveAuthorizationCode(ctx, code))

	got, err := s.GetAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "http://app/cb", got.RedirectURI)
	assert.Equal(t, code.ExpiresAt, got.ExpiresAt)

	deleted, err := s.DeleteAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.GetAuthorizationCode(ctx, "code-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_TokensShareCollection(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	require.NoError(t, s.SaveAccessToken(ctx, &AccessToken{Token: "at-1", ClientID: "cli-1", UserID: "marvin", Scope: "read", ExpiresAt: expiry}))
	require.NoError(t, s.SaveRefreshToken(ctx, &RefreshToken{Token: "rt-1", ClientID: "cli-1", UserID: "marvin", Scope: "read", ExpiresAt: expiry}))

	// each kind only resolves through its own accessor
	_, err := s.GetAccessToken(ctx, "rt-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRefreshToken(ctx, "at-1")
	assert.ErrorIs(t, err, ErrNotFound)

	at, err := s.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.Equal(t, "marvin", at.UserID)

	rt, err := s.GetRefreshToken(ctx, "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "cli-1", rt.ClientID)

	// refresh revocation does not touch the access token
	deleted, err := s.DeleteRefreshToken(ctx, "rt-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = s.GetAccessToken(ctx, "at-1")
	assert.NoError(t, err)

	// deleting an access token through refresh deletion is refused
	deleted, err = s.DeleteRefreshToken(ctx, "at-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryStorage_SaveAccessTokenIsUpsert(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveAccessToken(ctx, &AccessToken{Token: "at-1", ClientID: "cli-1", UserID: "u1", Scope: "read", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.SaveAccessToken(ctx, &AccessToken{Token: "at-1", ClientID: "cli-1", UserID: "u1", Scope: "read write", ExpiresAt: time.Now().Add(2 * time.Hour)}))

	got, err := s.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.Equal(t, "read write", got.Scope)
	assert.Len(t, s.tokens, 1)
}
