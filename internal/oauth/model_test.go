package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecole-connect/authhub/internal/common/errorx"
	"github.com/ecole-connect/authhub/internal/storage"
)

func newTestModel(t *testing.T) (*Model, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStorage()
	m := NewModel(store)

	ctx := context.Background()
	require.NoError(t, store.SaveClient(ctx, &storage.Client{
		ID:           "cli-1",
		Secret:       "sec-1",
		RedirectURIs: []string{"http://app/cb"},
		Grants:       []string{GrantAuthorizationCode, GrantRefreshToken},
	}))
	require.NoError(t, store.SaveUser(ctx, &storage.User{
		Handle: "marvin",
		Email:  "marvin@student.ecole.dev",
	}))
	return m, store
}

func TestGetClient_SecretHandling(t *testing.T) {
	m, _ := newTestModel(t)
	ctx := context.Background()

	client, err := m.GetClient(ctx, "cli-1", "sec-1")
	assert.NoError(t, err)
	assert.Empty(t, client.Secret)

	// wrong secret and unknown id must be the same error
	_, errWrong := m.GetClient(ctx, "cli-1", "bad")
	_, errUnknown := m.GetClient(ctx, "ghost", "sec-1")
	assert.ErrorIs(t, errWrong, errorx.ErrInvalidClient)
	assert.Equal(t, errUnknown, errWrong)

	// no secret supplied skips verification
	_, err = m.GetClient(ctx, "cli-1", "")
	assert.NoError(t, err)
}

func TestAuthorizationCode_RoundTrip(t *testing.T) {
	m, _ := newTestModel(t)
	ctx := context.Background()

	expiry := time.Now().Add(10 * time.Minute)
	saved, err := m.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:        "code-1",
		ClientID:    "cli-1",
		UserID:      "marvin",
		RedirectURI: "http://app/cb",
		Scope:       "read write",
		ExpiresAt:   expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "cli-1", saved.Client.ID)
	assert.Empty(t, saved.Client.Secret)
	assert.Equal(t, "marvin", saved.User.Handle)

	got, err := m.GetAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "http://app/cb", got.RedirectURI)
	assert.True(t, expiry.Equal(got.ExpiresAt))
	assert.Equal(t, "cli-1", got.Client.ID)
	assert.Empty(t, got.Client.Secret)
	assert.Equal(t, "marvin@student.ecole.dev", got.User.Email)

	_, err = m.GetAuthorizationCode(ctx, "ghost")
	assert.ErrorIs(t, err, errorx.ErrCodeNotFound)
}

func TestAuthorizationCode_DanglingOwnerReportedAsMissing(t *testing.T) {
	m, store := newTestModel(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:      "orphan",
		ClientID:  "cli-1",
		UserID:    "deleted-user",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	_, err := m.GetAuthorizationCode(ctx, "orphan")
	assert.ErrorIs(t, err, errorx.ErrCodeNotFound)
}

func TestSaveToken_ResolvesOwnersAndUpserts(t *testing.T) {
	m, _ := newTestModel(t)
	ctx := context.Background()

	client, err := m.GetClient(ctx, "cli-1", "")
	require.NoError(t, err)
	user := &storage.User{Handle: "marvin"}

	now := time.Now()
	token := &Token{
		AccessToken:           "at-1",
		AccessTokenExpiresAt:  now.Add(time.Hour),
		RefreshToken:          "rt-1",
		RefreshTokenExpiresAt: now.Add(24 * time.Hour),
		Scope:                 "read",
		Client:                client,
		User:                  user,
	}
	_, err = m.SaveToken(ctx, token)
	require.NoError(t, err)

	got, err := m.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.Equal(t, "cli-1", got.Client.ID)
	assert.Empty(t, got.Client.Secret)
	assert.Equal(t, "marvin", got.User.Handle)

	// same token string overwrites rather than duplicates
	token.Scope = "read write"
	_, err = m.SaveToken(ctx, token)
	require.NoError(t, err)
	got, err = m.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.Equal(t, "read write", got.Scope)
}

func TestRevokeToken_LeavesAccessTokenAlone(t *testing.T) {
	m, _ := newTestModel(t)
	ctx := context.Background()

	client, err := m.GetClient(ctx, "cli-1", "")
	require.NoError(t, err)
	_, err = m.SaveToken(ctx, &Token{
		AccessToken:           "at-2",
		AccessTokenExpiresAt:  time.Now().Add(time.Hour),
		RefreshToken:          "rt-2",
		RefreshTokenExpiresAt: time.Now().Add(time.Hour),
		Scope:                 "read",
		Client:                client,
		User:                  &storage.User{Handle: "marvin"},
	})
	require.NoError(t, err)

	revoked, err := m.RevokeToken(ctx, "rt-2")
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = m.GetRefreshToken(ctx, "rt-2")
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)
	_, err = m.GetAccessToken(ctx, "at-2")
	assert.NoError(t, err)

	revoked, err = m.RevokeToken(ctx, "rt-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestVerifyScope(t *testing.T) {
	assert.True(t, VerifyScope("read write", "read"))
	assert.True(t, VerifyScope("read write", "write read"))
	assert.False(t, VerifyScope("read", "read write"))
	assert.False(t, VerifyScope("", "read"))
	assert.False(t, VerifyScope("Read", "read"))
}
