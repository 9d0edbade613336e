package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLStorage(t *testing.T) *SQLStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authhub.db")
	s, err := NewSQLStorage(sqlite.Open(path))
	if err != nil {
		t.Fatalf("failed to create SQLStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStorage_ClientListsSurviveRoundTrip(t *testing.T) {
	s := newTestSQLStorage(t)
	ctx := context.Background()

	c := &Client{
		ID:           "c1",
		Secret:       "s1",
		RedirectURIs: []string{"http://app/cb", "http://app/cb2"},
		Grants:       []string{"authorization_code", "refresh_token"},
	}
	require.NoError(t, s.SaveClient(ctx, c))

	got, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.RedirectURIs, got.RedirectURIs)
	assert.Equal(t, c.Grants, got.Grants)

	// upsert replaces fields
	c.Secret = "s2"
	require.NoError(t, s.SaveClient(ctx, c))
	got, err = s.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.Secret)
}

func TestSQLStorage_UserRoundTrip(t *testing.T) {
	s := newTestSQLStorage(t)
	ctx := context.Background()

	verified := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveUser(ctx, &User{Handle: "marvin", Email: "marvin@student.ecole.dev", EmailVerified: &verified}))

	got, err := s.GetUser(ctx, "marvin")
	require.NoError(t, err)
	require.NotNil(t, got.EmailVerified)
	assert.True(t, verified.Equal(*got.EmailVerified))

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStorage_CodeLifecycle(t *testing.T) {
	s := newTestSQLStorage(t)
	ctx := context.Background()

	code := &AuthorizationCode{
		Code:                "code-1",
		ClientID:            "c1",
		UserID:              "marvin",
		RedirectURI:         "http://app/cb",
		Scope:               "read write",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(10 * time.Minute).UTC(),
	}
	require.NoError(t, s.SaveAuthorizationCode(ctx, code))

	got, err := s.GetAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "S256", got.CodeChallengeMethod)
	assert.Equal(t, "read write", got.Scope)

	deleted, err := s.DeleteAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLStorage_TokensSharedTable(t *testing.T) {
	s := newTestSQLStorage(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour).UTC()

	require.NoError(t, s.SaveAccessToken(ctx, &AccessToken{Token: "at-1", ClientID: "c1", UserID: "marvin", Scope: "read", ExpiresAt: expiry}))
	require.NoError(t, s.SaveRefreshToken(ctx, &RefreshToken{Token: "rt-1", ClientID: "c1", UserID: "marvin", Scope: "read", ExpiresAt: expiry}))

	_, err := s.GetAccessToken(ctx, "rt-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// idempotent upsert: one row per token string
	require.NoError(t, s.SaveAccessToken(ctx, &AccessToken{Token: "at-1", ClientID: "c1", UserID: "marvin", Scope: "read write", ExpiresAt: expiry}))
	var count int64
	require.NoError(t, s.db.Model(&tokenRow{}).Where("token = ?", "at-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := s.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.Equal(t, "read write", got.Scope)

	deleted, err := s.DeleteRefreshToken(ctx, "rt-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = s.GetAccessToken(ctx, "at-1")
	assert.NoError(t, err)
}
