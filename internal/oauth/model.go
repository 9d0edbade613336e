package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecole-connect/authhub/internal/common/errorx"
	"github.com/ecole-connect/authhub/internal/storage"
)

// Code is an authorization code joined with its resolved client and user.
type Code struct {
	storage.AuthorizationCode
	Client *storage.Client
	User   *storage.User
}

// AccessToken is a stored access token joined with its resolved client and
// user.
type AccessToken struct {
	storage.AccessToken
	Client *storage.Client
	User   *storage.User
}

// RefreshToken is a stored refresh token joined with its resolved client and
// user.
type RefreshToken struct {
	storage.RefreshToken
	Client *storage.Client
	User   *storage.User
}

// Token bundles the access and refresh credentials issued together by a
// token-endpoint grant.
type Token struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Scope                 string
	Client                *storage.Client
	User                  *storage.User
}

// Model implements the credential operations of the authorization server on
// top of a Store. Every returned client has its secret stripped; the secret
// only ever flows inward, for verification.
type Model struct {
	store storage.Store
}

func NewModel(store storage.Store) *Model {
	return &Model{store: store}
}

// GetClient looks up a client and, when a secret is supplied, verifies it.
// An unknown id and a wrong secret produce the same error so callers cannot
// enumerate registered clients.
func (m *Model) GetClient(ctx context.Context, id, secret string) (*storage.Client, error) {
	client, err := m.store.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorx.ErrInvalidClient
		}
		return nil, err
	}
	if secret != "" && subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) != 1 {
		return nil, errorx.ErrInvalidClient
	}
	client.Secret = ""
	return client, nil
}

// resolveOwners fetches the client and user a credential points at. Both
// lookups run concurrently; a dangling reference surfaces as ErrNotFound.
func (m *Model) resolveOwners(ctx context.Context, clientID, userID string) (*storage.Client, *storage.User, error) {
	var (
		client *storage.Client
		user   *storage.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		client, err = m.store.GetClient(gctx, clientID)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = m.store.GetUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	client.Secret = ""
	return client, user, nil
}

// GetAuthorizationCode resolves a code and its owners. A code whose client
// or user no longer exists is reported as missing, same as an unknown code.
func (m *Model) GetAuthorizationCode(ctx context.Context, code string) (*Code, error) {
	rec, err := m.store.GetAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorx.ErrCodeNotFound
		}
		return nil, err
	}
	client, user, err := m.resolveOwners(ctx, rec.ClientID, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorx.ErrCodeNotFound
		}
		return nil, err
	}
	return &Code{AuthorizationCode: *rec, Client: client, User: user}, nil
}

// SaveAuthorizationCode upserts the code record and returns it enriched with
// full client and user snapshots. Only the ids are persisted as foreign keys.
func (m *Model) SaveAuthorizationCode(ctx context.Context, rec *storage.AuthorizationCode) (*Code, error) {
	if err := m.store.SaveAuthorizationCode(ctx, rec); err != nil {
		return nil, err
	}
	client, user, err := m.resolveOwners(ctx, rec.ClientID, rec.UserID)
	if err != nil {
		return nil, err
	}
	return &Code{AuthorizationCode: *rec, Client: client, User: user}, nil
}

// RevokeAuthorizationCode deletes the code and reports whether a record was
// actually removed. Exchange relies on this to make codes single-use.
func (m *Model) RevokeAuthorizationCode(ctx context.Context, code string) (bool, error) {
	return m.store.DeleteAuthorizationCode(ctx, code)
}

// GetAccessToken resolves an access token and its owners.
func (m *Model) GetAccessToken(ctx context.Context, token string) (*AccessToken, error) {
	rec, err := m.store.GetAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}
	client, user, err := m.resolveOwners(ctx, rec.ClientID, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}
	return &AccessToken{AccessToken: *rec, Client: client, User: user}, nil
}

// GetRefreshToken resolves a refresh token and its owners.
func (m *Model) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	rec, err := m.store.GetRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}
	client, user, err := m.resolveOwners(ctx, rec.ClientID, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}
	return &RefreshToken{RefreshToken: *rec, Client: client, User: user}, nil
}

// SaveToken upserts the access and refresh records as two concurrent,
// independent writes. Both writes are idempotent by token string, so a
// retried exchange converges instead of duplicating.
func (m *Model) SaveToken(ctx context.Context, token *Token) (*Token, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.store.SaveAccessToken(gctx, &storage.AccessToken{
			Token:     token.AccessToken,
			ClientID:  token.Client.ID,
			UserID:    token.User.Handle,
			Scope:     token.Scope,
			ExpiresAt: token.AccessTokenExpiresAt,
		})
	})
	if token.RefreshToken != "" {
		g.Go(func() error {
			return m.store.SaveRefreshToken(gctx, &storage.RefreshToken{
				Token:     token.RefreshToken,
				ClientID:  token.Client.ID,
				UserID:    token.User.Handle,
				Scope:     token.Scope,
				ExpiresAt: token.RefreshTokenExpiresAt,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return token, nil
}

// RevokeToken deletes the refresh-token record. The matching access token is
// left alone: revocation stops future renewal, not the credential already in
// flight.
func (m *Model) RevokeToken(ctx context.Context, refreshToken string) (bool, error) {
	return m.store.DeleteRefreshToken(ctx, refreshToken)
}

// VerifyScope reports whether every requested scope token appears in the
// authorized scope. Both sides split on a single space; an empty authorized
// scope authorizes nothing.
func VerifyScope(authorized, requested string) bool {
	if authorized == "" {
		return false
	}
	granted := make(map[string]struct{})
	for _, s := range strings.Split(authorized, " ") {
		granted[s] = struct{}{}
	}
	for _, s := range strings.Split(requested, " ") {
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}
