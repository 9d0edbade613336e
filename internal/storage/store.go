package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no record matches the key. Callers
// map it to their own error taxonomy.
var ErrNotFound = errors.New("storage: record not found")

// Client represents a registered OAuth2 client application.
type Client struct {
	ID           string    `json:"client_id"`
	Secret       string    `json:"client_secret,omitempty"`
	RedirectURIs []string  `json:"redirect_uris"`
	Grants       []string  `json:"grants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthorizationCode is a short-lived credential issued at the authorize
// endpoint and exchanged once at the token endpoint.
type AuthorizationCode struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id"` // user handle
	RedirectURI         string    `json:"redirect_uri"`
	Scope               string    `json:"scope"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	ExpiresAt           time.Time `json:"expires_at"`
	CreatedAt           time.Time `json:"created_at"`
}

// AccessToken is a bearer credential for resource access.
type AccessToken struct {
	Token     string    `json:"access_token"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken is the credential used to renew an access token.
type RefreshToken struct {
	Token     string    `json:"refresh_token"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an end user signed in through the delegated identity provider. The
// handle is the stable primary key, distinct from the email.
type User struct {
	Handle        string     `json:"handle"`
	Email         string     `json:"email"`
	Name          string     `json:"name,omitempty"`
	Image         string     `json:"image,omitempty"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Store is the gateway to the persistent collections: users, oauth_clients,
// oauth_codes and oauth_tokens. Access and refresh tokens share the
// oauth_tokens collection, each keyed by its own token string. Save
// operations on codes and tokens are idempotent upserts; Delete operations
// report whether a record was actually removed.
type Store interface {
	GetClient(ctx context.Context, id string) (*Client, error)
	SaveClient(ctx context.Context, client *Client) error

	GetUser(ctx context.Context, handle string) (*User, error)
	SaveUser(ctx context.Context, user *User) error

	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error
	DeleteAuthorizationCode(ctx context.Context, code string) (bool, error)

	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)

	Close() error
}

// token kinds within the shared oauth_tokens collection
const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// tokenRecord is the stored shape shared by both token kinds.
type tokenRecord struct {
	Token     string    `json:"token"`
	Kind      string    `json:"kind"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func accessRecord(t *AccessToken) *tokenRecord {
	return &tokenRecord{
		Token:     t.Token,
		Kind:      tokenKindAccess,
		ClientID:  t.ClientID,
		UserID:    t.UserID,
		Scope:     t.Scope,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	}
}

func refreshRecord(t *RefreshToken) *tokenRecord {
	return &tokenRecord{
		Token:     t.Token,
		Kind:      tokenKindRefresh,
		ClientID:  t.ClientID,
		UserID:    t.UserID,
		Scope:     t.Scope,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	}
}

func (r *tokenRecord) access() *AccessToken {
	return &AccessToken{
		Token:     r.Token,
		ClientID:  r.ClientID,
		UserID:    r.UserID,
		Scope:     r.Scope,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

func (r *tokenRecord) refresh() *RefreshToken {
	return &RefreshToken{
		Token:     r.Token,
		ClientID:  r.ClientID,
		UserID:    r.UserID,
		Scope:     r.Scope,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}
