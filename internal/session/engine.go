package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ecole-connect/authhub/internal/common/cnst"
	"github.com/ecole-connect/authhub/internal/common/config"
	"github.com/ecole-connect/authhub/internal/common/errorx"
	"github.com/ecole-connect/authhub/internal/storage"
	"github.com/ecole-connect/authhub/internal/transport"
)

var (
	ErrInvalidToken   = errors.New("invalid session token")
	ErrEmptySecretKey = errors.New("secret key cannot be empty")
	ErrWeakSecretKey  = errors.New("secret key must be at least 32 characters")
	ErrUnknownAction  = errors.New("unknown auth action")
)

// Session is the ephemeral identity derived from the signed cookie. It is
// never persisted; the cookie is the only carrier.
type Session struct {
	User    *storage.User `json:"user"`
	Expires time.Time     `json:"expires"`
}

// IdentityProvider is the upstream the engine delegates sign-in to.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUser(ctx context.Context, token *oauth2.Token) (*storage.User, error)
}

// Resolver turns a request into the caller's session, plus any cookies the
// response must carry. The session bridge is its only production caller.
type Resolver interface {
	Resolve(ctx context.Context, req *transport.Request) (*Session, []*http.Cookie, error)
}

type sessionClaims struct {
	Handle  string `json:"handle"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Engine implements the delegated sign-in actions and session resolution.
// Sessions are stateless HS256 tokens carried in a cookie.
type Engine struct {
	logger     *zap.Logger
	store      storage.Store
	provider   IdentityProvider
	secret     []byte
	ttl        time.Duration
	cookieName string
}

func NewEngine(logger *zap.Logger, store storage.Store, provider IdentityProvider, cfg config.SessionConfig) (*Engine, error) {
	if cfg.Secret == "" {
		return nil, ErrEmptySecretKey
	}
	if len(cfg.Secret) < 32 {
		return nil, ErrWeakSecretKey
	}
	return &Engine{
		logger:     logger.Named("session"),
		store:      store,
		provider:   provider,
		secret:     []byte(cfg.Secret),
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
	}, nil
}

// Handle dispatches one of the sign-in actions: signin, callback, session,
// signout. The provider segment is optional; when present it must name the
// configured provider.
func (e *Engine) Handle(ctx context.Context, req *transport.Request, action, provider string) (*transport.Response, error) {
	if provider != "" && provider != e.provider.Name() {
		return nil, ErrUnknownAction
	}
	switch action {
	case "signin":
		return e.signIn()
	case "callback":
		return e.callback(ctx, req)
	case "session":
		return e.session(ctx, req)
	case "signout":
		return e.signOut()
	default:
		return nil, ErrUnknownAction
	}
}

func (e *Engine) signIn() (*transport.Response, error) {
	state := uuid.NewString()
	resp := transport.NewResponse()
	resp.AddCookie(&http.Cookie{
		Name:     cnst.StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	resp.Redirect = e.provider.AuthCodeURL(state)
	return resp, nil
}

func (e *Engine) callback(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	state := req.Param("state")
	if state == "" || state != req.Cookies[cnst.StateCookieName] {
		return nil, errorx.ErrInvalidRequest
	}
	code := req.Param("code")
	if code == "" {
		return nil, errorx.ErrInvalidRequest
	}

	token, err := e.provider.Exchange(ctx, code)
	if err != nil {
		e.logger.Error("upstream code exchange failed", zap.Error(err))
		return nil, errorx.ErrUpstreamFailure
	}
	user, err := e.provider.FetchUser(ctx, token)
	if err != nil {
		e.logger.Error("upstream user fetch failed", zap.Error(err))
		return nil, errorx.ErrUpstreamFailure
	}

	now := time.Now()
	user.EmailVerified = &now
	if err := e.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	signed, expiry, err := e.sign(user)
	if err != nil {
		return nil, err
	}

	resp := transport.NewResponse()
	resp.AddCookie(e.sessionCookie(signed, expiry))
	resp.AddCookie(expiredCookie(cnst.StateCookieName))

	target := "/"
	if ret := req.Cookies[cnst.ReturnCookieName]; ret != "" {
		target = ret
		resp.AddCookie(expiredCookie(cnst.ReturnCookieName))
	}
	resp.Redirect = target

	e.logger.Info("user signed in",
		zap.String("user", user.Handle),
		zap.String("provider", e.provider.Name()))
	return resp, nil
}

func (e *Engine) session(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	sess, cookies, err := e.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := transport.NewResponse()
	for _, ck := range cookies {
		resp.AddCookie(ck)
	}
	if sess == nil {
		resp.Body = map[string]any{}
		return resp, nil
	}
	resp.Body = sess
	return resp, nil
}

func (e *Engine) signOut() (*transport.Response, error) {
	resp := transport.NewResponse()
	resp.AddCookie(expiredCookie(e.cookieName))
	resp.Redirect = "/"
	return resp, nil
}

// Resolve reads the session cookie and validates it. A tampered or expired
// cookie yields no session plus a clearing cookie; renewal kicks in once
// half the lifetime is gone, so active sessions slide forward.
func (e *Engine) Resolve(_ context.Context, req *transport.Request) (*Session, []*http.Cookie, error) {
	raw := req.Cookies[e.cookieName]
	if raw == "" {
		return nil, nil, nil
	}
	claims, err := e.validate(raw)
	if err != nil {
		return nil, []*http.Cookie{expiredCookie(e.cookieName)}, nil
	}

	sess := &Session{
		User: &storage.User{
			Handle: claims.Handle,
			Email:  claims.Email,
			Name:   claims.Name,
			Image:  claims.Picture,
		},
		Expires: claims.ExpiresAt.Time,
	}
	if time.Until(sess.Expires) < e.ttl/2 {
		signed, expiry, err := e.sign(sess.User)
		if err != nil {
			return nil, nil, err
		}
		sess.Expires = expiry
		return sess, []*http.Cookie{e.sessionCookie(signed, expiry)}, nil
	}
	return sess, nil, nil
}

func (e *Engine) sign(user *storage.User) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(e.ttl)
	claims := &sessionClaims{
		Handle:  user.Handle,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Handle,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

func (e *Engine) validate(raw string) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return e.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims, ok := token.Claims.(*sessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

func (e *Engine) sessionCookie(value string, expiry time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     e.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
}
