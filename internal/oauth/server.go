package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecole-connect/authhub/internal/common/config"
	"github.com/ecole-connect/authhub/internal/common/errorx"
	"github.com/ecole-connect/authhub/internal/storage"
	"github.com/ecole-connect/authhub/internal/transport"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// Server implements the four authorization-server operations over a Model.
// It consumes neutral transport requests and produces neutral responses, so
// it carries no dependency on the router.
type Server struct {
	logger     *zap.Logger
	model      *Model
	codeTTL    time.Duration
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewServer(logger *zap.Logger, store storage.Store, cfg config.OAuthConfig) *Server {
	return &Server{
		logger:     logger.Named("oauth"),
		model:      NewModel(store),
		codeTTL:    cfg.CodeTTL,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

// Model exposes the credential operations for callers that bypass the HTTP
// flows, such as tests and seeding.
func (s *Server) Model() *Model {
	return s.model
}

// TokenResponse is the success body of the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Authorize runs the authorization_code front channel for an already
// authenticated resource owner and returns a redirect to the client's
// callback carrying a fresh code. The session check happens upstream.
func (s *Server) Authorize(ctx context.Context, req *transport.Request, ownerHandle string) (*transport.Response, error) {
	clientID := req.Param("client_id")
	if clientID == "" || ownerHandle == "" {
		return nil, errorx.ErrInvalidRequest
	}
	if rt := req.Param("response_type"); rt != "" && rt != "code" {
		return nil, errorx.ErrUnsupportedGrantType
	}

	client, err := s.model.GetClient(ctx, clientID, "")
	if err != nil {
		return nil, err
	}
	if !clientAllows(client, GrantAuthorizationCode) {
		return nil, errorx.ErrUnauthorizedClient
	}

	redirectURI := req.Param("redirect_uri")
	switch {
	case redirectURI == "" && len(client.RedirectURIs) > 0:
		redirectURI = client.RedirectURIs[0]
	case !isValidRedirectURI(redirectURI, client.RedirectURIs):
		return nil, errorx.ErrInvalidRedirectURI
	}

	challenge := req.Param("code_challenge")
	method := req.Param("code_challenge_method")
	if challenge != "" && method == "" {
		method = "plain"
	}
	if method != "" && method != "plain" && method != "S256" {
		return nil, errorx.ErrInvalidRequest
	}

	code, err := generateToken()
	if err != nil {
		return nil, err
	}
	if _, err := s.model.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:                code,
		ClientID:            client.ID,
		UserID:              ownerHandle,
		RedirectURI:         redirectURI,
		Scope:               req.Param("scope"),
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           time.Now().Add(s.codeTTL),
	}); err != nil {
		return nil, err
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		return nil, errorx.ErrInvalidRedirectURI
	}
	q := target.Query()
	q.Set("code", code)
	if state := req.Param("state"); state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()

	s.logger.Info("authorization code issued",
		zap.String("client_id", client.ID),
		zap.String("user", ownerHandle))

	resp := transport.NewResponse()
	resp.Redirect = target.String()
	return resp, nil
}

// Token exchanges an authorization code or a refresh token for a new token
// pair. The client must authenticate with its secret, via Basic auth or body
// parameters.
func (s *Server) Token(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	clientID, clientSecret := clientCredentials(req)
	if clientID == "" || clientSecret == "" {
		return nil, errorx.ErrInvalidClient
	}
	client, err := s.model.GetClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	grantType := req.Param("grant_type")
	switch grantType {
	case GrantAuthorizationCode, GrantRefreshToken:
	default:
		return nil, errorx.ErrUnsupportedGrantType
	}
	if !clientAllows(client, grantType) {
		return nil, errorx.ErrUnauthorizedClient
	}

	if grantType == GrantAuthorizationCode {
		return s.exchangeCode(ctx, req, client)
	}
	return s.exchangeRefreshToken(ctx, req, client)
}

func (s *Server) exchangeCode(ctx context.Context, req *transport.Request, client *storage.Client) (*transport.Response, error) {
	codeParam := req.Param("code")
	if codeParam == "" {
		return nil, errorx.ErrInvalidRequest
	}
	code, err := s.model.GetAuthorizationCode(ctx, codeParam)
	if err != nil {
		return nil, err
	}
	if code.ClientID != client.ID {
		return nil, errorx.ErrInvalidGrant
	}
	if time.Now().After(code.ExpiresAt) {
		return nil, errorx.ErrCodeExpired
	}
	if code.RedirectURI != "" && req.Param("redirect_uri") != code.RedirectURI {
		return nil, errorx.ErrInvalidGrant
	}
	if code.CodeChallenge != "" && !verifyCodeChallenge(code.CodeChallenge, code.CodeChallengeMethod, req.Param("code_verifier")) {
		return nil, errorx.ErrInvalidGrant
	}

	// delete before issuing so a replayed code fails even if issuance does
	deleted, err := s.model.RevokeAuthorizationCode(ctx, code.Code)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, errorx.ErrCodeNotFound
	}

	return s.issue(ctx, client, code.User, code.Scope)
}

func (s *Server) exchangeRefreshToken(ctx context.Context, req *transport.Request, client *storage.Client) (*transport.Response, error) {
	refreshParam := req.Param("refresh_token")
	if refreshParam == "" {
		return nil, errorx.ErrInvalidRequest
	}
	token, err := s.model.GetRefreshToken(ctx, refreshParam)
	if err != nil {
		return nil, err
	}
	if token.ClientID != client.ID {
		return nil, errorx.ErrInvalidGrant
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, errorx.ErrInvalidGrant
	}

	scope := token.Scope
	if requested := req.Param("scope"); requested != "" {
		if !VerifyScope(token.Scope, requested) {
			return nil, errorx.ErrInvalidScope
		}
		scope = requested
	}

	// rotate: the spent refresh token must not renew twice, even when two
	// exchanges race between lookup and delete
	deleted, err := s.model.RevokeToken(ctx, token.Token)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, errorx.ErrTokenNotFound
	}

	return s.issue(ctx, client, token.User, scope)
}

func (s *Server) issue(ctx context.Context, client *storage.Client, user *storage.User, scope string) (*transport.Response, error) {
	accessToken, err := generateToken()
	if err != nil {
		return nil, err
	}
	refreshToken, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := s.model.SaveToken(ctx, &Token{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  now.Add(s.accessTTL),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: now.Add(s.refreshTTL),
		Scope:                 scope,
		Client:                client,
		User:                  user,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("token issued",
		zap.String("client_id", client.ID),
		zap.String("user", user.Handle),
		zap.String("scope", scope))

	resp := transport.NewResponse()
	resp.SetHeader("Cache-Control", "no-store")
	resp.SetHeader("Pragma", "no-cache")
	resp.Body = &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	}
	return resp, nil
}

// Authenticate validates the request's bearer token and returns the resolved
// access token with its owners. When requiredScope is non-empty the token's
// authorized scope must contain it.
func (s *Server) Authenticate(ctx context.Context, req *transport.Request, requiredScope string) (*AccessToken, error) {
	bearer := bearerToken(req)
	if bearer == "" {
		return nil, errorx.ErrTokenNotFound
	}
	token, err := s.model.GetAccessToken(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, errorx.ErrTokenExpired
	}
	if requiredScope != "" && !VerifyScope(token.Scope, requiredScope) {
		return nil, errorx.ErrAccessDenied
	}
	return token, nil
}

// Revoke deletes the refresh token named by the authenticated client. An
// unknown or foreign token yields the same empty 200 as a deleted one, per
// RFC 7009.
func (s *Server) Revoke(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	clientID, clientSecret := clientCredentials(req)
	if clientID == "" || clientSecret == "" {
		return nil, errorx.ErrInvalidClient
	}
	client, err := s.model.GetClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	tokenParam := req.Param("token")
	if tokenParam == "" {
		return nil, errorx.ErrInvalidRequest
	}

	resp := transport.NewResponse()
	resp.Status = http.StatusOK

	token, err := s.model.GetRefreshToken(ctx, tokenParam)
	if err != nil {
		if errors.Is(err, errorx.ErrTokenNotFound) {
			return resp, nil
		}
		return nil, err
	}
	if token.ClientID != client.ID {
		return resp, nil
	}
	if _, err := s.model.RevokeToken(ctx, token.Token); err != nil {
		return nil, err
	}

	s.logger.Info("refresh token revoked", zap.String("client_id", client.ID))
	return resp, nil
}

func clientAllows(client *storage.Client, grant string) bool {
	for _, g := range client.Grants {
		if g == grant {
			return true
		}
	}
	return false
}

// clientCredentials extracts the client id and secret from Basic auth,
// falling back to body or query parameters.
func clientCredentials(req *transport.Request) (string, string) {
	auth := req.Headers.Get("Authorization")
	if strings.HasPrefix(auth, "Basic ") {
		if raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic ")); err == nil {
			if id, secret, ok := strings.Cut(string(raw), ":"); ok {
				return id, secret
			}
		}
	}
	return req.Param("client_id"), req.Param("client_secret")
}

// bearerToken extracts the access token from the Authorization header, the
// query string, or the body, in that order.
func bearerToken(req *transport.Request) string {
	auth := req.Headers.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if t := req.Query.Get("access_token"); t != "" {
		return t
	}
	return req.Form.Get("access_token")
}

func isValidRedirectURI(redirectURI string, allowedURIs []string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}

	for _, allowed := range allowedURIs {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}

		if u.Scheme == allowedURL.Scheme &&
			u.Host == allowedURL.Host &&
			strings.HasPrefix(u.Path, allowedURL.Path) {
			return true
		}
	}

	return false
}

func verifyCodeChallenge(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch method {
	case "", "plain":
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]) == challenge
	default:
		return false
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
