package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ecole-connect/authhub/internal/common/config"
	"github.com/ecole-connect/authhub/internal/storage"
)

// Provider is the delegated identity provider, described entirely by
// configuration data.
type Provider struct {
	logger        *zap.Logger
	name          string
	oauth         *oauth2.Config
	userInfoURL   string
	studentDomain string
}

func NewProvider(logger *zap.Logger, cfg config.ProviderConfig) *Provider {
	return &Provider{
		logger: logger.Named("session.provider"),
		name:   cfg.Name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL:   cfg.UserInfoURL,
		studentDomain: cfg.StudentDomain,
	}
}

func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL returns the provider's authorization URL for the given
// anti-forgery state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the provider's authorization code for an upstream token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth.Exchange(ctx, code)
}

type userInfo struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Login     string `json:"login"`
	Picture   string `json:"picture"`
	AvatarURL string `json:"avatar_url"`
}

// FetchUser retrieves the signed-in user's profile from the provider's
// userinfo endpoint and maps it onto our user record. The handle is derived
// from the email.
func (p *Provider) FetchUser(ctx context.Context, token *oauth2.Token) (*storage.User, error) {
	client := p.oauth.Client(ctx, token)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		p.logger.Error("user info request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("provider %s returned no email", p.name)
	}

	image := info.Picture
	if image == "" {
		image = info.AvatarURL
	}
	name := info.Name
	if name == "" {
		name = info.Login
	}
	return &storage.User{
		Handle: DeriveHandle(info.Email, p.studentDomain),
		Email:  info.Email,
		Name:   name,
		Image:  image,
	}, nil
}

// DeriveHandle returns the stable user handle for an email address.
// Addresses in the student domain collapse to their local part; everything
// else keeps the full address.
func DeriveHandle(email, studentDomain string) string {
	local, domain, ok := strings.Cut(email, "@")
	if ok && studentDomain != "" && domain == studentDomain {
		return local
	}
	return email
}
