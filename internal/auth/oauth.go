package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/agentsql/bridge/pkg/models"
)

var (
	ErrUnknownProvider = errors.New("auth: unknown oauth provider")
)

// OAuthProvider implements an OAuth2 authorization-code flow for one
// upstream identity provider.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, token *oauth2.Token) (Identity, error)
}

const maxCodeLength = 4096

// HandleCallback completes provider's OAuth flow, resolves the upstream
// identity, and mints an auth session through Login. The code length is
// bounded the same way the teacher bounds it, against an abusive caller
// pushing an oversized authorization code at the callback endpoint.
func (s *Service) HandleCallback(ctx context.Context, providers map[string]OAuthProvider, providerName, code string) (*models.AuthSession, error) {
	if len(code) > maxCodeLength {
		return nil, errors.New("auth: authorization code too long")
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("auth: authorization code required")
	}

	provider, ok := providers[strings.ToLower(strings.TrimSpace(providerName))]
	if !ok {
		return nil, ErrUnknownProvider
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchange: %w", err)
	}
	identity, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch user info: %w", err)
	}

	return s.Login(ctx, identity)
}

// OAuthProviderConfig configures a generic OAuth2 provider.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// GoogleProvider implements OAuthProvider against Google's OIDC endpoints.
type GoogleProvider struct {
	config      oauth2.Config
	userInfoURL string
}

// NewGoogleProvider builds a provider with Google's fixed endpoints.
func NewGoogleProvider(cfg OAuthProviderConfig) *GoogleProvider {
	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			RedirectURL:  strings.TrimSpace(cfg.RedirectURL),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		userInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
	}
}

// AuthURL returns the provider's authorization URL for state.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for an access token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// UserInfo fetches and parses the caller's Google profile.
func (p *GoogleProvider) UserInfo(ctx context.Context, token *oauth2.Token) (Identity, error) {
	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: build user info request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return Identity{}, fmt.Errorf("auth: user info request failed: %s", strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, err
	}

	var payload struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Identity{}, fmt.Errorf("auth: parse user info: %w", err)
	}
	return Identity{Email: payload.Email, Name: payload.Name, PictureURL: payload.Picture}, nil
}
