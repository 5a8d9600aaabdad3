package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"secrets-service/internal/auth"

	"golang.org/x/oauth2"
	fb "golang.org/x/oauth2/facebook"
)

const (
	providerName = "facebook"

	// DefaultGraphURL is the Graph API version the profile is read from.
	DefaultGraphURL = "https://graph.facebook.com/v19.0"
)

type Provider struct {
	oauthConfig *oauth2.Config
	graphURL    string
	httpClient  *http.Client
}

type Option func(*Provider)

// WithEndpoint overrides the OAuth endpoint, mostly for tests.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(p *Provider) { p.oauthConfig.Endpoint = ep }
}

// WithGraphURL overrides the Graph API base URL.
func WithGraphURL(u string) Option {
	return func(p *Provider) { p.graphURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New builds the Facebook provider. Facebook does not speak OIDC for
// web logins, so the profile comes from the Graph API.
func New(clientID, clientSecret, redirectURL string, opts ...Option) (*Provider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("facebook oauth config missing required fields")
	}

	endpoint := fb.Endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	p := &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"public_profile"},
		},
		graphURL:   DefaultGraphURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) AuthCodeURL(state string, codeVerifier string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.S256ChallengeOption(codeVerifier))
}

type graphUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Profile, error) {

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, auth.ProviderError(providerName, fmt.Errorf("token exchange: %w", err))
	}

	user, err := p.fetchProfile(ctx, token)
	if err != nil {
		return nil, auth.ProviderError(providerName, err)
	}

	return &auth.Profile{
		Provider:       providerName,
		ProviderUserID: user.ID,
		DisplayName:    strings.TrimSpace(user.Name),
		Email:          user.Email,
	}, nil
}

func (p *Provider) fetchProfile(ctx context.Context, token *oauth2.Token) (*graphUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.graphURL+"/me?fields=id,name,email", nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("graph read: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ge graphError
		if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
			return nil, fmt.Errorf("graph status %d: %s", resp.StatusCode, ge.Error.Message)
		}
		return nil, fmt.Errorf("graph status %d", resp.StatusCode)
	}

	var user graphUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("graph decode: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("graph profile missing id")
	}

	return &user, nil
}
