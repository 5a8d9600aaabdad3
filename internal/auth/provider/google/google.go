package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"secrets-service/internal/auth"
	"secrets-service/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	providerName = "google"

	// DefaultIssuer is discovered at start-up.
	DefaultIssuer = "https://accounts.google.com"
)

type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	httpClient  *http.Client
}

type settings struct {
	issuer     string
	httpClient *http.Client
}

type Option func(*settings)

// WithIssuer points discovery at another OIDC issuer.
func WithIssuer(issuer string) Option {
	return func(s *settings) { s.issuer = issuer }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// New initializes the Google OIDC provider using discovery. Only the
// basic profile is requested.
func New(
	ctx context.Context,
	clientID string,
	clientSecret string,
	redirectURL string,
	opts ...Option,
) (*Provider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	s := settings{issuer: DefaultIssuer, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&s)
	}

	oidcProvider, err := oidc.NewProvider(oidc.ClientContext(ctx, s.httpClient), s.issuer)
	if err != nil {
		return nil, fmt.Errorf("google: discover %s: %w", s.issuer, err)
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile"},
		},
		verifier:   oidcProvider.Verifier(&oidc.Config{ClientID: clientID}),
		httpClient: s.httpClient,
	}, nil
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) AuthCodeURL(state string, codeVerifier string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// ExchangeCode trades the code for tokens and reads the profile from
// the verified id_token. Google's sub is the stable account id.
func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Profile, error) {

	ctx = oidc.ClientContext(ctx, p.httpClient)

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, auth.ProviderError(providerName, fmt.Errorf("token exchange: %w", err))
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, auth.ProviderError(providerName, errors.New("no id_token in token response"))
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, auth.ProviderError(providerName, fmt.Errorf("verify id_token: %w", err))
	}

	var claims struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, auth.ProviderError(providerName, fmt.Errorf("decode claims: %w", err))
	}

	if idToken.Subject == "" {
		return nil, auth.ProviderError(providerName, errors.New("id_token has no subject"))
	}

	logger.Debug("google id_token verified", map[string]any{
		"issuer":       idToken.Issuer,
		"expiry_unix":  idToken.Expiry.Unix(),
		"name_present": claims.Name != "",
	})

	return &auth.Profile{
		Provider:       providerName,
		ProviderUserID: idToken.Subject,
		DisplayName:    strings.TrimSpace(claims.Name),
		Email:          claims.Email,
	}, nil
}
