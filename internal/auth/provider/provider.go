package provider

import (
	"context"

	"secrets-service/internal/auth"
)

// OAuthProvider defines the contract every external auth provider
// must implement. Implementations return profile facts only and
// must not perform user creation, linking, or session management.
type OAuthProvider interface {
	// Name returns the provider identifier (e.g. "google", "facebook").
	Name() string

	// AuthCodeURL returns the OAuth authorization URL. The caller owns
	// state and the PKCE verifier; the S256 challenge is derived here.
	AuthCodeURL(state string, codeVerifier string) string

	// ExchangeCode exchanges the authorization code for provider credentials
	// and returns a normalized profile. Failures wrap auth.ErrProviderFailure.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (*auth.Profile, error)
}
