package identity

import (
	"fmt"
	"time"
)

const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// Identity is the durable account record. It is reachable through at
// least one of: a local password hash, a google id, a facebook id.
type Identity struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	GoogleID     string
	FacebookID   string
	Secret       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// LocalCredential is what registration persists.
type LocalCredential struct {
	Username     string
	Email        string
	PasswordHash string
}

// SecretHolder is one row of the public secrets listing.
type SecretHolder struct {
	ID       string
	Username string
	Secret   string
}

// providerColumn maps a provider name to its id column. Only names
// returned here are ever interpolated into SQL.
func providerColumn(provider string) (string, error) {
	switch provider {
	case ProviderGoogle:
		return "google_id", nil
	case ProviderFacebook:
		return "facebook_id", nil
	default:
		return "", fmt.Errorf("identity: unknown provider %q", provider)
	}
}
