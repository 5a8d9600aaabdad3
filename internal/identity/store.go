package identity

import "context"

// Store persists identities. Implementations wrap driver errors with
// auth.StorageError and report missing rows as auth.ErrNotFound.
type Store interface {
	FindByID(ctx context.Context, id string) (*Identity, error)

	// FindLocal returns the identity owning username with a password set.
	FindLocal(ctx context.Context, username string) (*Identity, error)

	// UpsertByLocalCredential creates a password identity. It fails with
	// auth.ErrDuplicateUsername when a password identity already owns
	// the username; identities created through a provider do not count.
	UpsertByLocalCredential(ctx context.Context, cred LocalCredential) (*Identity, error)

	// UpsertByProviderID returns the identity linked to (provider,
	// providerID), creating it atomically on first sight. Concurrent
	// callers with the same pair always observe the same identity.
	UpsertByProviderID(ctx context.Context, provider, providerID, displayName string) (*Identity, error)

	SetPasswordHash(ctx context.Context, id, hash string) error

	// SetSecret overwrites the identity's secret.
	SetSecret(ctx context.Context, id, text string) error

	// ListSecretHolders returns every identity with a secret, oldest first.
	ListSecretHolders(ctx context.Context) ([]SecretHolder, error)

	Close() error
}
