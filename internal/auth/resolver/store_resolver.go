package resolver

import (
	"context"
	"errors"
	"strings"

	"secrets-service/internal/auth"
	"secrets-service/internal/identity"
)

// StoreResolver finds or creates identities through the credential
// store's atomic provider upsert. It never links by email or username.
type StoreResolver struct {
	store identity.Store
}

func NewStoreResolver(store identity.Store) *StoreResolver {
	return &StoreResolver{store: store}
}

func (r *StoreResolver) Resolve(
	ctx context.Context,
	profile *auth.Profile,
) (*identity.Identity, error) {

	if profile == nil {
		return nil, errors.New("resolver: profile is nil")
	}
	if profile.ProviderUserID == "" {
		return nil, auth.ProviderError(profile.Provider, errors.New("profile has no provider user id"))
	}

	displayName := strings.TrimSpace(profile.DisplayName)
	if displayName == "" {
		displayName = profile.Provider + ":" + profile.ProviderUserID
	}

	return r.store.UpsertByProviderID(
		ctx,
		profile.Provider,
		profile.ProviderUserID,
		displayName,
	)
}
