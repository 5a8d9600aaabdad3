package resolver

import (
	"context"

	"secrets-service/internal/auth"
	"secrets-service/internal/identity"
)

// Resolver determines which identity an external profile belongs to.
// It is the ONLY place where provider-to-identity mapping logic lives.
type Resolver interface {
	Resolve(
		ctx context.Context,
		profile *auth.Profile,
	) (*identity.Identity, error)
}
