package middleware

import (
	"context"
	"errors"
	"net/http"

	"secrets-service/internal/auth"
	"secrets-service/internal/identity"
	"secrets-service/internal/logger"
	"secrets-service/internal/session"
)

// LoginPath is where unauthenticated requests to protected routes go.
const LoginPath = "/login"

// unexported, collision-proof context key
type identityContextKeyType struct{}

var identityKey = identityContextKeyType{}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*identity.Identity)
	return id, ok && id != nil
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// SessionResolver is the part of the session manager the gate needs.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*identity.Identity, error)
}

// Gate decides, per request and without caching, whether the caller
// holds a live session.
type Gate struct {
	sessions SessionResolver
	cookie   session.CookieOptions
}

func NewGate(sessions SessionResolver, cookie session.CookieOptions) *Gate {
	return &Gate{sessions: sessions, cookie: cookie}
}

// Authorize returns the caller's identity, auth.ErrUnauthenticated, or a
// storage error.
func (g *Gate) Authorize(r *http.Request) (*identity.Identity, error) {
	return g.sessions.Resolve(r.Context(), session.ReadCookie(r, g.cookie))
}

func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Resolve session cookie
		user, err := g.Authorize(r)

		// 2. Unauthenticated callers are sent to the login form
		if errors.Is(err, auth.ErrUnauthenticated) {
			http.Redirect(w, r, LoginPath, RedirectStatus(r))
			return
		}

		// 3. Anything else is a storage failure
		if err != nil {
			logger.Error("access gate failed", map[string]any{
				"path":  r.URL.Path,
				"error": err,
			})
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		// 4. Attach identity to context
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user)))
	})
}

// RedirectStatus turns form posts into GETs on redirect.
func RedirectStatus(r *http.Request) int {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
