package session

import (
	"context"
	"errors"
	"time"

	"secrets-service/internal/auth"
	"secrets-service/internal/identity"
	"secrets-service/internal/logger"
)

// IdentityLookup re-fetches the identity behind a session.
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (*identity.Identity, error)
}

type Config struct {
	// IdleTimeout is the sliding window a session survives without use.
	IdleTimeout time.Duration
	// AbsoluteTimeout caps a session's lifetime regardless of use.
	AbsoluteTimeout time.Duration
	// TouchInterval limits how often use extends the idle expiry.
	TouchInterval time.Duration
}

// Manager owns every read and write of session records.
type Manager struct {
	store      Store
	identities IdentityLookup
	cfg        Config
	now        func() time.Time
}

func NewManager(store Store, identities IdentityLookup, cfg Config) *Manager {
	if cfg.TouchInterval <= 0 {
		cfg.TouchInterval = time.Minute
	}
	return &Manager{
		store:      store,
		identities: identities,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Start creates a session for id. The returned session's id is the
// only thing handed to the client.
func (m *Manager) Start(ctx context.Context, id *identity.Identity) (*Session, error) {
	if id == nil || id.ID == "" {
		return nil, errors.New("session: identity required")
	}

	sessionID, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	absolute := now.Add(m.cfg.AbsoluteTimeout)

	sess := Session{
		SessionID:         sessionID,
		UserID:            id.ID,
		CreatedAt:         now,
		LastSeenAt:        now,
		ExpiresAt:         earliest(now.Add(m.cfg.IdleTimeout), absolute),
		AbsoluteExpiresAt: absolute,
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, auth.StorageError("session.create", err)
	}

	return &sess, nil
}

// Resolve maps a token back to its current identity. Missing, unknown,
// expired and orphaned tokens all yield auth.ErrUnauthenticated.
func (m *Manager) Resolve(ctx context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, auth.ErrUnauthenticated
	}

	sess, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, auth.StorageError("session.get", err)
	}
	if sess == nil {
		return nil, auth.ErrUnauthenticated
	}

	now := m.now()
	if now.After(sess.ExpiresAt) || now.After(sess.AbsoluteExpiresAt) {
		m.discard(ctx, token, "expired")
		return nil, auth.ErrUnauthenticated
	}

	user, err := m.identities.FindByID(ctx, sess.UserID)
	if errors.Is(err, auth.ErrNotFound) {
		m.discard(ctx, token, "orphaned")
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	m.touch(ctx, *sess, now)

	return user, nil
}

// End destroys the session. Ending an unknown token is not an error.
func (m *Manager) End(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return auth.StorageError("session.delete", err)
	}
	return nil
}

func (m *Manager) touch(ctx context.Context, sess Session, now time.Time) {
	next := earliest(now.Add(m.cfg.IdleTimeout), sess.AbsoluteExpiresAt)
	if next.Sub(sess.ExpiresAt) < m.cfg.TouchInterval {
		return
	}

	sess.LastSeenAt = now
	sess.ExpiresAt = next

	if err := m.store.Update(ctx, sess); err != nil {
		logger.Warn("session touch failed", map[string]any{
			"user_id": sess.UserID,
			"error":   err,
		})
	}
}

func (m *Manager) discard(ctx context.Context, token, reason string) {
	if err := m.store.Delete(ctx, token); err != nil {
		logger.Warn("session cleanup failed", map[string]any{
			"reason": reason,
			"error":  err,
		})
	}
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
