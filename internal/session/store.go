package session

import (
	"context"
	"time"
)

// Session binds an opaque token to an identity id.
// It intentionally stores only identity pointers, not auth state.
type Session struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	ExpiresAt         time.Time `json:"expires_at"`          // idle expiry
	AbsoluteExpiresAt time.Time `json:"absolute_expires_at"` // hard cap
}

// Store defines how sessions are stored and retrieved. Only the Manager
// talks to a Store.
type Store interface {
	Create(ctx context.Context, s Session) error
	// Get returns (nil, nil) when the session does not exist.
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
