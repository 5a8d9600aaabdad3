package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"

	"secrets-service/internal/auth"
	"secrets-service/internal/identity"
	"secrets-service/internal/logger"
)

// Service resolves local username/password presentations.
type Service struct {
	store  identity.Store
	hasher *Hasher

	dummyOnce sync.Once
	dummyHash string
}

func NewService(store identity.Store, hasher *Hasher) *Service {
	return &Service{store: store, hasher: hasher}
}

// NormalizeUsername is applied before every lookup and insert.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Register creates a password identity. It fails with
// auth.ErrDuplicateUsername when the username already has a password.
func (s *Service) Register(
	ctx context.Context,
	username string,
	email string,
	password string,
) (*identity.Identity, error) {

	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, auth.ErrInvalidInput
	}

	// 1. Cheap duplicate check before paying for the hash.
	// The unique index still decides races.
	_, err := s.store.FindLocal(ctx, username)
	switch {
	case err == nil:
		return nil, auth.ErrDuplicateUsername
	case !errors.Is(err, auth.ErrNotFound):
		return nil, err
	}

	// 2. Hash password
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. Insert credentials
	return s.store.UpsertByLocalCredential(ctx, identity.LocalCredential{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
	})
}

// Authenticate checks a username/password pair. Callers must not reveal
// to the client whether ErrNotFound or ErrInvalidCredential occurred.
func (s *Service) Authenticate(
	ctx context.Context,
	username string,
	password string,
) (*identity.Identity, error) {

	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, auth.ErrInvalidCredential
	}

	// 1. Find user + credentials
	user, err := s.store.FindLocal(ctx, username)
	if errors.Is(err, auth.ErrNotFound) {
		// spend the same time as a real check
		_, _ = s.hasher.VerifyPassword(s.dummy(), password)
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// 2. Verify password
	ok, err := s.hasher.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		logger.Error("stored password hash unusable", map[string]any{
			"user_id": user.ID,
			"error":   err,
		})
		return nil, auth.ErrInvalidCredential
	}
	if !ok {
		return nil, auth.ErrInvalidCredential
	}

	// 3. Upgrade legacy or outdated hashes
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	return user, nil
}

func (s *Service) rehash(ctx context.Context, user *identity.Identity, password string) {
	hash, err := s.hasher.HashPassword(password)
	if err == nil {
		err = s.store.SetPasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		logger.Warn("password rehash failed", map[string]any{
			"user_id": user.ID,
			"error":   err,
		})
		return
	}
	user.PasswordHash = hash
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.HashPassword("not-a-real-password")
	})
	return s.dummyHash
}
