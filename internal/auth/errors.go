package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the addressed identity does not exist: no local
	// identity owns the username, or no identity has the given id.
	ErrNotFound          = errors.New("identity not found")
	// ErrInvalidCredential means the password did not match.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrDuplicateUsername means a local identity already owns the username.
	ErrDuplicateUsername = errors.New("username already registered")
	// ErrInvalidInput covers malformed registration or login forms.
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthenticated   = errors.New("unauthenticated")
	// ErrProviderFailure means the OAuth exchange or profile fetch failed.
	ErrProviderFailure   = errors.New("provider failure")
	// ErrStorage marks persistence failures. They are the only errors
	// that surface to the client as a server error.
	ErrStorage           = errors.New("storage failure")
)

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.op, e.err)
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorage, e.err}
}

// StorageError tags err as a persistence failure of op. Nil stays nil.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}

// ProviderError tags err as a failure talking to an external provider.
func ProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrProviderFailure, provider, err)
}
