package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"secrets-service/internal/auth"
	"secrets-service/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	identityColumns = `id, username, email, password_hash, google_id, facebook_id, secret, created_at, updated_at`

	uniqueViolation         = "23505"
	localUsernameConstraint = "identities_local_username_unique"
)

// PostgresStore is the production Store backed by lib/pq.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, auth.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE id = $1
	`, id)

	return scanIdentity(row, "identity.find_by_id")
}

func (s *PostgresStore) FindLocal(ctx context.Context, username string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE username = $1
		  AND password_hash IS NOT NULL
	`, username)

	return scanIdentity(row, "identity.find_local")
}

func (s *PostgresStore) UpsertByLocalCredential(ctx context.Context, cred LocalCredential) (*Identity, error) {
	if cred.Username == "" || cred.PasswordHash == "" {
		return nil, auth.ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO identities (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+identityColumns,
		uuid.NewString(),
		cred.Username,
		nullString(cred.Email),
		cred.PasswordHash,
	)

	id, err := scanIdentity(row, "identity.upsert_local")
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) &&
			pqErr.Code == uniqueViolation &&
			pqErr.Constraint == localUsernameConstraint {
			return nil, auth.ErrDuplicateUsername
		}
		return nil, err
	}

	return id, nil
}

func (s *PostgresStore) UpsertByProviderID(
	ctx context.Context,
	provider string,
	providerID string,
	displayName string,
) (*Identity, error) {

	col, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	if providerID == "" {
		return nil, auth.ErrInvalidInput
	}

	// The no-op update makes RETURNING yield the existing row on conflict,
	// so lookup and creation happen in one statement.
	query := fmt.Sprintf(`
		INSERT INTO identities (id, username, %[1]s)
		VALUES ($1, $2, $3)
		ON CONFLICT (%[1]s) WHERE %[1]s IS NOT NULL
		DO UPDATE SET %[1]s = EXCLUDED.%[1]s
		RETURNING %[2]s
	`, col, identityColumns)

	row := s.db.QueryRowContext(ctx, query, uuid.NewString(), displayName, providerID)

	return scanIdentity(row, "identity.upsert_provider")
}

func (s *PostgresStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE identities
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, hash)

	return checkAffected(res, err, "identity.set_password_hash")
}

func (s *PostgresStore) SetSecret(ctx context.Context, id, text string) error {
	if _, err := uuid.Parse(id); err != nil {
		return auth.ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE identities
		SET secret = $2, updated_at = NOW()
		WHERE id = $1
	`, id, text)

	return checkAffected(res, err, "identity.set_secret")
}

func (s *PostgresStore) ListSecretHolders(ctx context.Context) ([]SecretHolder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, secret
		FROM identities
		WHERE secret IS NOT NULL
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, auth.StorageError("identity.list_secret_holders", err)
	}
	defer rows.Close()

	var holders []SecretHolder
	for rows.Next() {
		var h SecretHolder
		if err := rows.Scan(&h.ID, &h.Username, &h.Secret); err != nil {
			return nil, auth.StorageError("identity.list_secret_holders", err)
		}
		holders = append(holders, h)
	}

	if err := rows.Err(); err != nil {
		return nil, auth.StorageError("identity.list_secret_holders", err)
	}

	return holders, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanIdentity(row *sql.Row, op string) (*Identity, error) {
	var (
		i                                         Identity
		email, hash, googleID, facebookID, secret sql.NullString
	)

	err := row.Scan(
		&i.ID,
		&i.Username,
		&email,
		&hash,
		&googleID,
		&facebookID,
		&secret,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.StorageError(op, err)
	}

	i.Email = email.String
	i.PasswordHash = hash.String
	i.GoogleID = googleID.String
	i.FacebookID = facebookID.String
	if secret.Valid {
		i.Secret = &secret.String
	}

	return &i, nil
}

func checkAffected(res sql.Result, err error, op string) error {
	if err != nil {
		return auth.StorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return auth.StorageError(op, err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
