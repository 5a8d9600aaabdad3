package db

import (
	"context"
	"database/sql"
)

// DB wraps the shared connection pool.
type DB struct {
	*sql.DB
}

const identitiesMigration = `
CREATE TABLE IF NOT EXISTS identities (
    id uuid PRIMARY KEY,
    username text NOT NULL,
    email text,
    password_hash text,
    google_id text,
    facebook_id text,
    secret text,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT identities_has_credential CHECK (
        password_hash IS NOT NULL
        OR google_id IS NOT NULL
        OR facebook_id IS NOT NULL
    )
);

CREATE UNIQUE INDEX IF NOT EXISTS identities_local_username_unique
ON identities (username) WHERE password_hash IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS identities_google_id_unique
ON identities (google_id) WHERE google_id IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS identities_facebook_id_unique
ON identities (facebook_id) WHERE facebook_id IS NOT NULL;

CREATE INDEX IF NOT EXISTS identities_secret_holders_idx
ON identities (created_at) WHERE secret IS NOT NULL;
`

// RunIdentitiesMigration creates the identities table and its partial
// unique indexes. It is idempotent.
func RunIdentitiesMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, identitiesMigration)
	return err
}
