package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"secrets-service/internal/auth"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// identityRecord is the gorm model of the identities table.
type identityRecord struct {
	ID           string `gorm:"primaryKey;type:text"`
	Username     string `gorm:"not null;index"`
	Email        *string
	PasswordHash *string `gorm:"check:identities_has_credential,password_hash IS NOT NULL OR google_id IS NOT NULL OR facebook_id IS NOT NULL"`
	GoogleID     *string
	FacebookID   *string
	Secret       *string
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

func (identityRecord) TableName() string {
	return "identities"
}

var sqliteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_local_username_unique
	 ON identities (username) WHERE password_hash IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_google_id_unique
	 ON identities (google_id) WHERE google_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_facebook_id_unique
	 ON identities (facebook_id) WHERE facebook_id IS NOT NULL`,
}

// SQLiteStore is a gorm-backed Store for local development and tests.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (and migrates) the database at dsn.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("identity: open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("identity: sqlite pool: %w", err)
	}
	// sqlite allows a single writer; one connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&identityRecord{}); err != nil {
		return nil, fmt.Errorf("identity: migrate sqlite: %w", err)
	}
	for _, stmt := range sqliteIndexes {
		if err := gdb.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("identity: create index: %w", err)
		}
	}

	return &SQLiteStore{db: gdb}, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	var rec identityRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	return s.found(&rec, err, "identity.find_by_id")
}

func (s *SQLiteStore) FindLocal(ctx context.Context, username string) (*Identity, error) {
	var rec identityRecord
	err := s.db.WithContext(ctx).
		Where("username = ? AND password_hash IS NOT NULL", username).
		First(&rec).Error
	return s.found(&rec, err, "identity.find_local")
}

func (s *SQLiteStore) UpsertByLocalCredential(ctx context.Context, cred LocalCredential) (*Identity, error) {
	if cred.Username == "" || cred.PasswordHash == "" {
		return nil, auth.ErrInvalidInput
	}

	rec := identityRecord{
		ID:           uuid.NewString(),
		Username:     cred.Username,
		Email:        optional(cred.Email),
		PasswordHash: optional(cred.PasswordHash),
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, auth.ErrDuplicateUsername
		}
		return nil, auth.StorageError("identity.upsert_local", err)
	}

	return rec.toIdentity(), nil
}

func (s *SQLiteStore) UpsertByProviderID(
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

	rec := identityRecord{
		ID:       uuid.NewString(),
		Username: displayName,
	}
	switch provider {
	case ProviderGoogle:
		rec.GoogleID = &providerID
	case ProviderFacebook:
		rec.FacebookID = &providerID
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: col}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{gorm.Expr(col + " IS NOT NULL")}},
			DoNothing:   true,
		}).
		Create(&rec).Error
	if err != nil {
		return nil, auth.StorageError("identity.upsert_provider", err)
	}

	var found identityRecord
	err = s.db.WithContext(ctx).Where(col+" = ?", providerID).First(&found).Error
	return s.found(&found, err, "identity.upsert_provider")
}

func (s *SQLiteStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, id, "password_hash", hash, "identity.set_password_hash")
}

func (s *SQLiteStore) SetSecret(ctx context.Context, id, text string) error {
	return s.update(ctx, id, "secret", text, "identity.set_secret")
}

func (s *SQLiteStore) ListSecretHolders(ctx context.Context) ([]SecretHolder, error) {
	var recs []identityRecord
	err := s.db.WithContext(ctx).
		Where("secret IS NOT NULL").
		Order("created_at, id").
		Find(&recs).Error
	if err != nil {
		return nil, auth.StorageError("identity.list_secret_holders", err)
	}

	holders := make([]SecretHolder, 0, len(recs))
	for _, r := range recs {
		holders = append(holders, SecretHolder{
			ID:       r.ID,
			Username: r.Username,
			Secret:   *r.Secret,
		})
	}
	return holders, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) update(ctx context.Context, id, column, value, op string) error {
	res := s.db.WithContext(ctx).
		Model(&identityRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			column:       value,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return auth.StorageError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) found(rec *identityRecord, err error, op string) (*Identity, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.StorageError(op, err)
	}
	return rec.toIdentity(), nil
}

func (r *identityRecord) toIdentity() *Identity {
	return &Identity{
		ID:           r.ID,
		Username:     r.Username,
		Email:        deref(r.Email),
		PasswordHash: deref(r.PasswordHash),
		GoogleID:     deref(r.GoogleID),
		FacebookID:   deref(r.FacebookID),
		Secret:       r.Secret,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
