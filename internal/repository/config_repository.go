package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront-backend/internal/models"
)

// ConfigRepository is a small key/value store holding JSON values
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the raw value stored under key. A missing key yields nil and
// no error.
func (r *ConfigRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.StoreError("failed to get config", err)
	}
	return []byte(value), nil
}

// Put upserts the value stored under key
func (r *ConfigRepository) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return models.StoreError("failed to save config", err)
	}
	return nil
}
