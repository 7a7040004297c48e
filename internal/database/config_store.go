// internal/database/config_store.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	custom_errors "portfolio-sync/internal/errors"
	"portfolio-sync/internal/model"
)

const (
	ensureConfigSQL = `INSERT INTO sync_config (id, interval_minutes) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`

	selectConfigSQL = `SELECT enabled, username, include_topics, interval_minutes, last_run_at,
       last_result_created, last_result_failed, updated_at
FROM sync_config WHERE id = 1`

	updateConfigSQL = `UPDATE sync_config
SET enabled = $1, username = $2, include_topics = $3, interval_minutes = $4, last_run_at = $5,
    last_result_created = $6, last_result_failed = $7, updated_at = now()
WHERE id = 1
RETURNING updated_at`
)

// ConfigStore persists the singleton SyncConfig in the sync_config table.
type ConfigStore struct {
	db              TxBeginner
	defaultInterval int
}

// NewConfigStore creates a ConfigStore; rows created by EnsureExists start with defaultInterval.
func NewConfigStore(db TxBeginner, defaultInterval int) *ConfigStore {
	return &ConfigStore{db: db, defaultInterval: model.CoerceInterval(defaultInterval)}
}

// EnsureExists inserts the singleton row if it is missing. Safe to run concurrently.
func (s *ConfigStore) EnsureExists(ctx context.Context) error {
	_, err := s.db.Exec(ctx, ensureConfigSQL, s.defaultInterval)
	return err
}

// Get reads the config, returning ErrConfigNotFound if the row does not exist.
func (s *ConfigStore) Get(ctx context.Context) (model.SyncConfig, error) {
	return getConfig(ctx, s.db, selectConfigSQL)
}

// Upsert applies patch to the config inside a transaction, creating the row first if needed.
func (s *ConfigStore) Upsert(ctx context.Context, patch model.SyncConfigPatch) (model.SyncConfig, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.SyncConfig{}, err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	if _, err := tx.Exec(ctx, ensureConfigSQL, s.defaultInterval); err != nil {
		return model.SyncConfig{}, err
	}

	current, err := getConfig(ctx, tx, selectConfigSQL+" FOR UPDATE")
	if err != nil {
		return model.SyncConfig{}, err
	}

	updated := current.Apply(patch)
	var created, failed *int
	if updated.LastResult != nil {
		created, failed = &updated.LastResult.Created, &updated.LastResult.Failed
	}

	err = tx.QueryRow(ctx, updateConfigSQL,
		updated.Enabled,
		updated.Username,
		updated.IncludeTopics,
		updated.IntervalMinutes,
		updated.LastRunAt,
		created,
		failed,
	).Scan(&updated.UpdatedAt)
	if err != nil {
		return model.SyncConfig{}, err
	}

	return updated, tx.Commit(ctx)
}

func getConfig(ctx context.Context, db DBTX, query string) (model.SyncConfig, error) {
	var (
		cfg             model.SyncConfig
		lastRunAt       *time.Time
		created, failed *int32
	)
	err := db.QueryRow(ctx, query).Scan(
		&cfg.Enabled,
		&cfg.Username,
		&cfg.IncludeTopics,
		&cfg.IntervalMinutes,
		&lastRunAt,
		&created,
		&failed,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncConfig{}, custom_errors.ErrConfigNotFound
	}
	if err != nil {
		return model.SyncConfig{}, err
	}

	cfg.LastRunAt = lastRunAt
	if created != nil && failed != nil {
		cfg.LastResult = &model.SyncResult{Created: int(*created), Failed: int(*failed)}
	}
	cfg.IntervalMinutes = model.CoerceInterval(cfg.IntervalMinutes)
	return cfg, nil
}
