package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const accessKeySetting = "access_key"

// Store is the local persistence gateway: one serialized model snapshot
// plus a handful of settings, of which the access key is the important one.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// LoadSnapshot returns the persisted model snapshot, or nil when none has
// been saved yet.
func (s *Store) LoadSnapshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		data, time.Now())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug().Int("bytes", len(data)).Msg("snapshot persisted")
	return nil
}

func (s *Store) ClearSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = 1"); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// AccessKey returns the stored access key, generating and persisting a
// fresh one on first run.
func (s *Store) AccessKey(ctx context.Context) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", accessKeySetting).Scan(&key)
	if err == nil && key != "" {
		return key, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("load access key: %w", err)
	}

	key, err = gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate access key: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?)", accessKeySetting, key); err != nil {
		return "", fmt.Errorf("store access key: %w", err)
	}

	s.logger.Info().Msg("generated new access key")
	return key, nil
}
