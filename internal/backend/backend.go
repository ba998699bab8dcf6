// Package backend selects and constructs the persistence backend from
// configuration.
package backend

import (
	"fmt"
	"log/slog"

	"saldo/internal/config"
	"saldo/internal/storage"
	"saldo/internal/storage/supabase"
)

type Type string

const (
	SQLiteBackend   Type = "sqlite"
	SupabaseBackend Type = "supabase"
)

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, SupabaseBackend:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Create builds the configured store. The SQLite backend runs
// migrations on open; the Supabase backend expects the schema to exist.
func Create(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backendType := Type(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	switch backendType {
	case SQLiteBackend:
		logger.Info("Using SQLite backend", "path", cfg.SQLiteDBPath)
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("create sqlite backend: %w", err)
		}
		return repo, nil

	case SupabaseBackend:
		logger.Info("Using Supabase backend", "url", cfg.SupabaseURL)
		repo, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, fmt.Errorf("create supabase backend: %w", err)
		}
		return repo, nil
	}

	return nil, fmt.Errorf("unhandled backend type: %s", backendType)
}
