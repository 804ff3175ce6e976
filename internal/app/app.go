// Package app wires configuration to concrete stores and text sources for
// the command-line entry points.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/florstein/ledger-reconciler/internal/config"
	"github.com/florstein/ledger-reconciler/internal/gcsuploader"
	infraBQ "github.com/florstein/ledger-reconciler/internal/infra/bigquery"
	"github.com/florstein/ledger-reconciler/internal/infra/inmemory"
	"github.com/florstein/ledger-reconciler/internal/infra/sqlstore"
	"github.com/florstein/ledger-reconciler/internal/logger"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

// OpenStore opens the repository backend selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	log := logger.FromContext(ctx)

	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Debug().Msg("Using in-memory store")
		return inmemory.NewStore(), nil
	case config.DriverSQLite:
		store, err := sqlstore.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Debug().Str("path", cfg.Store.SQLitePath).Msg("Using sqlite store")
		return store, nil
	case config.DriverBigQuery:
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Debug().
			Str("project_id", cfg.BigQuery.ProjectID).
			Str("dataset", cfg.BigQuery.Dataset).
			Msg("Using BigQuery store")
		return repo, nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown store driver %q", cfg.Store.Driver)
	}
}

// schemaEnsurer is implemented by stores that can create their own tables.
type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// migrator is implemented by stores that migrate their tables in place.
type migrator interface {
	Migrate(ctx context.Context) error
}

// EnsureSchema creates or migrates the store's tables. Stores without a
// schema are left alone.
func EnsureSchema(ctx context.Context, store repository.Store) error {
	switch s := store.(type) {
	case schemaEnsurer:
		if err := s.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("EnsureSchema: %w", err)
		}
	case migrator:
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("EnsureSchema: %w", err)
		}
	}
	return nil
}

// TextSource reads extracted document text from a local path or, when a
// storage service is available, from a gs:// URI.
type TextSource struct {
	Storage gcsuploader.StorageService
}

// Read returns the text at uri.
func (s TextSource) Read(ctx context.Context, uri string) (string, error) {
	if gcsuploader.IsGCSURI(uri) {
		if s.Storage == nil {
			return "", fmt.Errorf("Read: %s: no storage service configured", uri)
		}
		text, err := s.Storage.FetchText(ctx, uri)
		if err != nil {
			return "", fmt.Errorf("Read: %w", err)
		}
		return text, nil
	}

	data, err := os.ReadFile(uri)
	if err != nil {
		return "", fmt.Errorf("Read: %w", err)
	}
	return string(data), nil
}
