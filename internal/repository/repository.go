// Package repository declares the persistence contract shared by the
// pipeline and the store implementations, so neither has to import the other.
package repository

import (
	"context"
	"errors"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/match"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("not found")

// Repository provides the reads the reconciliation engine needs and the
// writes the pipeline performs. All operations are scoped to one tenant.
type Repository interface {
	match.SaleFetcher
	match.CounterpartyRegistry

	// SaveCounterparty inserts or replaces a registry entry.
	SaveCounterparty(ctx context.Context, rec domain.CounterpartyRecord) error

	// SaveSale inserts or replaces an expected sale.
	SaveSale(ctx context.Context, sale domain.SaleRecord) error

	// SaveTransaction inserts or replaces a reconciled transaction.
	SaveTransaction(ctx context.Context, tx domain.ReconciledTransaction) error

	// GetTransaction returns ErrNotFound when id is unknown for the tenant.
	GetTransaction(ctx context.Context, tenantID, id string) (domain.ReconciledTransaction, error)
}

// Store is a Repository that can group operations into one unit of work.
type Store interface {
	Repository

	// WithinTx runs fn against a repository bound to a single transaction.
	// The work is committed when fn returns nil and rolled back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	// Close releases the underlying connection.
	Close() error
}
