// Package sqlstore is the relational repository, backed by SQLite through GORM.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/match"
	"github.com/florstein/ledger-reconciler/internal/normalize"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

// Store implements repository.Store on a GORM connection. A Store created by
// WithTx is bound to that transaction.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path (":memory:" for a private
// in-memory database) and migrates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("Open: connecting to %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("Open: getting sql.DB: %w", err)
	}
	// SQLite allows a single writer, and every connection to ":memory:"
	// would otherwise see its own database.
	sqlDB.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection without migrating.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a new store instance bound to the given transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("Migrate: auto-migrating: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("Close: getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// WithinTx runs fn inside a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, s.WithTx(tx))
	})
}

func (s *Store) upsert(ctx context.Context, model any) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

// SaveSale implements repository.Repository.
func (s *Store) SaveSale(ctx context.Context, sale domain.SaleRecord) error {
	if err := s.upsert(ctx, saleModelFromDomain(sale)); err != nil {
		return fmt.Errorf("SaveSale: upserting %s: %w", sale.ID, err)
	}
	return nil
}

// SaveCounterparty implements repository.Repository.
func (s *Store) SaveCounterparty(ctx context.Context, rec domain.CounterpartyRecord) error {
	if err := s.upsert(ctx, counterpartyModelFromDomain(rec)); err != nil {
		return fmt.Errorf("SaveCounterparty: upserting %s: %w", rec.ID, err)
	}
	return nil
}

// SaveTransaction implements repository.Repository.
func (s *Store) SaveTransaction(ctx context.Context, tx domain.ReconciledTransaction) error {
	if err := s.upsert(ctx, transactionModelFromDomain(tx)); err != nil {
		return fmt.Errorf("SaveTransaction: upserting %s: %w", tx.ID, err)
	}
	return nil
}

// GetTransaction implements repository.Repository.
func (s *Store) GetTransaction(ctx context.Context, tenantID, id string) (domain.ReconciledTransaction, error) {
	var m TransactionModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ReconciledTransaction{}, fmt.Errorf("GetTransaction: transaction %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return domain.ReconciledTransaction{}, fmt.Errorf("GetTransaction: querying %s: %w", id, err)
	}
	return m.ToDomain(), nil
}

// FetchSaleCandidates implements match.SaleFetcher.
func (s *Store) FetchSaleCandidates(ctx context.Context, q match.SaleQuery) ([]domain.SaleRecord, error) {
	query := s.db.WithContext(ctx).
		Where("tenant_id = ?", q.TenantID).
		Where("UPPER(currency) = UPPER(?)", q.Currency).
		Where("amount >= ? AND amount <= ?", q.MinAmount, q.MaxAmount)
	if !q.From.IsZero() {
		query = query.Where("datetime >= ?", q.From.Format(normalize.ISOLayout))
	}
	if !q.To.IsZero() {
		query = query.Where("datetime <= ?", q.To.Format(normalize.ISOLayout))
	}

	var rows []SaleModel
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("FetchSaleCandidates: querying sales: %w", err)
	}

	out := make([]domain.SaleRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// FindCounterpartyByTaxID implements match.CounterpartyRegistry.
func (s *Store) FindCounterpartyByTaxID(ctx context.Context, tenantID, taxID string) (domain.CounterpartyRecord, bool, error) {
	if taxID == "" {
		return domain.CounterpartyRecord{}, false, nil
	}
	var rows []CounterpartyModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND tax_id = ?", tenantID, taxID).
		Order("id").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return domain.CounterpartyRecord{}, false, fmt.Errorf("FindCounterpartyByTaxID: querying: %w", err)
	}
	if len(rows) == 0 {
		return domain.CounterpartyRecord{}, false, nil
	}
	return rows[0].ToDomain(), true, nil
}

// ListCounterparties implements match.CounterpartyRegistry.
func (s *Store) ListCounterparties(ctx context.Context, tenantID, suffix string) ([]domain.CounterpartyRecord, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if suffix != "" {
		query = query.Where("tax_id_suffix = ?", suffix)
	}

	var rows []CounterpartyModel
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListCounterparties: querying: %w", err)
	}

	out := make([]domain.CounterpartyRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Ensure Store implements the repository contract.
var _ repository.Store = (*Store)(nil)
