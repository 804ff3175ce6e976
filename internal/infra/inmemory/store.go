// Package inmemory is a process-local repository. It is safe for concurrent
// use; data is lost when the process exits.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/match"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

type tables struct {
	sales          map[string]domain.SaleRecord
	counterparties map[string]domain.CounterpartyRecord
	transactions   map[string]domain.ReconciledTransaction
}

func newTables() *tables {
	return &tables{
		sales:          make(map[string]domain.SaleRecord),
		counterparties: make(map[string]domain.CounterpartyRecord),
		transactions:   make(map[string]domain.ReconciledTransaction),
	}
}

func (t *tables) clone() *tables {
	out := newTables()
	for k, v := range t.sales {
		out.sales[k] = v
	}
	for k, v := range t.counterparties {
		out.counterparties[k] = v
	}
	for k, v := range t.transactions {
		out.transactions[k] = v
	}
	return out
}

// Store keeps sales, counterparties and transactions in maps keyed by
// tenant and id.
type Store struct {
	// txMu serializes writers so a committing transaction never drops a
	// concurrent write.
	txMu sync.Mutex
	mu   sync.RWMutex
	data *tables
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newTables()}
}

func key(tenantID, id string) string {
	return tenantID + "/" + id
}

// SaveSale implements repository.Repository.
func (s *Store) SaveSale(ctx context.Context, sale domain.SaleRecord) error {
	if sale.ID == "" || sale.TenantID == "" {
		return fmt.Errorf("SaveSale: sale id and tenant id are required")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.sales[key(sale.TenantID, sale.ID)] = sale
	return nil
}

// SaveCounterparty implements repository.Repository.
func (s *Store) SaveCounterparty(ctx context.Context, rec domain.CounterpartyRecord) error {
	if rec.ID == "" || rec.TenantID == "" {
		return fmt.Errorf("SaveCounterparty: counterparty id and tenant id are required")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.counterparties[key(rec.TenantID, rec.ID)] = rec
	return nil
}

// SaveTransaction implements repository.Repository.
func (s *Store) SaveTransaction(ctx context.Context, tx domain.ReconciledTransaction) error {
	if tx.ID == "" || tx.TenantID == "" {
		return fmt.Errorf("SaveTransaction: transaction id and tenant id are required")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.transactions[key(tx.TenantID, tx.ID)] = tx
	return nil
}

// GetTransaction implements repository.Repository.
func (s *Store) GetTransaction(ctx context.Context, tenantID, id string) (domain.ReconciledTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data.transactions[key(tenantID, id)]
	if !ok {
		return domain.ReconciledTransaction{}, fmt.Errorf("GetTransaction: transaction %s: %w", id, repository.ErrNotFound)
	}
	return tx, nil
}

// FetchSaleCandidates implements match.SaleFetcher. Results are ordered by id.
func (s *Store) FetchSaleCandidates(ctx context.Context, q match.SaleQuery) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SaleRecord
	for _, sale := range s.data.sales {
		if q.Includes(sale) {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindCounterpartyByTaxID implements match.CounterpartyRegistry.
func (s *Store) FindCounterpartyByTaxID(ctx context.Context, tenantID, taxID string) (domain.CounterpartyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found domain.CounterpartyRecord
		ok    bool
	)
	for _, rec := range s.data.counterparties {
		if rec.TenantID != tenantID || rec.TaxID == "" || rec.TaxID != taxID {
			continue
		}
		// Lowest id wins when duplicates exist.
		if !ok || rec.ID < found.ID {
			found, ok = rec, true
		}
	}
	return found, ok, nil
}

// ListCounterparties implements match.CounterpartyRegistry.
func (s *Store) ListCounterparties(ctx context.Context, tenantID, suffix string) ([]domain.CounterpartyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CounterpartyRecord
	for _, rec := range s.data.counterparties {
		if rec.TenantID != tenantID {
			continue
		}
		if suffix != "" && rec.TaxIDSuffix != suffix {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WithinTx runs fn against a private copy of the data and publishes the copy
// only when fn succeeds. Transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := &Store{data: s.data.clone()}
	s.mu.RUnlock()

	if err := fn(ctx, work); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work.data
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements the repository contract.
var _ repository.Store = (*Store)(nil)
