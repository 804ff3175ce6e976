// Package bigquery stores sales, counterparties and reconciled transactions
// in BigQuery tables.
package bigquery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/bigquery"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/match"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

// Repository is the BigQuery implementation of repository.Store. It holds a
// shared client to avoid creating a new connection for each operation.
type Repository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewRepository creates a repository with its own client for projectID.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, Dataset{ProjectID: projectID, DatasetID: datasetID}), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, ds Dataset) *Repository {
	return &Repository{client: client, ds: ds}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureSchema creates any missing table.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return EnsureSchemaWithClient(ctx, r.client, r.ds)
}

// SaveSale delegates to UpsertSaleWithClient.
func (r *Repository) SaveSale(ctx context.Context, sale domain.SaleRecord) error {
	return UpsertSaleWithClient(ctx, r.client, r.ds, sale)
}

// SaveCounterparty delegates to UpsertCounterpartyWithClient.
func (r *Repository) SaveCounterparty(ctx context.Context, rec domain.CounterpartyRecord) error {
	return UpsertCounterpartyWithClient(ctx, r.client, r.ds, rec)
}

// SaveTransaction delegates to UpsertTransactionWithClient.
func (r *Repository) SaveTransaction(ctx context.Context, tx domain.ReconciledTransaction) error {
	return UpsertTransactionWithClient(ctx, r.client, r.ds, tx)
}

// GetTransaction delegates to GetTransactionWithClient.
func (r *Repository) GetTransaction(ctx context.Context, tenantID, id string) (domain.ReconciledTransaction, error) {
	return GetTransactionWithClient(ctx, r.client, r.ds, tenantID, id)
}

// FetchSaleCandidates delegates to FetchSaleCandidatesWithClient.
func (r *Repository) FetchSaleCandidates(ctx context.Context, q match.SaleQuery) ([]domain.SaleRecord, error) {
	return FetchSaleCandidatesWithClient(ctx, r.client, r.ds, q)
}

// FindCounterpartyByTaxID delegates to FindCounterpartyByTaxIDWithClient.
func (r *Repository) FindCounterpartyByTaxID(ctx context.Context, tenantID, taxID string) (domain.CounterpartyRecord, bool, error) {
	return FindCounterpartyByTaxIDWithClient(ctx, r.client, r.ds, tenantID, taxID)
}

// ListCounterparties delegates to ListCounterpartiesWithClient.
func (r *Repository) ListCounterparties(ctx context.Context, tenantID, suffix string) ([]domain.CounterpartyRecord, error) {
	return ListCounterpartiesWithClient(ctx, r.client, r.ds, tenantID, suffix)
}

// WithinTx buffers the writes fn makes and applies them once fn returns nil.
// Reads inside fn see the buffered writes. BigQuery DML statements commit
// one at a time, so a failure while flushing can leave earlier writes applied.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	uow := newUnitOfWork(r)
	if err := fn(ctx, uow); err != nil {
		return err
	}
	return uow.flush(ctx)
}

// unitOfWork overlays pending writes on top of the repository.
type unitOfWork struct {
	base *Repository

	mu             sync.Mutex
	sales          []domain.SaleRecord
	counterparties []domain.CounterpartyRecord
	transactions   []domain.ReconciledTransaction
}

func newUnitOfWork(base *Repository) *unitOfWork {
	return &unitOfWork{base: base}
}

func (u *unitOfWork) SaveSale(ctx context.Context, sale domain.SaleRecord) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sales = append(u.sales, sale)
	return nil
}

func (u *unitOfWork) SaveCounterparty(ctx context.Context, rec domain.CounterpartyRecord) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counterparties = append(u.counterparties, rec)
	return nil
}

func (u *unitOfWork) SaveTransaction(ctx context.Context, tx domain.ReconciledTransaction) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.transactions = append(u.transactions, tx)
	return nil
}

func (u *unitOfWork) GetTransaction(ctx context.Context, tenantID, id string) (domain.ReconciledTransaction, error) {
	u.mu.Lock()
	for i := len(u.transactions) - 1; i >= 0; i-- {
		if t := u.transactions[i]; t.TenantID == tenantID && t.ID == id {
			u.mu.Unlock()
			return t, nil
		}
	}
	u.mu.Unlock()
	return u.base.GetTransaction(ctx, tenantID, id)
}

func (u *unitOfWork) FetchSaleCandidates(ctx context.Context, q match.SaleQuery) ([]domain.SaleRecord, error) {
	stored, err := u.base.FetchSaleCandidates(ctx, q)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	pending := append([]domain.SaleRecord(nil), u.sales...)
	u.mu.Unlock()

	byID := make(map[string]domain.SaleRecord, len(stored)+len(pending))
	for _, s := range stored {
		byID[s.ID] = s
	}
	for _, s := range pending {
		if q.Includes(s) {
			byID[s.ID] = s
		} else {
			delete(byID, s.ID)
		}
	}
	out := make([]domain.SaleRecord, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// overlayCounterparties replaces stored entries with pending ones of the
// same id and adds new pending entries accepted by keep.
func (u *unitOfWork) overlayCounterparties(stored []domain.CounterpartyRecord, keep func(domain.CounterpartyRecord) bool) []domain.CounterpartyRecord {
	u.mu.Lock()
	pending := append([]domain.CounterpartyRecord(nil), u.counterparties...)
	u.mu.Unlock()

	byID := make(map[string]domain.CounterpartyRecord, len(stored)+len(pending))
	for _, c := range stored {
		byID[c.ID] = c
	}
	for _, c := range pending {
		if keep(c) {
			byID[c.ID] = c
		} else {
			delete(byID, c.ID)
		}
	}
	out := make([]domain.CounterpartyRecord, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (u *unitOfWork) FindCounterpartyByTaxID(ctx context.Context, tenantID, taxID string) (domain.CounterpartyRecord, bool, error) {
	if taxID == "" {
		return domain.CounterpartyRecord{}, false, nil
	}
	var stored []domain.CounterpartyRecord
	rec, found, err := u.base.FindCounterpartyByTaxID(ctx, tenantID, taxID)
	if err != nil {
		return domain.CounterpartyRecord{}, false, err
	}
	if found {
		stored = append(stored, rec)
	}
	merged := u.overlayCounterparties(stored, func(c domain.CounterpartyRecord) bool {
		return c.TenantID == tenantID && c.TaxID == taxID
	})
	if len(merged) == 0 {
		return domain.CounterpartyRecord{}, false, nil
	}
	return merged[0], true, nil
}

func (u *unitOfWork) ListCounterparties(ctx context.Context, tenantID, suffix string) ([]domain.CounterpartyRecord, error) {
	stored, err := u.base.ListCounterparties(ctx, tenantID, suffix)
	if err != nil {
		return nil, err
	}
	return u.overlayCounterparties(stored, func(c domain.CounterpartyRecord) bool {
		return c.TenantID == tenantID && (suffix == "" || c.TaxIDSuffix == suffix)
	}), nil
}

// flush writes counterparties, then sales, then transactions.
func (u *unitOfWork) flush(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, c := range u.counterparties {
		if err := u.base.SaveCounterparty(ctx, c); err != nil {
			return fmt.Errorf("WithinTx: flushing counterparty %s: %w", c.ID, err)
		}
	}
	for _, s := range u.sales {
		if err := u.base.SaveSale(ctx, s); err != nil {
			return fmt.Errorf("WithinTx: flushing sale %s: %w", s.ID, err)
		}
	}
	for _, t := range u.transactions {
		if err := u.base.SaveTransaction(ctx, t); err != nil {
			return fmt.Errorf("WithinTx: flushing transaction %s: %w", t.ID, err)
		}
	}
	return nil
}

// Ensure Repository implements the repository contract.
var (
	_ repository.Store      = (*Repository)(nil)
	_ repository.Repository = (*unitOfWork)(nil)
)
