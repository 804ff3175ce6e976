// Package pipeline turns extracted document text into stored, reconciled
// transactions, and free-form sale receipts into expected sales.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/extract"
	"github.com/florstein/ledger-reconciler/internal/logger"
	"github.com/florstein/ledger-reconciler/internal/match"
	"github.com/florstein/ledger-reconciler/internal/normalize"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

const (
	// maxRawTextRunes bounds the document text kept with a transaction.
	maxRawTextRunes = 1900

	unknownLabel = "unknown"
)

// ErrNoTenant is returned when a request carries no tenant id.
var ErrNoTenant = errors.New("tenant id is required")

// ErrSaleWithoutAmount is returned when no amount could be read from a sale receipt.
var ErrSaleWithoutAmount = errors.New("sale receipt has no recognizable amount")

// ReconcileRequest is one document to reconcile.
type ReconcileRequest struct {
	TenantID   string
	SourceFile string
	Text       string
	// DocTypeHint overrides the classifier when it names a known type.
	DocTypeHint domain.DocType
}

// SaleRequest is one free-form sale receipt to record.
type SaleRequest struct {
	TenantID    string
	Text        string
	Description string
}

// Service runs the pipeline against a store.
type Service struct {
	store repository.Store
	cfg   match.Config
	newID func() string
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// NewService creates a service over store with the given matcher configuration.
func NewService(store repository.Store, cfg match.Config, opts ...Option) *Service {
	s := &Service{
		store: store,
		cfg:   cfg,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileDocument classifies and parses the text, resolves both parties,
// matches the transaction against open sales and stores the outcome. All
// reads and writes happen in one unit of work.
func (s *Service) ReconcileDocument(ctx context.Context, req ReconcileRequest) (domain.ReconciledTransaction, error) {
	if req.TenantID == "" {
		return domain.ReconciledTransaction{}, fmt.Errorf("ReconcileDocument: %w", ErrNoTenant)
	}

	txID := s.newID()
	log := logger.FromContext(ctx).With().
		Str("tenant_id", req.TenantID).
		Str("transaction_id", txID).
		Str("source_file", req.SourceFile).
		Logger()
	ctx = logger.WithContext(ctx, log)

	var state *PipelineState
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		state = &PipelineState{
			Repo:        repo,
			TenantID:    req.TenantID,
			SourceFile:  req.SourceFile,
			Text:        req.Text,
			DocTypeHint: req.DocTypeHint,
			Transaction: domain.ReconciledTransaction{ID: txID},
		}
		return NewReconciliationPipeline(s.cfg, s.newID).Execute(ctx, state)
	})
	if err != nil {
		log.Error().Err(err).Msg("Reconciliation failed")
		return domain.ReconciledTransaction{}, fmt.Errorf("ReconcileDocument: %w", err)
	}

	tx := state.Transaction
	log.Info().
		Str("doc_type", string(state.Document.DocType)).
		Str("match_status", string(tx.MatchStatus)).
		Str("match_method", string(tx.MatchMethod)).
		Int("score", tx.MatchScore).
		Str("matched_sale_id", tx.MatchedSaleID).
		Bool("needs_review", tx.NeedsReview).
		Msg("Document reconciled")
	return tx, nil
}

// IngestSale parses a free-form sale receipt and stores it as an open sale
// in ARS. A receipt without a date is dated now.
func (s *Service) IngestSale(ctx context.Context, req SaleRequest) (domain.SaleRecord, error) {
	if req.TenantID == "" {
		return domain.SaleRecord{}, fmt.Errorf("IngestSale: %w", ErrNoTenant)
	}

	draft := extract.ParseSale(req.Text)
	if !draft.Amount.Valid {
		return domain.SaleRecord{}, fmt.Errorf("IngestSale: %w", ErrSaleWithoutAmount)
	}

	sale := SaleFromDraft(draft, req.TenantID, s.newID(), s.now())
	sale.Description = req.Description

	if err := s.store.SaveSale(ctx, sale); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("IngestSale: saving sale: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("tenant_id", sale.TenantID).
		Str("sale_id", sale.ID).
		Str("amount", sale.Amount.String()).
		Str("datetime", sale.Datetime).
		Msg("Sale ingested")
	return sale, nil
}

// SaleFromDraft fills a SaleRecord from parser output. The draft must carry
// an amount.
func SaleFromDraft(draft domain.SaleDraft, tenantID, id string, now time.Time) domain.SaleRecord {
	at := domain.StrVal(draft.Datetime)
	if at == "" {
		at = now.Format(normalize.ISOLayout)
	}
	return domain.SaleRecord{
		ID:            id,
		TenantID:      tenantID,
		Datetime:      at,
		Currency:      match.DefaultCurrency,
		Amount:        draft.Amount.Decimal,
		CustomerName:  domain.StrVal(draft.CustomerName),
		CustomerTaxID: domain.StrVal(draft.CustomerTaxID),
		CustomerPhone: domain.StrVal(draft.CustomerPhone),
		ExternalRef:   domain.StrVal(draft.ExternalRef),
		Status:        domain.SaleStatusOpen,
	}
}

// storedRecord fills the labels a stored transaction always carries.
func storedRecord(rec domain.TransactionRecord) domain.TransactionRecord {
	if rec.SourceSystem == nil {
		rec.SourceSystem = domain.StrPtr(unknownLabel)
	}
	if rec.DocType == nil {
		rec.DocType = domain.StrPtr(unknownLabel)
	}
	if rec.Currency == nil {
		rec.Currency = domain.StrPtr(match.DefaultCurrency)
	}
	if rec.OperationIDType == nil {
		rec.OperationIDType = domain.StrPtr(unknownLabel)
	}
	if rec.Direction == "" {
		rec.Direction = domain.DirectionUnknown
	}
	return rec
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
