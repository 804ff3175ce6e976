package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/extract"
	"github.com/florstein/ledger-reconciler/internal/logger"
	"github.com/florstein/ledger-reconciler/internal/match"
	"github.com/florstein/ledger-reconciler/internal/normalize"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

// PipelineStep represents a single step in the reconciliation pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	// Repo is bound to the unit of work the pipeline runs in.
	Repo repository.Repository

	TenantID    string
	SourceFile  string
	Text        string
	DocTypeHint domain.DocType

	Document    domain.ExtractedDocument
	Record      domain.TransactionRecord
	Transaction domain.ReconciledTransaction

	// CreatedProvisional is set when a counterparty had to be created
	// because the registry had no match for an extracted identity.
	CreatedProvisional bool
	SaleResult         domain.MatchResult
}

// Step 1: ClassifyStep assigns a document type, preferring a known hint.
type ClassifyStep struct{}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Document = extract.ClassifyDocument(state.Text, state.DocTypeHint)

	log := logger.FromContext(ctx)
	log.Debug().
		Str("doc_type", string(state.Document.DocType)).
		Bool("hinted", state.DocTypeHint.IsKnown()).
		Msg("Document classified")
	return nil
}

// Step 2: ParseStep runs the field parser for the document type.
type ParseStep struct{}

func (s *ParseStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Record = extract.Parse(state.Document.DocType, state.Document.Text)
	state.Transaction.NeedsReview = state.Record.NeedsReview

	log := logger.FromContext(ctx)
	log.Debug().
		Int("parse_confidence", state.Record.ParseConfidence).
		Bool("amount_found", state.Record.Amount.Valid).
		Msg("Document parsed")
	return nil
}

// Step 3: ResolveCounterpartiesStep resolves payer and payee against the
// registry, creating provisional entries for named parties it cannot match.
type ResolveCounterpartiesStep struct {
	NewID func() string
}

func (s *ResolveCounterpartiesStep) Execute(ctx context.Context, state *PipelineState) error {
	resolver := match.NewCounterpartyResolver(state.Repo)
	tx := &state.Transaction

	sides := []struct {
		name  string
		party domain.Party
		id    *string
	}{
		{"payer", state.Record.Payer, &tx.PayerCounterpartyID},
		{"payee", state.Record.Payee, &tx.PayeeCounterpartyID},
	}

	for _, side := range sides {
		if !side.party.HasIdentity() {
			continue
		}

		res, err := resolver.Resolve(ctx, match.CounterpartyQuery{
			TenantID:    state.TenantID,
			Name:        domain.StrVal(side.party.Name),
			TaxID:       domain.StrVal(side.party.TaxID),
			TaxIDMasked: domain.StrVal(side.party.TaxIDMasked),
		})
		if err != nil {
			return fmt.Errorf("ResolveCounterparties: %s: %w", side.name, err)
		}
		// The last resolved side wins, as only one outcome is stored.
		tx.CounterpartyMatchStatus = res.Status
		tx.CounterpartyMatchScore = res.Score

		log := logger.FromContext(ctx).With().
			Str("side", side.name).
			Str("counterparty_status", string(res.Status)).
			Str("counterparty_method", string(res.Method)).
			Int("score", res.Score).
			Logger()

		if res.IsMatched() {
			*side.id = res.ID
			log.Debug().Str("counterparty_id", res.ID).Msg("Counterparty matched")
			continue
		}

		name := strings.TrimSpace(domain.StrVal(side.party.Name))
		if name == "" {
			log.Debug().Msg("Counterparty unresolved and unnamed")
			continue
		}

		cp := provisionalCounterparty(s.newID(), state.TenantID, name, side.party)
		if err := state.Repo.SaveCounterparty(ctx, cp); err != nil {
			return fmt.Errorf("ResolveCounterparties: saving provisional %s: %w", side.name, err)
		}
		*side.id = cp.ID
		state.CreatedProvisional = true
		tx.NeedsReview = true

		log.Info().Str("counterparty_id", cp.ID).Msg("Provisional counterparty created")
	}
	return nil
}

func (s *ResolveCounterpartiesStep) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// provisionalCounterparty builds a registry entry from an extracted party.
// A full tax id needs at least 11 digits; otherwise a 5-digit visible
// suffix of the masked id is kept so the entry can be found by it later.
func provisionalCounterparty(id, tenantID, name string, party domain.Party) domain.CounterpartyRecord {
	cp := domain.CounterpartyRecord{
		ID:             id,
		TenantID:       tenantID,
		Kind:           domain.CounterpartyUnknown,
		DisplayName:    name,
		NormalizedName: normalize.NormalizeName(name),
		Provisional:    true,
	}
	if prefix, suffix, ok := normalize.TaxIDParts(domain.StrVal(party.TaxID)); ok {
		cp.TaxID = normalize.Digits(domain.StrVal(party.TaxID))
		cp.TaxIDPrefix, cp.TaxIDSuffix = prefix, suffix
	} else if visible := normalize.VisibleSuffix(domain.StrVal(party.TaxIDMasked)); len(visible) == 5 {
		cp.TaxIDSuffix = visible
	}
	return cp
}

// Step 4: MatchSaleStep reconciles the transaction against expected sales.
type MatchSaleStep struct {
	Config match.Config
}

func (s *MatchSaleStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := match.NewSaleMatcher(state.Repo, s.Config).Match(ctx, state.TenantID, state.Record)
	if err != nil {
		return fmt.Errorf("MatchSale: %w", err)
	}
	state.SaleResult = res

	tx := &state.Transaction
	tx.MatchScore = res.Score
	tx.MatchStatus = res.Status
	tx.MatchMethod = res.Method
	switch {
	case res.IsMatched():
		tx.MatchedSaleID = res.ID
		tx.NeedsReview = res.NeedsReview || state.CreatedProvisional
	case res.Status == domain.MatchStatusAmbiguous:
		tx.NeedsReview = true
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("match_status", string(res.Status)).
		Str("match_method", string(res.Method)).
		Int("score", res.Score).
		Int("candidates", len(res.Candidates)).
		Msg("Sale matching finished")
	return nil
}

// Step 5: PersistStep stores the reconciled transaction.
type PersistStep struct{}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	tx := &state.Transaction
	tx.TenantID = state.TenantID
	tx.SourceFile = state.SourceFile
	tx.Record = storedRecord(state.Record)
	tx.RawText = truncateRunes(state.Text, maxRawTextRunes)
	if tx.MatchStatus == "" {
		tx.MatchStatus = domain.MatchStatusUnmatched
	}

	if err := state.Repo.SaveTransaction(ctx, *tx); err != nil {
		return fmt.Errorf("Persist: saving transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewReconciliationPipeline creates the standard 5-step pipeline for one document.
func NewReconciliationPipeline(cfg match.Config, newID func() string) *Pipeline {
	return NewPipeline(
		&ClassifyStep{},
		&ParseStep{},
		&ResolveCounterpartiesStep{NewID: newID},
		&MatchSaleStep{Config: cfg},
		&PersistStep{},
	)
}
