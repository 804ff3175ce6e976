package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/normalize"
)

// Counterparty scoring is fixed; it is not tuned per deployment.
const (
	counterpartySuffixScore   = 40
	counterpartyTokenScore    = 11
	counterpartyNameCap       = 55
	counterpartyMatchScore    = 85
	counterpartyAmbiguousGap  = 10
	counterpartyExactTaxScore = 100
)

// CounterpartyRegistry is the lookup side of a tenant's counterparty registry.
type CounterpartyRegistry interface {
	// FindCounterpartyByTaxID looks up an entry by its full tax id, digits only.
	FindCounterpartyByTaxID(ctx context.Context, tenantID, taxID string) (domain.CounterpartyRecord, bool, error)
	// ListCounterparties returns the tenant's entries whose tax id suffix is
	// suffix, or every entry when suffix is empty.
	ListCounterparties(ctx context.Context, tenantID, suffix string) ([]domain.CounterpartyRecord, error)
}

// CounterpartyQuery is the identity extracted for one side of a transaction.
type CounterpartyQuery struct {
	TenantID    string
	Name        string
	TaxID       string
	TaxIDMasked string
}

// CounterpartyResolver matches an extracted identity against the registry.
// Creating provisional entries for misses is left to the caller.
type CounterpartyResolver struct {
	registry CounterpartyRegistry
}

// NewCounterpartyResolver creates a resolver over registry.
func NewCounterpartyResolver(registry CounterpartyRegistry) *CounterpartyResolver {
	return &CounterpartyResolver{registry: registry}
}

type scoredCounterparty struct {
	record  domain.CounterpartyRecord
	score   int
	reasons []string
}

// Resolve returns matched for an exact tax id hit, otherwise scores
// candidates by visible tax id suffix and shared name tokens.
func (r *CounterpartyResolver) Resolve(ctx context.Context, q CounterpartyQuery) (domain.MatchResult, error) {
	if taxID := normalize.Digits(q.TaxID); taxID != "" {
		rec, found, err := r.registry.FindCounterpartyByTaxID(ctx, q.TenantID, taxID)
		if err != nil {
			return domain.MatchResult{}, fmt.Errorf("Resolve: find by tax id: %w", err)
		}
		if found {
			return domain.MatchResult{
				ID:     rec.ID,
				Score:  counterpartyExactTaxScore,
				Status: domain.MatchStatusMatched,
				Method: domain.MethodExactTaxID,
				Candidates: []domain.Candidate{{
					ID:      rec.ID,
					Score:   counterpartyExactTaxScore,
					Reasons: []string{"exact tax id"},
				}},
			}, nil
		}
	}

	norm := normalize.NormalizeName(q.Name)
	suffix := normalize.VisibleSuffix(q.TaxIDMasked)

	var candidates []domain.CounterpartyRecord
	if suffix != "" {
		var err error
		candidates, err = r.registry.ListCounterparties(ctx, q.TenantID, suffix)
		if err != nil {
			return domain.MatchResult{}, fmt.Errorf("Resolve: list by suffix: %w", err)
		}
	}
	if len(candidates) == 0 && norm != "" {
		var err error
		candidates, err = r.registry.ListCounterparties(ctx, q.TenantID, "")
		if err != nil {
			return domain.MatchResult{}, fmt.Errorf("Resolve: list all: %w", err)
		}
	}

	return rankCounterparties(norm, suffix, candidates), nil
}

// rankCounterparties scores, sorts and decides over registry candidates.
func rankCounterparties(norm, suffix string, candidates []domain.CounterpartyRecord) domain.MatchResult {
	if len(candidates) == 0 {
		return unmatched(domain.MethodNoCandidates, 0, nil)
	}

	nameTokens := normalize.Tokens(norm)
	scored := make([]scoredCounterparty, 0, len(candidates))
	for _, c := range candidates {
		sc := scoredCounterparty{record: c, reasons: []string{}}
		if suffix != "" && c.TaxIDSuffix == suffix {
			sc.score += counterpartySuffixScore
			sc.reasons = append(sc.reasons, "last digits of tax id match")
		}
		if len(nameTokens) > 0 && c.NormalizedName != "" {
			shared := normalize.SharedTokens(nameTokens, normalize.Tokens(c.NormalizedName))
			if shared > 0 {
				sc.score += min(counterpartyNameCap, shared*counterpartyTokenScore)
				sc.reasons = append(sc.reasons, "name partially matches")
			}
		}
		scored = append(scored, sc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].record.ID < scored[j].record.ID
	})

	n := min(len(scored), maxCandidates)
	cands := make([]domain.Candidate, 0, n)
	for _, sc := range scored[:n] {
		cands = append(cands, domain.Candidate{ID: sc.record.ID, Score: sc.score, Reasons: sc.reasons})
	}

	top := scored[0]
	if len(scored) > 1 && top.score-scored[1].score < counterpartyAmbiguousGap {
		return domain.MatchResult{
			Score:       top.score,
			Status:      domain.MatchStatusAmbiguous,
			Method:      domain.MethodNeedsReview,
			NeedsReview: true,
			Candidates:  cands,
		}
	}
	if top.score >= counterpartyMatchScore {
		return matched(top.record.ID, top.score, domain.MethodScored, cands)
	}
	return unmatched(domain.MethodLowScore, top.score, cands)
}
