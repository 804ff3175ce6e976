// Package match reconciles transaction records against expected sales and
// the counterparty registry. Decisions are deterministic: the same
// transaction, candidates and Config always produce the same result.
package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/normalize"
)

// DefaultCurrency is assumed for transactions whose currency was not extracted.
const DefaultCurrency = "ARS"

const maxCandidates = 3

// SaleQuery scopes a candidate fetch. A zero From or To leaves that side of
// the date range open. Match always leaves both open, since a strong id
// match must be found at any distance; From and To serve callers that list
// sales for a period.
type SaleQuery struct {
	TenantID  string
	Currency  string
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	From      time.Time
	To        time.Time
}

// Includes reports whether sale satisfies the query. Stores that cannot
// push the filter down apply it with this.
func (q SaleQuery) Includes(sale domain.SaleRecord) bool {
	if sale.TenantID != q.TenantID || !strings.EqualFold(sale.Currency, q.Currency) {
		return false
	}
	if sale.Amount.LessThan(q.MinAmount) || sale.Amount.GreaterThan(q.MaxAmount) {
		return false
	}
	if q.From.IsZero() && q.To.IsZero() {
		return true
	}
	at, ok := normalize.ParseISO(sale.Datetime)
	if !ok {
		return false
	}
	return (q.From.IsZero() || !at.Before(q.From)) && (q.To.IsZero() || !at.After(q.To))
}

// SaleFetcher returns the sales of a tenant that satisfy a query.
type SaleFetcher interface {
	FetchSaleCandidates(ctx context.Context, q SaleQuery) ([]domain.SaleRecord, error)
}

// SaleMatcher decides which expected sale, if any, a transaction settles.
type SaleMatcher struct {
	fetcher SaleFetcher
	cfg     Config
}

// NewSaleMatcher creates a matcher bound to a candidate source and configuration.
func NewSaleMatcher(fetcher SaleFetcher, cfg Config) *SaleMatcher {
	return &SaleMatcher{fetcher: fetcher, cfg: cfg}
}

// Match fetches the tenant's sales within amount tolerance of tx and runs the
// decision cascade over them. The only error source is the fetcher.
func (m *SaleMatcher) Match(ctx context.Context, tenantID string, tx domain.TransactionRecord) (domain.MatchResult, error) {
	if !tx.Amount.Valid {
		return unmatched(domain.MethodNoAmount, 0, nil), nil
	}
	if _, ok := normalize.ParseISO(domain.StrVal(tx.Datetime)); !ok {
		return unmatched(domain.MethodNoDate, 0, nil), nil
	}

	// The date range stays open so a strong id match is found regardless
	// of distance; the window is applied in Evaluate.
	q := SaleQuery{
		TenantID:  tenantID,
		Currency:  tx.CurrencyOr(DefaultCurrency),
		MinAmount: tx.Amount.Decimal.Sub(m.cfg.AmountTolerance),
		MaxAmount: tx.Amount.Decimal.Add(m.cfg.AmountTolerance),
	}
	sales, err := m.fetcher.FetchSaleCandidates(ctx, q)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("Match: fetch sale candidates: %w", err)
	}

	return Evaluate(tx, sales, m.cfg), nil
}

// Evaluate is the pure decision procedure behind Match.
func Evaluate(tx domain.TransactionRecord, sales []domain.SaleRecord, cfg Config) domain.MatchResult {
	if !tx.Amount.Valid {
		return unmatched(domain.MethodNoAmount, 0, nil)
	}
	txAt, ok := normalize.ParseISO(domain.StrVal(tx.Datetime))
	if !ok {
		return unmatched(domain.MethodNoDate, 0, nil)
	}

	pool := eligible(tx, sales, cfg)

	if opID := domain.StrVal(tx.OperationID); opID != "" {
		for _, s := range pool {
			if s.ExternalRef != "" && s.ExternalRef == opID {
				return domain.MatchResult{
					ID:     s.ID,
					Score:  100,
					Status: domain.MatchStatusMatched,
					Method: domain.MethodStrongID,
					Candidates: []domain.Candidate{{
						ID:      s.ID,
						Score:   100,
						Reasons: []string{"operation id equals external reference"},
					}},
				}
			}
		}
	}

	facts := newTxFacts(tx, txAt)
	offset := cfg.windowOffset()
	start, end := txAt.Add(-offset), txAt.Add(offset)

	var scored []scoredSale
	for _, s := range pool {
		saleAt, ok := normalize.ParseISO(s.Datetime)
		if !ok || saleAt.Before(start) || saleAt.After(end) {
			continue
		}
		scored = append(scored, scoreSale(facts, s, saleAt))
	}

	if len(scored) == 0 {
		return unmatched(domain.MethodNoCandidates, 0, nil)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].less(scored[j]) })

	return decide(scored, cfg)
}

// decide runs the cascade over candidates already in sort order.
func decide(scored []scoredSale, cfg Config) domain.MatchResult {
	top := scored[0]
	cands := topCandidates(scored)

	if len(scored) == 1 {
		if top.score >= cfg.Threshold {
			return matched(top.sale.ID, top.score, domain.MethodSingleCandidate, cands)
		}
		return unmatched(domain.MethodLowScore, top.score, cands)
	}

	second := scored[1]
	gap := top.score - second.score

	if top.score >= cfg.Threshold && gap >= cfg.Gap {
		return matched(top.sale.ID, top.score, domain.MethodGap, cands)
	}

	if gap < cfg.Gap {
		if top.score >= cfg.Threshold {
			dominates := top.evidenceRank > second.evidenceRank ||
				(top.evidenceRank == second.evidenceRank && top.timeDelta < second.timeDelta)
			if dominates {
				return matched(top.sale.ID, top.score, domain.MethodTiebreak, cands)
			}
		}
		return domain.MatchResult{
			Score:       top.score,
			Status:      domain.MatchStatusAmbiguous,
			Method:      domain.MethodNeedsReview,
			NeedsReview: true,
			Candidates:  cands,
		}
	}

	if top.score < cfg.Threshold {
		return unmatched(domain.MethodLowScore, top.score, cands)
	}

	return matched(top.sale.ID, top.score, domain.MethodDefault, cands)
}

// eligible drops sales a well-behaved fetcher would not have returned, and
// orders the rest by id so the strong id scan does not depend on fetch order.
func eligible(tx domain.TransactionRecord, sales []domain.SaleRecord, cfg Config) []domain.SaleRecord {
	currency := tx.CurrencyOr(DefaultCurrency)
	out := make([]domain.SaleRecord, 0, len(sales))
	for _, s := range sales {
		if s.Currency != "" && !strings.EqualFold(s.Currency, currency) {
			continue
		}
		if s.Amount.Sub(tx.Amount.Decimal).Abs().GreaterThan(cfg.AmountTolerance) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func topCandidates(scored []scoredSale) []domain.Candidate {
	n := min(len(scored), maxCandidates)
	out := make([]domain.Candidate, 0, n)
	for _, s := range scored[:n] {
		out = append(out, s.candidate())
	}
	return out
}

func matched(id string, score int, method domain.MatchMethod, cands []domain.Candidate) domain.MatchResult {
	return domain.MatchResult{
		ID:         id,
		Score:      score,
		Status:     domain.MatchStatusMatched,
		Method:     method,
		Candidates: nonNil(cands),
	}
}

func unmatched(method domain.MatchMethod, score int, cands []domain.Candidate) domain.MatchResult {
	return domain.MatchResult{
		Score:      score,
		Status:     domain.MatchStatusUnmatched,
		Method:     method,
		Candidates: nonNil(cands),
	}
}

func nonNil(cands []domain.Candidate) []domain.Candidate {
	if cands == nil {
		return []domain.Candidate{}
	}
	return cands
}
