package match

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/normalize"
)

// Evidence ranks. Only the highest one a candidate collects is kept, and it
// is used to break near-tied scores.
const (
	evidenceTaxIDExact  = 100
	evidenceReference   = 90
	evidencePhone       = 80
	evidenceName        = 70
	evidenceAmountExact = 60
	evidenceTaxIDSuffix = 50
)

// Score contributions.
const (
	baseScore        = 60
	sameDayBonus     = 25
	oneDayBonus      = 15
	twoDayBonus      = 5
	taxIDExactBonus  = 20
	taxIDSuffixBonus = 10
	referenceBonus   = 15
	phoneBonus       = 15
	namePerToken     = 2
	nameCap          = 10
)

var exactAmountEpsilon = decimal.New(1, -2)

// scoredSale is a windowed candidate with everything the sort key needs.
type scoredSale struct {
	sale         domain.SaleRecord
	score        int
	subScores    map[string]int
	evidenceRank int
	timeDelta    time.Duration
	reasons      []string
}

// txFacts are the transaction-side values every candidate is compared to.
type txFacts struct {
	at            time.Time
	amount        decimal.Decimal
	payerTaxID    string // digits
	payerSuffix   string
	concept       string // lowercased
	conceptDigits string
	payerTokens   map[string]struct{}
}

func newTxFacts(tx domain.TransactionRecord, at time.Time) txFacts {
	concept := domain.StrVal(tx.Concept)
	return txFacts{
		at:            at,
		amount:        tx.Amount.Decimal,
		payerTaxID:    normalize.Digits(domain.StrVal(tx.Payer.TaxID)),
		payerSuffix:   normalize.VisibleSuffix(domain.StrVal(tx.Payer.TaxIDMasked)),
		concept:       strings.ToLower(concept),
		conceptDigits: normalize.Digits(concept),
		payerTokens:   normalize.NameTokens(domain.StrVal(tx.Payer.Name)),
	}
}

// scoreSale scores one candidate whose date is already known to be in the window.
func scoreSale(f txFacts, s domain.SaleRecord, saleAt time.Time) scoredSale {
	out := scoredSale{
		sale:      s,
		score:     baseScore,
		subScores: map[string]int{"base": baseScore},
		timeDelta: absDuration(saleAt.Sub(f.at)),
		reasons:   []string{},
	}
	add := func(key string, points, rank int, reason string) {
		out.score += points
		if points > 0 {
			out.subScores[key] = points
		}
		if rank > out.evidenceRank {
			out.evidenceRank = rank
		}
		if reason != "" {
			out.reasons = append(out.reasons, reason)
		}
	}

	switch calendarDays(f.at, saleAt) {
	case 0:
		add("date", sameDayBonus, 0, "same day")
	case 1:
		add("date", oneDayBonus, 0, "1 day apart")
	case 2:
		add("date", twoDayBonus, 0, "2 days apart")
	}

	saleTaxID := normalize.Digits(s.CustomerTaxID)
	switch {
	case f.payerTaxID != "" && saleTaxID != "" && f.payerTaxID == saleTaxID:
		add("tax_id", taxIDExactBonus, evidenceTaxIDExact, "customer tax id matches")
	case f.payerSuffix != "" && saleTaxID != "" && strings.HasSuffix(saleTaxID, f.payerSuffix):
		add("tax_id_suffix", taxIDSuffixBonus, evidenceTaxIDSuffix, "last digits of tax id match")
	}

	if s.ExternalRef != "" && f.concept != "" && strings.Contains(f.concept, strings.ToLower(s.ExternalRef)) {
		add("reference", referenceBonus, evidenceReference, "reference found in concept")
	}

	if phone := normalize.Digits(s.CustomerPhone); phone != "" {
		inConcept := f.conceptDigits != "" && strings.Contains(f.conceptDigits, phone)
		inTaxField := f.payerTaxID != "" && f.payerTaxID == phone
		if inConcept || inTaxField {
			add("phone", phoneBonus, evidencePhone, "customer phone matches")
		}
	}

	if len(f.payerTokens) > 0 {
		if shared := normalize.SharedTokens(f.payerTokens, normalize.NameTokens(s.CustomerName)); shared > 0 {
			add("name", min(nameCap, shared*namePerToken), evidenceName, "name partially matches")
		}
	}

	if s.Amount.Sub(f.amount).Abs().LessThan(exactAmountEpsilon) {
		add("amount", 0, evidenceAmountExact, "")
	}

	return out
}

// calendarDays is the absolute number of calendar days between a and b.
func calendarDays(a, b time.Time) int {
	d := civil.DateOf(b).DaysSince(civil.DateOf(a))
	if d < 0 {
		return -d
	}
	return d
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (s scoredSale) candidate() domain.Candidate {
	return domain.Candidate{
		ID:           s.sale.ID,
		Score:        s.score,
		SubScores:    s.subScores,
		EvidenceRank: s.evidenceRank,
		Reasons:      s.reasons,
	}
}

// less orders by score desc, evidence desc, time delta asc, id asc.
func (s scoredSale) less(o scoredSale) bool {
	if s.score != o.score {
		return s.score > o.score
	}
	if s.evidenceRank != o.evidenceRank {
		return s.evidenceRank > o.evidenceRank
	}
	if s.timeDelta != o.timeDelta {
		return s.timeDelta < o.timeDelta
	}
	return s.sale.ID < o.sale.ID
}
