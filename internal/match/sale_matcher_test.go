package match

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

// fakeSaleFetcher returns its sales unfiltered and records the last query.
type fakeSaleFetcher struct {
	FetchFunc func(ctx context.Context, q SaleQuery) ([]domain.SaleRecord, error)
	lastQuery SaleQuery
	calls     int
}

func (f *fakeSaleFetcher) FetchSaleCandidates(ctx context.Context, q SaleQuery) ([]domain.SaleRecord, error) {
	f.lastQuery = q
	f.calls++
	return f.FetchFunc(ctx, q)
}

func fetcherOf(sales ...domain.SaleRecord) *fakeSaleFetcher {
	return &fakeSaleFetcher{
		FetchFunc: func(ctx context.Context, q SaleQuery) ([]domain.SaleRecord, error) {
			return sales, nil
		},
	}
}

const txTime = "2025-12-29T10:00:00"

func newTx(amount, datetime string, opts ...func(*domain.TransactionRecord)) domain.TransactionRecord {
	tx := domain.TransactionRecord{
		Currency:  domain.StrPtr("ARS"),
		Datetime:  domain.StrPtr(datetime),
		Direction: domain.DirectionUnknown,
	}
	if amount != "" {
		tx.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	for _, opt := range opts {
		opt(&tx)
	}
	return tx
}

func withPayerName(name string) func(*domain.TransactionRecord) {
	return func(tx *domain.TransactionRecord) { tx.Payer.Name = domain.StrPtr(name) }
}

func withPayerTaxID(id string) func(*domain.TransactionRecord) {
	return func(tx *domain.TransactionRecord) { tx.Payer.TaxID = domain.StrPtr(id) }
}

func withPayerMasked(id string) func(*domain.TransactionRecord) {
	return func(tx *domain.TransactionRecord) { tx.Payer.TaxIDMasked = domain.StrPtr(id) }
}

func withConcept(c string) func(*domain.TransactionRecord) {
	return func(tx *domain.TransactionRecord) { tx.Concept = domain.StrPtr(c) }
}

func withOperationID(id string) func(*domain.TransactionRecord) {
	return func(tx *domain.TransactionRecord) { tx.OperationID = domain.StrPtr(id) }
}

func newSale(id, datetime, amount string, opts ...func(*domain.SaleRecord)) domain.SaleRecord {
	s := domain.SaleRecord{
		ID:       id,
		TenantID: "t1",
		Datetime: datetime,
		Currency: "ARS",
		Amount:   decimal.RequireFromString(amount),
		Status:   domain.SaleStatusOpen,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func customer(name string) func(*domain.SaleRecord) {
	return func(s *domain.SaleRecord) { s.CustomerName = name }
}

func customerTaxID(id string) func(*domain.SaleRecord) {
	return func(s *domain.SaleRecord) { s.CustomerTaxID = id }
}

func customerPhone(p string) func(*domain.SaleRecord) {
	return func(s *domain.SaleRecord) { s.CustomerPhone = p }
}

func externalRef(ref string) func(*domain.SaleRecord) {
	return func(s *domain.SaleRecord) { s.ExternalRef = ref }
}

func match(t *testing.T, tx domain.TransactionRecord, sales ...domain.SaleRecord) domain.MatchResult {
	t.Helper()
	res, err := NewSaleMatcher(fetcherOf(sales...), DefaultConfig()).Match(context.Background(), "t1", tx)
	require.NoError(t, err)
	assertInvariants(t, res)
	return res
}

func assertInvariants(t *testing.T, res domain.MatchResult) {
	t.Helper()
	require.NotNil(t, res.Candidates)
	assert.LessOrEqual(t, len(res.Candidates), 3)
	switch res.Status {
	case domain.MatchStatusMatched:
		assert.NotEmpty(t, res.ID)
	case domain.MatchStatusAmbiguous:
		assert.True(t, res.NeedsReview)
		assert.Empty(t, res.ID)
	case domain.MatchStatusUnmatched:
		assert.Empty(t, res.ID)
	}
}

func TestMatch_NoAmount(t *testing.T) {
	f := fetcherOf(newSale("s1", txTime, "100"))
	res, err := NewSaleMatcher(f, DefaultConfig()).Match(context.Background(), "t1", newTx("", txTime))
	require.NoError(t, err)

	assert.Equal(t, domain.MatchStatusUnmatched, res.Status)
	assert.Equal(t, domain.MethodNoAmount, res.Method)
	assert.False(t, res.NeedsReview)
	assert.Empty(t, res.Candidates)
	assert.Zero(t, f.calls, "no fetch without an amount")
}

func TestMatch_NoDate(t *testing.T) {
	for _, dt := range []string{"", "29/12/2025", "garbage"} {
		t.Run(dt, func(t *testing.T) {
			res := match(t, newTx("100", dt), newSale("s1", txTime, "100"))
			assert.Equal(t, domain.MatchStatusUnmatched, res.Status)
			assert.Equal(t, domain.MethodNoDate, res.Method)
			assert.False(t, res.NeedsReview)
		})
	}
}

func TestMatch_StrongIDIgnoresDate(t *testing.T) {
	tx := newTx("100", txTime, withOperationID("OP-12345"))
	res := match(t, tx,
		newSale("s1", "2025-06-01T09:00:00", "100", externalRef("OP-12345")),
		newSale("s2", txTime, "100", customer("Juan Perez")),
	)

	assert.Equal(t, domain.MatchStatusMatched, res.Status)
	assert.Equal(t, domain.MethodStrongID, res.Method)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, "s1", res.ID)
	assert.False(t, res.NeedsReview)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "s1", res.Candidates[0].ID)
}

func TestMatch_StrongIDIsExact(t *testing.T) {
	tx := newTx("100", txTime, withOperationID("OP-1234"))
	res := match(t, tx, newSale("s1", "2025-06-01T09:00:00", "100", externalRef("OP-12345")))

	assert.Equal(t, domain.MethodNoCandidates, res.Method)
}

func TestMatch_GapRuleOnTaxID(t *testing.T) {
	tx := newTx("38000", txTime, withPayerTaxID("20-12345678-9"))
	res := match(t, tx,
		newSale("s1", "2025-12-29T12:00:00", "38000"),
		newSale("s2", "2025-12-29T12:00:00", "38000", customerTaxID("20123456789")),
	)

	assert.Equal(t, domain.MatchStatusMatched, res.Status)
	assert.Equal(t, domain.MethodGap, res.Method)
	assert.Equal(t, "s2", res.ID)
	assert.Equal(t, 105, res.Score)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 100, res.Candidates[0].EvidenceRank)
	assert.Equal(t, 20, res.Candidates[0].SubScores["tax_id"])
	assert.Equal(t, 85, res.Candidates[1].Score)
	assert.Equal(t, 60, res.Candidates[1].EvidenceRank, "amount exact only")
}

func TestMatch_AmbiguousTie(t *testing.T) {
	tx := newTx("5000", txTime, withPayerName("Juan Pérez"))
	res := match(t, tx,
		newSale("s1", "2025-12-29T14:00:00", "5000", customer("JUAN PEREZ")),
		newSale("s2", "2025-12-29T14:00:00", "5000", customer("Juan Perez")),
	)

	assert.Equal(t, domain.MatchStatusAmbiguous, res.Status)
	assert.Equal(t, domain.MethodNeedsReview, res.Method)
	assert.True(t, res.NeedsReview)
	assert.Equal(t, 89, res.Score)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "s1", res.Candidates[0].ID, "id breaks the final tie in ordering")
}

func TestMatch_TiebreakOnTimeDelta(t *testing.T) {
	tx := newTx("5000", txTime, withPayerName("Juan Pérez"))
	res := match(t, tx,
		newSale("s1", "2025-12-29T18:00:00", "5000", customer("Juan Perez")),
		newSale("s2", "2025-12-29T11:00:00", "5000", customer("Juan Perez")),
	)

	assert.Equal(t, domain.MatchStatusMatched, res.Status)
	assert.Equal(t, domain.MethodTiebreak, res.Method)
	assert.Equal(t, "s2", res.ID)
	assert.False(t, res.NeedsReview)
}

func TestMatch_TiebreakOnEvidence(t *testing.T) {
	tx := newTx("5000", txTime, withPayerTaxID("20123456789"), withConcept("pedido R-1"))
	res := match(t, tx,
		newSale("s1", txTime, "5000", externalRef("R-1")),
		newSale("s2", txTime, "5000", customerTaxID("20-12345678-9")),
	)

	assert.Equal(t, domain.MatchStatusMatched, res.Status)
	assert.Equal(t, domain.MethodTiebreak, res.Method)
	assert.Equal(t, "s2", res.ID)
	assert.Equal(t, 105, res.Score)
	assert.Equal(t, 100, res.Candidates[1].Score)
}

func TestMatch_ScoreLeaderWithWeakerEvidenceIsAmbiguous(t *testing.T) {
	// s1: same day + name (89, rank 70). s2: same day + masked suffix (95, rank 60).
	// s2 leads on score by less than the gap but trails on evidence.
	tx := newTx("5000", txTime, withPayerName("Juan Perez"), withPayerMasked("***56789**"))
	res := match(t, tx,
		newSale("s1", txTime, "5000", customer("Juan Perez")),
		newSale("s2", txTime, "5000", customerTaxID("27999956789")),
	)

	assert.Equal(t, domain.MatchStatusAmbiguous, res.Status)
	assert.Equal(t, "s2", res.Candidates[0].ID)
	assert.Equal(t, 95, res.Candidates[0].Score)
	assert.Equal(t, 60, res.Candidates[0].EvidenceRank)
}

func TestMatch_AmbiguousBelowThreshold(t *testing.T) {
	res := match(t, newTx("100", txTime),
		newSale("s1", "2025-12-30T10:00:00", "100"),
		newSale("s2", "2025-12-30T10:00:00", "100"),
	)

	assert.Equal(t, domain.MatchStatusAmbiguous, res.Status)
	assert.Equal(t, 75, res.Score)
}

func TestMatch_WindowExclusion(t *testing.T) {
	tx := newTx("5000", txTime, withPayerName("Juan Perez"), withPayerTaxID("20123456789"))
	res := match(t, tx,
		newSale("s1", "2026-01-01T22:00:00", "5000", customer("Juan Perez"), customerTaxID("20123456789")),
		newSale("s2", "2025-12-26T09:59:59", "5000", customer("Juan Perez")),
	)

	assert.Equal(t, domain.MatchStatusUnmatched, res.Status)
	assert.Equal(t, domain.MethodNoCandidates, res.Method)
	assert.Empty(t, res.Candidates)
}

func TestMatch_WindowEdgeIsInclusive(t *testing.T) {
	res := match(t, newTx("100", txTime), newSale("s1", "2026-01-01T10:00:00", "100"))

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 60, res.Candidates[0].Score)
	assert.Equal(t, domain.MethodLowScore, res.Method)
}

func TestMatch_WindowFollowsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DateWindowHours = 24
	sales := []domain.SaleRecord{newSale("s1", "2025-12-31T09:00:00", "100")}

	res := Evaluate(newTx("100", txTime), sales, cfg)
	assert.Equal(t, domain.MethodNoCandidates, res.Method)

	cfg.DateWindowHours = 72
	res = Evaluate(newTx("100", txTime), sales, cfg)
	assert.Equal(t, domain.MethodLowScore, res.Method)
}

func TestMatch_LowScoreSingle(t *testing.T) {
	res := match(t, newTx("100", txTime, withPayerName("Ana Gomez")),
		newSale("s1", "2025-12-30T10:00:00", "100", customer("Pedro Lopez")),
	)

	assert.Equal(t, domain.MatchStatusUnmatched, res.Status)
	assert.Equal(t, domain.MethodLowScore, res.Method)
	assert.Equal(t, 75, res.Score)
	assert.False(t, res.NeedsReview)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, []string{"1 day apart"}, res.Candidates[0].Reasons)
}

func TestMatch_SingleCandidateAtThreshold(t *testing.T) {
	res := match(t, newTx("100", txTime), newSale("s1", "2025-12-29T23:59:00", "100"))

	assert.Equal(t, domain.MatchStatusMatched, res.Status)
	assert.Equal(t, domain.MethodSingleCandidate, res.Method)
	assert.Equal(t, 85, res.Score)
}

func TestMatch_ISODatetimeForms(t *testing.T) {
	tests := []struct {
		name   string
		txAt   string
		saleAt string
	}{
		{"seconds", "2025-12-29T10:00:00", "2025-12-29T10:39:00"},
		{"sale without seconds", "2025-12-29T10:00:00", "2025-12-29T10:39"},
		{"sale in utc", "2025-12-29T10:00:00", "2025-12-29T10:39:00Z"},
		{"sale with offset", "2025-12-29T10:00:00", "2025-12-29T10:39:00-03:00"},
		{"sale with space separator", "2025-12-29T10:00:00", "2025-12-29 10:39:00"},
		{"transaction without seconds", "2025-12-29T10:00", "2025-12-29T10:39:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := match(t, newTx("100", tt.txAt), newSale("s1", tt.saleAt, "100"))

			assert.Equal(t, domain.MatchStatusMatched, res.Status)
			assert.Equal(t, domain.MethodSingleCandidate, res.Method)
			assert.Equal(t, 85, res.Score)
			assert.Equal(t, "s1", res.ID)
		})
	}
}

func TestMatch_LowScoreWithGap(t *testing.T) {
	res := match(t, newTx("100", txTime),
		newSale("s1", "2025-12-30T10:00:00", "100"),
		newSale("s2", "2026-01-01T08:00:00", "100"),
	)

	assert.Equal(t, domain.MatchStatusUnmatched, res.Status)
	assert.Equal(t, domain.MethodLowScore, res.Method)
	assert.Equal(t, 75, res.Score)
	assert.Len(t, res.Candidates, 2)
}

func TestMatch_Signals(t *testing.T) {
	tests := []struct {
		name     string
		tx       domain.TransactionRecord
		sale     domain.SaleRecord
		subScore string
		points   int
		rank     int
	}{
		{
			name:     "reference in concept",
			tx:       newTx("100", txTime, withConcept("Pago pedido ABC-77")),
			sale:     newSale("s1", txTime, "100", externalRef("abc-77")),
			subScore: "reference",
			points:   15,
			rank:     90,
		},
		{
			name:     "phone in concept digits",
			tx:       newTx("100", txTime, withConcept("tel 11-2345-6789")),
			sale:     newSale("s1", txTime, "100", customerPhone("11 2345 6789")),
			subScore: "phone",
			points:   15,
			rank:     80,
		},
		{
			name:     "phone misfiled as tax id",
			tx:       newTx("100", txTime, withPayerTaxID("1123456789")),
			sale:     newSale("s1", txTime, "100", customerPhone("11-2345-6789")),
			subScore: "phone",
			points:   15,
			rank:     80,
		},
		{
			name:     "masked suffix",
			tx:       newTx("100", txTime, withPayerMasked("***56789**")),
			sale:     newSale("s1", txTime, "100", customerTaxID("20123456789")),
			subScore: "tax_id_suffix",
			points:   10,
			rank:     60, // amount exact outranks a suffix hit
		},
		{
			name:     "name overlap capped",
			tx:       newTx("100", txTime, withPayerName("Maria Jose Fernandez Lopez Garcia Ruiz")),
			sale:     newSale("s1", txTime, "100", customer("Maria Jose Fernandez Lopez Garcia Ruiz")),
			subScore: "name",
			points:   10,
			rank:     70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.tx, []domain.SaleRecord{tt.sale}, DefaultConfig())
			require.Len(t, res.Candidates, 1)
			c := res.Candidates[0]
			assert.Equal(t, tt.points, c.SubScores[tt.subScore])
			assert.Equal(t, tt.rank, c.EvidenceRank)
			assert.Equal(t, 85+tt.points, c.Score)
		})
	}
}

func TestMatch_DeterministicAcrossFetchOrder(t *testing.T) {
	tx := newTx("5000", txTime, withPayerName("Juan Perez"))
	a := newSale("s1", "2025-12-29T14:00:00", "5000", customer("Juan Perez"))
	b := newSale("s2", "2025-12-29T14:00:00", "5000", customer("Juan Perez"))
	c := newSale("s3", "2025-12-30T14:00:00", "5000")

	first := Evaluate(tx, []domain.SaleRecord{a, b, c}, DefaultConfig())
	second := Evaluate(tx, []domain.SaleRecord{c, b, a}, DefaultConfig())
	assert.Equal(t, first, second)
}

func TestMatch_TopThreeCandidates(t *testing.T) {
	var sales []domain.SaleRecord
	for _, id := range []string{"s5", "s4", "s3", "s2", "s1"} {
		sales = append(sales, newSale(id, "2025-12-30T10:00:00", "100"))
	}
	res := match(t, newTx("100", txTime), sales...)

	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "s1", res.Candidates[0].ID)
	assert.Equal(t, "s3", res.Candidates[2].ID)
}

func TestMatch_QueryAndLocalFilter(t *testing.T) {
	f := fetcherOf(
		newSale("s1", txTime, "100.02"),
		newSale("s2", txTime, "100", func(s *domain.SaleRecord) { s.Currency = "USD" }),
		newSale("s3", txTime, "99.99"),
	)
	tx := newTx("100", txTime, func(tx *domain.TransactionRecord) { tx.Currency = nil })

	res, err := NewSaleMatcher(f, DefaultConfig()).Match(context.Background(), "tenant-9", tx)
	require.NoError(t, err)

	assert.Equal(t, "tenant-9", f.lastQuery.TenantID)
	assert.Equal(t, "ARS", f.lastQuery.Currency)
	assert.Equal(t, "99.99", f.lastQuery.MinAmount.String())
	assert.Equal(t, "100.01", f.lastQuery.MaxAmount.String())
	assert.True(t, f.lastQuery.From.IsZero())
	assert.True(t, f.lastQuery.To.IsZero())

	assert.Equal(t, domain.MethodSingleCandidate, res.Method)
	assert.Equal(t, "s3", res.ID)
	assert.Equal(t, 0, res.Candidates[0].EvidenceRank, "0.01 off is within tolerance but not exact")
}

func TestMatch_FetchError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeSaleFetcher{
		FetchFunc: func(ctx context.Context, q SaleQuery) ([]domain.SaleRecord, error) {
			return nil, boom
		},
	}

	_, err := NewSaleMatcher(f, DefaultConfig()).Match(context.Background(), "t1", newTx("100", txTime))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
