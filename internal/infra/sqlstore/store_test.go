package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/match"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSale(id, currency, amount, at string) domain.SaleRecord {
	return domain.SaleRecord{
		ID:           id,
		TenantID:     "t1",
		Datetime:     at,
		Currency:     currency,
		Amount:       decimal.RequireFromString(amount),
		CustomerName: "Juan Perez",
		ExternalRef:  "ref-" + id,
		Status:       domain.SaleStatusOpen,
	}
}

func TestStore_FetchSaleCandidates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, sale := range []domain.SaleRecord{
		testSale("s2", "ARS", "1500.50", "2025-12-29T10:00:00"),
		testSale("s1", "ARS", "1500.49", "2025-12-01T10:00:00"),
		testSale("s3", "ARS", "1500.60", "2025-12-29T10:00:00"),
		testSale("s4", "USD", "1500.50", "2025-12-29T10:00:00"),
	} {
		require.NoError(t, s.SaveSale(ctx, sale))
	}

	q := match.SaleQuery{
		TenantID:  "t1",
		Currency:  "ARS",
		MinAmount: decimal.RequireFromString("1500.49"),
		MaxAmount: decimal.RequireFromString("1500.51"),
	}

	t.Run("amount and currency", func(t *testing.T) {
		got, err := s.FetchSaleCandidates(ctx, q)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "s1", got[0].ID)
		assert.Equal(t, "s2", got[1].ID)
		assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("1500.50")))
		assert.Equal(t, "ref-s2", got[1].ExternalRef)
		assert.Equal(t, domain.SaleStatusOpen, got[1].Status)
	})

	t.Run("date bounds", func(t *testing.T) {
		dated := q
		dated.From = time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)
		dated.To = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		got, err := s.FetchSaleCandidates(ctx, dated)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "s2", got[0].ID)
	})

	t.Run("other tenant", func(t *testing.T) {
		other := q
		other.TenantID = "t2"
		got, err := s.FetchSaleCandidates(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestStore_SaveSaleUpserts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sale := testSale("s1", "ARS", "100", "2025-12-29T10:00:00")
	require.NoError(t, s.SaveSale(ctx, sale))
	sale.Status = domain.SaleStatusMatched
	require.NoError(t, s.SaveSale(ctx, sale))

	got, err := s.FetchSaleCandidates(ctx, match.SaleQuery{TenantID: "t1", Currency: "ARS", MinAmount: decimal.Zero, MaxAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.SaleStatusMatched, got[0].Status)
}

func TestStore_Counterparties(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCounterparty(ctx, domain.CounterpartyRecord{
		ID: "c2", TenantID: "t1", Kind: domain.CounterpartyPerson, DisplayName: "Juan Perez",
		NormalizedName: "juan perez", TaxID: "20123456789", TaxIDPrefix: "20", TaxIDSuffix: "56789",
	}))
	require.NoError(t, s.SaveCounterparty(ctx, domain.CounterpartyRecord{
		ID: "c1", TenantID: "t1", Kind: domain.CounterpartyUnknown, DisplayName: "Ana",
		NormalizedName: "ana", Provisional: true,
	}))

	rec, found, err := s.FindCounterpartyByTaxID(ctx, "t1", "20123456789")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "c2", rec.ID)
	assert.Equal(t, domain.CounterpartyPerson, rec.Kind)

	_, found, err = s.FindCounterpartyByTaxID(ctx, "t2", "20123456789")
	require.NoError(t, err)
	assert.False(t, found)

	bySuffix, err := s.ListCounterparties(ctx, "t1", "56789")
	require.NoError(t, err)
	require.Len(t, bySuffix, 1)
	assert.Equal(t, "c2", bySuffix[0].ID)

	all, err := s.ListCounterparties(ctx, "t1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c1", all[0].ID)
	assert.True(t, all[0].Provisional)
}

func TestStore_Transactions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	amount := decimal.NewNullDecimal(decimal.RequireFromString("1500.50"))
	tx := domain.ReconciledTransaction{
		ID:       "x1",
		TenantID: "t1",
		Record: domain.TransactionRecord{
			SourceSystem: domain.StrPtr("mercado_pago"),
			Amount:       amount,
			Datetime:     domain.StrPtr("2025-12-29T10:39:00"),
			Direction:    domain.DirectionUnknown,
			Payer:        domain.Party{Name: domain.StrPtr("Juan Perez")},
		},
		NeedsReview:   true,
		MatchedSaleID: "s1",
		MatchScore:    97,
		MatchStatus:   domain.MatchStatusMatched,
		MatchMethod:   domain.MethodGap,
	}
	require.NoError(t, s.SaveTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, "t1", "x1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.MatchedSaleID)
	assert.Equal(t, domain.MethodGap, got.MatchMethod)
	assert.True(t, got.NeedsReview)
	assert.Equal(t, "Juan Perez", domain.StrVal(got.Record.Payer.Name))
	require.True(t, got.Record.Amount.Valid)
	assert.True(t, got.Record.Amount.Decimal.Equal(amount.Decimal))
	assert.Nil(t, got.Record.Payee.Name)

	_, err = s.GetTransaction(ctx, "t1", "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		s := setupTestStore(t)
		err := s.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
			return repo.SaveCounterparty(ctx, domain.CounterpartyRecord{ID: "c1", TenantID: "t1", DisplayName: "A", NormalizedName: "a"})
		})
		require.NoError(t, err)

		all, err := s.ListCounterparties(ctx, "t1", "")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("rollback", func(t *testing.T) {
		s := setupTestStore(t)
		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
			if err := repo.SaveCounterparty(ctx, domain.CounterpartyRecord{ID: "c1", TenantID: "t1", DisplayName: "A", NormalizedName: "a"}); err != nil {
				return err
			}
			all, err := repo.ListCounterparties(ctx, "t1", "")
			if err != nil {
				return err
			}
			if len(all) != 1 {
				return errors.New("write not visible inside transaction")
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		all, err := s.ListCounterparties(ctx, "t1", "")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
