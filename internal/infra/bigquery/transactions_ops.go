package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

func transactionParams(row TransactionRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "tenant_id", Value: row.TenantID},
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "source_file", Value: row.SourceFile},
		{Name: "record", Value: row.Record},
		{Name: "raw_text", Value: row.RawText},
		{Name: "needs_review", Value: row.NeedsReview},
		{Name: "payer_counterparty_id", Value: row.PayerCounterpartyID},
		{Name: "payee_counterparty_id", Value: row.PayeeCounterpartyID},
		{Name: "counterparty_match_status", Value: row.CounterpartyMatchStatus},
		{Name: "counterparty_match_score", Value: row.CounterpartyMatchScore},
		{Name: "matched_sale_id", Value: row.MatchedSaleID},
		{Name: "match_score", Value: row.MatchScore},
		{Name: "match_status", Value: row.MatchStatus},
		{Name: "match_method", Value: row.MatchMethod},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

// UpsertTransactionWithClient inserts or replaces a reconciled transaction
// keyed by (tenant_id, transaction_id).
func UpsertTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tx domain.ReconciledTransaction) error {
	row, err := transactionRowFromDomain(tx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("UpsertTransactionWithClient: %w", err)
	}
	params := transactionParams(row)
	sql := mergeSQL(ds.table(transactionsTable), []string{"tenant_id", "transaction_id"}, params)
	if err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("UpsertTransactionWithClient: %w", err)
	}
	return nil
}

// GetTransactionWithClient fetches one transaction. It returns
// repository.ErrNotFound when there is no such row.
func GetTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tenantID, id string) (domain.ReconciledTransaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			tenant_id,
			transaction_id,
			source_file,
			record,
			raw_text,
			needs_review,
			payer_counterparty_id,
			payee_counterparty_id,
			counterparty_match_status,
			counterparty_match_score,
			matched_sale_id,
			match_score,
			match_status,
			match_method,
			updated_ts
		FROM %s
		WHERE tenant_id = @tenant_id
		  AND transaction_id = @transaction_id
		LIMIT 1
	`, ds.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "transaction_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.ReconciledTransaction{}, fmt.Errorf("GetTransactionWithClient: reading query: %w", err)
	}

	var row TransactionRow
	err = it.Next(&row)
	if err == iterator.Done {
		return domain.ReconciledTransaction{}, fmt.Errorf("GetTransactionWithClient: transaction %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return domain.ReconciledTransaction{}, fmt.Errorf("GetTransactionWithClient: iterating: %w", err)
	}
	return row.ToDomain()
}
