package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/match"
	"github.com/florstein/ledger-reconciler/internal/normalize"
)

func saleParams(row SaleRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "tenant_id", Value: row.TenantID},
		{Name: "sale_id", Value: row.SaleID},
		{Name: "datetime", Value: row.Datetime},
		{Name: "currency", Value: row.Currency},
		{Name: "amount", Value: row.Amount},
		{Name: "customer_name", Value: row.CustomerName},
		{Name: "customer_tax_id", Value: row.CustomerTaxID},
		{Name: "customer_phone", Value: row.CustomerPhone},
		{Name: "description", Value: row.Description},
		{Name: "external_ref", Value: row.ExternalRef},
		{Name: "status", Value: row.Status},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

// UpsertSaleWithClient inserts or replaces a sale keyed by (tenant_id, sale_id).
func UpsertSaleWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, sale domain.SaleRecord) error {
	params := saleParams(saleRowFromDomain(sale, time.Now().UTC()))
	sql := mergeSQL(ds.table(salesTable), []string{"tenant_id", "sale_id"}, params)
	if err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("UpsertSaleWithClient: %w", err)
	}
	return nil
}

// FetchSaleCandidatesWithClient returns a tenant's sales in the query's
// currency and amount range, ordered by sale_id.
func FetchSaleCandidatesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, sq match.SaleQuery) ([]domain.SaleRecord, error) {
	var where strings.Builder
	where.WriteString(`tenant_id = @tenant_id
		  AND UPPER(currency) = UPPER(@currency)
		  AND amount BETWEEN @min_amount AND @max_amount`)
	params := []bigquery.QueryParameter{
		{Name: "tenant_id", Value: sq.TenantID},
		{Name: "currency", Value: sq.Currency},
		{Name: "min_amount", Value: ratFromDecimal(sq.MinAmount)},
		{Name: "max_amount", Value: ratFromDecimal(sq.MaxAmount)},
	}
	if !sq.From.IsZero() {
		where.WriteString("\n\t\t  AND datetime >= @from_datetime")
		params = append(params, bigquery.QueryParameter{Name: "from_datetime", Value: sq.From.Format(normalize.ISOLayout)})
	}
	if !sq.To.IsZero() {
		where.WriteString("\n\t\t  AND datetime <= @to_datetime")
		params = append(params, bigquery.QueryParameter{Name: "to_datetime", Value: sq.To.Format(normalize.ISOLayout)})
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			tenant_id,
			sale_id,
			datetime,
			currency,
			amount,
			customer_name,
			customer_tax_id,
			customer_phone,
			description,
			external_ref,
			status,
			updated_ts
		FROM %s
		WHERE %s
		ORDER BY sale_id
	`, ds.table(salesTable), where.String()))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchSaleCandidatesWithClient: query read: %w", err)
	}

	var out []domain.SaleRecord
	for {
		var r SaleRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchSaleCandidatesWithClient: iterating rows: %w", err)
		}
		out = append(out, r.ToDomain())
	}
	return out, nil
}
