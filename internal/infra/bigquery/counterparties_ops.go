package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

const counterpartyColumns = `
			tenant_id,
			counterparty_id,
			kind,
			display_name,
			normalized_name,
			tax_id,
			tax_id_prefix,
			tax_id_suffix,
			provisional,
			updated_ts`

func counterpartyParams(row CounterpartyRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "tenant_id", Value: row.TenantID},
		{Name: "counterparty_id", Value: row.CounterpartyID},
		{Name: "kind", Value: row.Kind},
		{Name: "display_name", Value: row.DisplayName},
		{Name: "normalized_name", Value: row.NormalizedName},
		{Name: "tax_id", Value: row.TaxID},
		{Name: "tax_id_prefix", Value: row.TaxIDPrefix},
		{Name: "tax_id_suffix", Value: row.TaxIDSuffix},
		{Name: "provisional", Value: row.Provisional},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

// UpsertCounterpartyWithClient inserts or replaces a registry entry keyed by
// (tenant_id, counterparty_id).
func UpsertCounterpartyWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rec domain.CounterpartyRecord) error {
	params := counterpartyParams(counterpartyRowFromDomain(rec, time.Now().UTC()))
	sql := mergeSQL(ds.table(counterpartiesTable), []string{"tenant_id", "counterparty_id"}, params)
	if err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("UpsertCounterpartyWithClient: %w", err)
	}
	return nil
}

// FindCounterpartyByTaxIDWithClient returns the entry with the lowest id
// whose full tax id equals taxID.
func FindCounterpartyByTaxIDWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tenantID, taxID string) (domain.CounterpartyRecord, bool, error) {
	if taxID == "" {
		return domain.CounterpartyRecord{}, false, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE tenant_id = @tenant_id
		  AND tax_id = @tax_id
		ORDER BY counterparty_id
		LIMIT 1
	`, counterpartyColumns, ds.table(counterpartiesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "tax_id", Value: taxID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.CounterpartyRecord{}, false, fmt.Errorf("FindCounterpartyByTaxIDWithClient: reading query: %w", err)
	}

	var row CounterpartyRow
	err = it.Next(&row)
	if err == iterator.Done {
		return domain.CounterpartyRecord{}, false, nil
	}
	if err != nil {
		return domain.CounterpartyRecord{}, false, fmt.Errorf("FindCounterpartyByTaxIDWithClient: iterating: %w", err)
	}
	return row.ToDomain(), true, nil
}

// ListCounterpartiesWithClient returns the tenant's entries with the given
// tax id suffix, or all of them when suffix is empty.
func ListCounterpartiesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tenantID, suffix string) ([]domain.CounterpartyRecord, error) {
	filter := ""
	params := []bigquery.QueryParameter{{Name: "tenant_id", Value: tenantID}}
	if suffix != "" {
		filter = "AND tax_id_suffix = @suffix"
		params = append(params, bigquery.QueryParameter{Name: "suffix", Value: suffix})
	}

	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE tenant_id = @tenant_id
		  %s
		ORDER BY counterparty_id
	`, counterpartyColumns, ds.table(counterpartiesTable), filter))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCounterpartiesWithClient: query read: %w", err)
	}

	var out []domain.CounterpartyRecord
	for {
		var r CounterpartyRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCounterpartiesWithClient: iterating rows: %w", err)
		}
		out = append(out, r.ToDomain())
	}
	return out, nil
}
