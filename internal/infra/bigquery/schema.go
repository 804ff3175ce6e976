package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// tableDDL holds the CREATE statements for every table the repository uses.
// Columns mirror the row structs in rows.go.
var tableDDL = map[string]string{
	salesTable: `
		CREATE TABLE IF NOT EXISTS %s (
			tenant_id       STRING NOT NULL,
			sale_id         STRING NOT NULL,
			datetime        STRING NOT NULL,
			currency        STRING NOT NULL,
			amount          NUMERIC NOT NULL,
			customer_name   STRING,
			customer_tax_id STRING,
			customer_phone  STRING,
			description     STRING,
			external_ref    STRING,
			status          STRING NOT NULL,
			updated_ts      TIMESTAMP NOT NULL
		)
		CLUSTER BY tenant_id, currency`,
	counterpartiesTable: `
		CREATE TABLE IF NOT EXISTS %s (
			tenant_id       STRING NOT NULL,
			counterparty_id STRING NOT NULL,
			kind            STRING NOT NULL,
			display_name    STRING NOT NULL,
			normalized_name STRING NOT NULL,
			tax_id          STRING,
			tax_id_prefix   STRING,
			tax_id_suffix   STRING,
			provisional     BOOL NOT NULL,
			updated_ts      TIMESTAMP NOT NULL
		)
		CLUSTER BY tenant_id, tax_id_suffix`,
	transactionsTable: `
		CREATE TABLE IF NOT EXISTS %s (
			tenant_id                 STRING NOT NULL,
			transaction_id            STRING NOT NULL,
			source_file               STRING,
			record                    STRING NOT NULL,
			raw_text                  STRING,
			needs_review              BOOL NOT NULL,
			payer_counterparty_id     STRING,
			payee_counterparty_id     STRING,
			counterparty_match_status STRING,
			counterparty_match_score  INT64,
			matched_sale_id           STRING,
			match_score               INT64,
			match_status              STRING NOT NULL,
			match_method              STRING,
			updated_ts                TIMESTAMP NOT NULL
		)
		CLUSTER BY tenant_id, match_status`,
}

// schemaOrder fixes the creation order so runs are reproducible.
var schemaOrder = []string{salesTable, counterpartiesTable, transactionsTable}

// EnsureSchemaWithClient creates any missing table in the dataset.
func EnsureSchemaWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	for _, name := range schemaOrder {
		sql := fmt.Sprintf(tableDDL[name], ds.table(name))
		if err := runDML(ctx, client, sql, nil); err != nil {
			return fmt.Errorf("EnsureSchemaWithClient: creating %s: %w", name, err)
		}
	}
	return nil
}
