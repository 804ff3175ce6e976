package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
)

const (
	salesTable          = "sales"
	counterpartiesTable = "counterparties"
	transactionsTable   = "transactions"
)

// Dataset locates the tables of one deployment.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// table returns the quoted, fully qualified name of a table.
func (d Dataset) table(name string) string {
	return "`" + d.ProjectID + "." + d.DatasetID + "." + name + "`"
}

// runDML runs a statement that returns no rows and waits for it to finish.
func runDML(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) error {
	q := client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// mergeSQL builds a MERGE that upserts one row given as named parameters.
// Parameter names double as column names; keys identify the row.
func mergeSQL(table string, keys []string, params []bigquery.QueryParameter) string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	var (
		selects []string
		cols    []string
		values  []string
		on      []string
		updates []string
	)
	for _, p := range params {
		selects = append(selects, fmt.Sprintf("@%s AS %s", p.Name, p.Name))
		cols = append(cols, p.Name)
		values = append(values, "S."+p.Name)
		if isKey[p.Name] {
			on = append(on, fmt.Sprintf("T.%s = S.%s", p.Name, p.Name))
		} else {
			updates = append(updates, fmt.Sprintf("%s = S.%s", p.Name, p.Name))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE %s T\n", table)
	fmt.Fprintf(&b, "USING (SELECT %s) S\n", strings.Join(selects, ", "))
	fmt.Fprintf(&b, "ON %s\n", strings.Join(on, " AND "))
	fmt.Fprintf(&b, "WHEN MATCHED THEN UPDATE SET %s\n", strings.Join(updates, ", "))
	fmt.Fprintf(&b, "WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(values, ", "))
	return b.String()
}
