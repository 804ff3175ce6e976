package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

// SaleRow represents a row in the sales table.
type SaleRow struct {
	TenantID      string    `bigquery:"tenant_id"`
	SaleID        string    `bigquery:"sale_id"`
	Datetime      string    `bigquery:"datetime"` // ISO-8601, no zone
	Currency      string    `bigquery:"currency"`
	Amount        *big.Rat  `bigquery:"amount"` // NUMERIC
	CustomerName  string    `bigquery:"customer_name"`
	CustomerTaxID string    `bigquery:"customer_tax_id"`
	CustomerPhone string    `bigquery:"customer_phone"`
	Description   string    `bigquery:"description"`
	ExternalRef   string    `bigquery:"external_ref"`
	Status        string    `bigquery:"status"`
	UpdatedTS     time.Time `bigquery:"updated_ts"`
}

// CounterpartyRow represents a row in the counterparties table.
type CounterpartyRow struct {
	TenantID       string    `bigquery:"tenant_id"`
	CounterpartyID string    `bigquery:"counterparty_id"`
	Kind           string    `bigquery:"kind"`
	DisplayName    string    `bigquery:"display_name"`
	NormalizedName string    `bigquery:"normalized_name"`
	TaxID          string    `bigquery:"tax_id"`
	TaxIDPrefix    string    `bigquery:"tax_id_prefix"`
	TaxIDSuffix    string    `bigquery:"tax_id_suffix"`
	Provisional    bool      `bigquery:"provisional"`
	UpdatedTS      time.Time `bigquery:"updated_ts"`
}

// TransactionRow represents a row in the transactions table. The extracted
// record is stored as a JSON string.
type TransactionRow struct {
	TenantID                string    `bigquery:"tenant_id"`
	TransactionID           string    `bigquery:"transaction_id"`
	SourceFile              string    `bigquery:"source_file"`
	Record                  string    `bigquery:"record"`
	RawText                 string    `bigquery:"raw_text"`
	NeedsReview             bool      `bigquery:"needs_review"`
	PayerCounterpartyID     string    `bigquery:"payer_counterparty_id"`
	PayeeCounterpartyID     string    `bigquery:"payee_counterparty_id"`
	CounterpartyMatchStatus string    `bigquery:"counterparty_match_status"`
	CounterpartyMatchScore  int64     `bigquery:"counterparty_match_score"`
	MatchedSaleID           string    `bigquery:"matched_sale_id"`
	MatchScore              int64     `bigquery:"match_score"`
	MatchStatus             string    `bigquery:"match_status"`
	MatchMethod             string    `bigquery:"match_method"`
	UpdatedTS               time.Time `bigquery:"updated_ts"`
}

// ratFromDecimal converts to the NUMERIC representation the client expects.
func ratFromDecimal(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

// decimalFromRat converts a NUMERIC value back. NUMERIC has 9 fractional
// digits, so no precision is lost.
func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func saleRowFromDomain(s domain.SaleRecord, now time.Time) SaleRow {
	status := string(s.Status)
	if status == "" {
		status = string(domain.SaleStatusOpen)
	}
	return SaleRow{
		TenantID:      s.TenantID,
		SaleID:        s.ID,
		Datetime:      s.Datetime,
		Currency:      s.Currency,
		Amount:        ratFromDecimal(s.Amount),
		CustomerName:  s.CustomerName,
		CustomerTaxID: s.CustomerTaxID,
		CustomerPhone: s.CustomerPhone,
		Description:   s.Description,
		ExternalRef:   s.ExternalRef,
		Status:        status,
		UpdatedTS:     now,
	}
}

// ToDomain converts the row to a domain SaleRecord.
func (r SaleRow) ToDomain() domain.SaleRecord {
	return domain.SaleRecord{
		ID:            r.SaleID,
		TenantID:      r.TenantID,
		Datetime:      r.Datetime,
		Currency:      r.Currency,
		Amount:        decimalFromRat(r.Amount),
		CustomerName:  r.CustomerName,
		CustomerTaxID: r.CustomerTaxID,
		CustomerPhone: r.CustomerPhone,
		Description:   r.Description,
		ExternalRef:   r.ExternalRef,
		Status:        domain.SaleStatus(r.Status),
	}
}

func counterpartyRowFromDomain(c domain.CounterpartyRecord, now time.Time) CounterpartyRow {
	return CounterpartyRow{
		TenantID:       c.TenantID,
		CounterpartyID: c.ID,
		Kind:           string(c.Kind),
		DisplayName:    c.DisplayName,
		NormalizedName: c.NormalizedName,
		TaxID:          c.TaxID,
		TaxIDPrefix:    c.TaxIDPrefix,
		TaxIDSuffix:    c.TaxIDSuffix,
		Provisional:    c.Provisional,
		UpdatedTS:      now,
	}
}

// ToDomain converts the row to a domain CounterpartyRecord.
func (r CounterpartyRow) ToDomain() domain.CounterpartyRecord {
	return domain.CounterpartyRecord{
		ID:             r.CounterpartyID,
		TenantID:       r.TenantID,
		Kind:           domain.CounterpartyKind(r.Kind),
		DisplayName:    r.DisplayName,
		NormalizedName: r.NormalizedName,
		TaxID:          r.TaxID,
		TaxIDPrefix:    r.TaxIDPrefix,
		TaxIDSuffix:    r.TaxIDSuffix,
		Provisional:    r.Provisional,
	}
}

func transactionRowFromDomain(t domain.ReconciledTransaction, now time.Time) (TransactionRow, error) {
	record, err := json.Marshal(t.Record)
	if err != nil {
		return TransactionRow{}, fmt.Errorf("transactionRowFromDomain: marshaling record: %w", err)
	}
	return TransactionRow{
		TenantID:                t.TenantID,
		TransactionID:           t.ID,
		SourceFile:              t.SourceFile,
		Record:                  string(record),
		RawText:                 t.RawText,
		NeedsReview:             t.NeedsReview,
		PayerCounterpartyID:     t.PayerCounterpartyID,
		PayeeCounterpartyID:     t.PayeeCounterpartyID,
		CounterpartyMatchStatus: string(t.CounterpartyMatchStatus),
		CounterpartyMatchScore:  int64(t.CounterpartyMatchScore),
		MatchedSaleID:           t.MatchedSaleID,
		MatchScore:              int64(t.MatchScore),
		MatchStatus:             string(t.MatchStatus),
		MatchMethod:             string(t.MatchMethod),
		UpdatedTS:               now,
	}, nil
}

// ToDomain converts the row to a domain ReconciledTransaction.
func (r TransactionRow) ToDomain() (domain.ReconciledTransaction, error) {
	var record domain.TransactionRecord
	if r.Record != "" {
		if err := json.Unmarshal([]byte(r.Record), &record); err != nil {
			return domain.ReconciledTransaction{}, fmt.Errorf("ToDomain: unmarshaling record of %s: %w", r.TransactionID, err)
		}
	}
	return domain.ReconciledTransaction{
		ID:                      r.TransactionID,
		TenantID:                r.TenantID,
		SourceFile:              r.SourceFile,
		Record:                  record,
		RawText:                 r.RawText,
		NeedsReview:             r.NeedsReview,
		PayerCounterpartyID:     r.PayerCounterpartyID,
		PayeeCounterpartyID:     r.PayeeCounterpartyID,
		CounterpartyMatchStatus: domain.MatchStatus(r.CounterpartyMatchStatus),
		CounterpartyMatchScore:  int(r.CounterpartyMatchScore),
		MatchedSaleID:           r.MatchedSaleID,
		MatchScore:              int(r.MatchScore),
		MatchStatus:             domain.MatchStatus(r.MatchStatus),
		MatchMethod:             domain.MatchMethod(r.MatchMethod),
	}, nil
}
