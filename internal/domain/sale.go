package domain

import (
	"github.com/shopspring/decimal"
)

// SaleStatus tracks whether a receivable has been accounted for.
type SaleStatus string

const (
	SaleStatusOpen    SaleStatus = "open"
	SaleStatusMatched SaleStatus = "matched"
)

// SaleRecord is an expected receivable. The matcher only reads it.
type SaleRecord struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Datetime      string          `json:"datetime"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerTaxID string          `json:"customer_tax_id,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Description   string          `json:"description,omitempty"`
	ExternalRef   string          `json:"external_ref,omitempty"`
	Status        SaleStatus      `json:"status"`
}

// SaleDraft is what the generic sale-document parser recovers from free-form
// text. Every field is optional.
type SaleDraft struct {
	Amount            decimal.NullDecimal `json:"amount"`
	Datetime          *string             `json:"datetime"`
	CustomerName      *string             `json:"customer_name"`
	CustomerPhone     *string             `json:"customer_phone"`
	CustomerTaxID     *string             `json:"customer_tax_id"`
	CustomerTaxSuffix *string             `json:"customer_tax_suffix"`
	ExternalRef       *string             `json:"external_ref"`
	RawText           string              `json:"raw_text"`
}
