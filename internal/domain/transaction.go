package domain

import (
	"github.com/shopspring/decimal"
)

// DocType tags the layout family a piece of extracted text belongs to.
type DocType string

const (
	DocTypeMPTransfer      DocType = "mp_transfer"
	DocTypeGaliciaMovement DocType = "galicia_movement"
	DocTypeCardPayment     DocType = "card_payment"
	DocTypeUnknown         DocType = "unknown"
)

// IsKnown reports whether a field parser exists for the type.
func (t DocType) IsKnown() bool {
	switch t {
	case DocTypeMPTransfer, DocTypeGaliciaMovement, DocTypeCardPayment:
		return true
	}
	return false
}

// Direction of money movement as seen by the document owner.
type Direction string

const (
	DirectionDebit   Direction = "debit"
	DirectionCredit  Direction = "credit"
	DirectionUnknown Direction = "unknown"
)

// ExtractedDocument is raw text plus the type the classifier assigned to it.
// It lives only between classification and parsing.
type ExtractedDocument struct {
	Text    string
	DocType DocType
}

// Party holds the identity and account fields for one side of a transaction.
// TaxID is the plain CUIT/CUIL; TaxIDMasked is a partially hidden one.
type Party struct {
	Name        *string `json:"name"`
	TaxID       *string `json:"tax_id"`
	TaxIDMasked *string `json:"tax_id_masked"`
	Bank        *string `json:"bank"`
	AccountType *string `json:"account_type"`
	AccountID   *string `json:"account_id"`
}

// HasIdentity reports whether any field usable for counterparty resolution is set.
func (p Party) HasIdentity() bool {
	return p.Name != nil || p.TaxID != nil || p.TaxIDMasked != nil
}

// TransactionRecord is the normalized output of a field parser. Parsers build
// it once; nothing in the engine mutates it afterwards.
type TransactionRecord struct {
	SourceSystem    *string             `json:"source_system"`
	DocType         *string             `json:"doc_type"`
	Currency        *string             `json:"currency"`
	Amount          decimal.NullDecimal `json:"amount"`
	Datetime        *string             `json:"datetime"` // ISO-8601, no zone
	Direction       Direction           `json:"direction"`
	OperationID     *string             `json:"operation_id"`
	OperationIDType *string             `json:"operation_id_type"`
	Payer           Party               `json:"payer"`
	Payee           Party               `json:"payee"`
	Concept         *string             `json:"concept"`
	ParseConfidence int                 `json:"parse_confidence"`
	NeedsReview     bool                `json:"needs_review"`
}

// CurrencyOr returns the record currency or def when none was extracted.
func (r *TransactionRecord) CurrencyOr(def string) string {
	if r.Currency == nil || *r.Currency == "" {
		return def
	}
	return *r.Currency
}

// ReconciledTransaction is a TransactionRecord as persisted by the pipeline,
// annotated with counterparty and sale resolution outcomes.
type ReconciledTransaction struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	SourceFile string            `json:"source_file"`
	Record     TransactionRecord `json:"record"`
	RawText    string            `json:"raw_text,omitempty"`

	NeedsReview bool `json:"needs_review"`

	PayerCounterpartyID     string      `json:"payer_counterparty_id,omitempty"`
	PayeeCounterpartyID     string      `json:"payee_counterparty_id,omitempty"`
	CounterpartyMatchStatus MatchStatus `json:"counterparty_match_status"`
	CounterpartyMatchScore  int         `json:"counterparty_match_score"`

	MatchedSaleID string      `json:"matched_sale_id,omitempty"`
	MatchScore    int         `json:"match_score"`
	MatchStatus   MatchStatus `json:"match_status"`
	MatchMethod   MatchMethod `json:"match_method"`
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StrVal dereferences p, returning "" for nil.
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
