package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

// SaleModel is the persistence model for an expected sale.
type SaleModel struct {
	TenantID      string          `gorm:"primaryKey;size:64"`
	ID            string          `gorm:"primaryKey;size:64"`
	Datetime      string          `gorm:"size:19;not null;index:idx_sales_lookup,priority:4"`
	Currency      string          `gorm:"size:3;not null;index:idx_sales_lookup,priority:2"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null;index:idx_sales_lookup,priority:3"`
	CustomerName  string          `gorm:"size:255"`
	CustomerTaxID string          `gorm:"size:20"`
	CustomerPhone string          `gorm:"size:32"`
	Description   string
	ExternalRef   string    `gorm:"size:128"`
	Status        string    `gorm:"size:20;not null;default:open"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

func saleModelFromDomain(s domain.SaleRecord) *SaleModel {
	status := string(s.Status)
	if status == "" {
		status = string(domain.SaleStatusOpen)
	}
	return &SaleModel{
		TenantID:      s.TenantID,
		ID:            s.ID,
		Datetime:      s.Datetime,
		Currency:      s.Currency,
		Amount:        s.Amount,
		CustomerName:  s.CustomerName,
		CustomerTaxID: s.CustomerTaxID,
		CustomerPhone: s.CustomerPhone,
		Description:   s.Description,
		ExternalRef:   s.ExternalRef,
		Status:        status,
	}
}

// ToDomain converts the persistence model to a domain SaleRecord.
func (m *SaleModel) ToDomain() domain.SaleRecord {
	return domain.SaleRecord{
		ID:            m.ID,
		TenantID:      m.TenantID,
		Datetime:      m.Datetime,
		Currency:      m.Currency,
		Amount:        m.Amount,
		CustomerName:  m.CustomerName,
		CustomerTaxID: m.CustomerTaxID,
		CustomerPhone: m.CustomerPhone,
		Description:   m.Description,
		ExternalRef:   m.ExternalRef,
		Status:        domain.SaleStatus(m.Status),
	}
}

// CounterpartyModel is the persistence model for a registry entry.
type CounterpartyModel struct {
	TenantID       string    `gorm:"primaryKey;size:64;index:idx_counterparty_tax_id,priority:1;index:idx_counterparty_suffix,priority:1"`
	ID             string    `gorm:"primaryKey;size:64"`
	Kind           string    `gorm:"size:20;not null;default:unknown"`
	DisplayName    string    `gorm:"size:255;not null"`
	NormalizedName string    `gorm:"size:255;not null"`
	TaxID          string    `gorm:"size:20;index:idx_counterparty_tax_id,priority:2"`
	TaxIDPrefix    string    `gorm:"size:2"`
	TaxIDSuffix    string    `gorm:"size:5;index:idx_counterparty_suffix,priority:2"`
	Provisional    bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (CounterpartyModel) TableName() string {
	return "counterparties"
}

func counterpartyModelFromDomain(c domain.CounterpartyRecord) *CounterpartyModel {
	return &CounterpartyModel{
		TenantID:       c.TenantID,
		ID:             c.ID,
		Kind:           string(c.Kind),
		DisplayName:    c.DisplayName,
		NormalizedName: c.NormalizedName,
		TaxID:          c.TaxID,
		TaxIDPrefix:    c.TaxIDPrefix,
		TaxIDSuffix:    c.TaxIDSuffix,
		Provisional:    c.Provisional,
	}
}

// ToDomain converts the persistence model to a domain CounterpartyRecord.
func (m *CounterpartyModel) ToDomain() domain.CounterpartyRecord {
	return domain.CounterpartyRecord{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Kind:           domain.CounterpartyKind(m.Kind),
		DisplayName:    m.DisplayName,
		NormalizedName: m.NormalizedName,
		TaxID:          m.TaxID,
		TaxIDPrefix:    m.TaxIDPrefix,
		TaxIDSuffix:    m.TaxIDSuffix,
		Provisional:    m.Provisional,
	}
}

// TransactionModel is the persistence model for a reconciled transaction.
// The extracted record is kept whole as JSON; resolution outcomes get
// their own columns so they can be filtered on.
type TransactionModel struct {
	TenantID   string                   `gorm:"primaryKey;size:64"`
	ID         string                   `gorm:"primaryKey;size:64"`
	SourceFile string                   `gorm:"size:255"`
	Record     domain.TransactionRecord `gorm:"type:text;serializer:json"`
	RawText    string                   `gorm:"type:text"`

	NeedsReview bool `gorm:"not null;default:false;index"`

	PayerCounterpartyID     string `gorm:"size:64"`
	PayeeCounterpartyID     string `gorm:"size:64"`
	CounterpartyMatchStatus string `gorm:"size:20"`
	CounterpartyMatchScore  int

	MatchedSaleID string `gorm:"size:64;index"`
	MatchScore    int
	MatchStatus   string    `gorm:"size:20;not null;default:unmatched"`
	MatchMethod   string    `gorm:"size:32"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "transactions"
}

func transactionModelFromDomain(t domain.ReconciledTransaction) *TransactionModel {
	return &TransactionModel{
		TenantID:                t.TenantID,
		ID:                      t.ID,
		SourceFile:              t.SourceFile,
		Record:                  t.Record,
		RawText:                 t.RawText,
		NeedsReview:             t.NeedsReview,
		PayerCounterpartyID:     t.PayerCounterpartyID,
		PayeeCounterpartyID:     t.PayeeCounterpartyID,
		CounterpartyMatchStatus: string(t.CounterpartyMatchStatus),
		CounterpartyMatchScore:  t.CounterpartyMatchScore,
		MatchedSaleID:           t.MatchedSaleID,
		MatchScore:              t.MatchScore,
		MatchStatus:             string(t.MatchStatus),
		MatchMethod:             string(t.MatchMethod),
	}
}

// ToDomain converts the persistence model to a domain ReconciledTransaction.
func (m *TransactionModel) ToDomain() domain.ReconciledTransaction {
	return domain.ReconciledTransaction{
		ID:                      m.ID,
		TenantID:                m.TenantID,
		SourceFile:              m.SourceFile,
		Record:                  m.Record,
		RawText:                 m.RawText,
		NeedsReview:             m.NeedsReview,
		PayerCounterpartyID:     m.PayerCounterpartyID,
		PayeeCounterpartyID:     m.PayeeCounterpartyID,
		CounterpartyMatchStatus: domain.MatchStatus(m.CounterpartyMatchStatus),
		CounterpartyMatchScore:  m.CounterpartyMatchScore,
		MatchedSaleID:           m.MatchedSaleID,
		MatchScore:              m.MatchScore,
		MatchStatus:             domain.MatchStatus(m.MatchStatus),
		MatchMethod:             domain.MatchMethod(m.MatchMethod),
	}
}

// allModels is the AutoMigrate set.
var allModels = []any{&SaleModel{}, &CounterpartyModel{}, &TransactionModel{}}
