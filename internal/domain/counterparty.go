package domain

// CounterpartyKind classifies a registry entry.
type CounterpartyKind string

const (
	CounterpartyPerson  CounterpartyKind = "person"
	CounterpartyCompany CounterpartyKind = "company"
	CounterpartyUnknown CounterpartyKind = "unknown"
)

// CounterpartyRecord is a deduplicated identity in a tenant's registry.
// TaxIDPrefix holds the first 2 digits and TaxIDSuffix the last 5, so masked
// identifiers can be looked up by what remains visible.
type CounterpartyRecord struct {
	ID             string           `json:"id"`
	TenantID       string           `json:"tenant_id"`
	Kind           CounterpartyKind `json:"kind"`
	DisplayName    string           `json:"display_name"`
	NormalizedName string           `json:"normalized_name"`
	TaxID          string           `json:"tax_id,omitempty"`
	TaxIDPrefix    string           `json:"tax_id_prefix,omitempty"`
	TaxIDSuffix    string           `json:"tax_id_suffix,omitempty"`
	Provisional    bool             `json:"provisional"`
}
