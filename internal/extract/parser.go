package extract

import (
	"regexp"
	"strings"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/normalize"
)

// Field names shared by every layout's rule table.
const (
	fieldAmount           = "amount"
	fieldDatetime         = "datetime"
	fieldOperationID      = "operation_id"
	fieldConcept          = "concept"
	fieldPayerName        = "payer_name"
	fieldPayerTaxID       = "payer_tax_id"
	fieldPayerBank        = "payer_bank"
	fieldPayerAccountType = "payer_account_type"
	fieldPayerAccountID   = "payer_account_id"
	fieldPayeeName        = "payee_name"
	fieldPayeeTaxID       = "payee_tax_id"
	fieldPayeeBank        = "payee_bank"
	fieldPayeeAccountType = "payee_account_type"
	fieldPayeeAccountID   = "payee_account_id"
)

// An extractor returns the field value found in text, or "".
type extractor func(text string) string

type fieldRule struct {
	field   string
	extract extractor
}

type fields map[string]string

func (f fields) ptr(name string) *string {
	return domain.StrPtr(f[name])
}

// extractAll evaluates every rule independently against text.
func extractAll(text string, rules []fieldRule) fields {
	out := make(fields, len(rules))
	for _, r := range rules {
		if v := r.extract(text); v != "" {
			out[r.field] = v
		}
	}
	return out
}

// grab returns the trimmed first capture group of the first match.
// Patterns are compiled case-insensitive.
func grab(pattern string) extractor {
	re := regexp.MustCompile("(?i)" + pattern)
	return func(text string) string {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return ""
		}
		return strings.TrimSpace(m[1])
	}
}

// firstOf tries extractors in order and keeps the first hit.
func firstOf(extractors ...extractor) extractor {
	return func(text string) string {
		for _, ex := range extractors {
			if v := ex(text); v != "" {
				return v
			}
		}
		return ""
	}
}

// constIf yields value when pattern matches anywhere in text.
func constIf(value, pattern string) extractor {
	re := regexp.MustCompile("(?i)" + pattern)
	return func(text string) string {
		if re.MatchString(text) {
			return value
		}
		return ""
	}
}

// constIfContains yields value when marker appears verbatim in text.
func constIfContains(value, marker string) extractor {
	return func(text string) string {
		if strings.Contains(text, marker) {
			return value
		}
		return ""
	}
}

// confidence holds the fixed parse confidence of a layout, by amount outcome.
type confidence struct {
	parsed int
	failed int
}

func (c confidence) score(amountOK bool) int {
	if amountOK {
		return c.parsed
	}
	return c.failed
}

// layout describes one document family: its provenance labels, its
// confidence scalars and its ordered field rules.
type layout struct {
	sourceSystem    string
	docType         string
	currency        string
	operationIDType string
	confidence      confidence
	alwaysReview    bool
	rules           []fieldRule
	// direction and finish may be nil.
	direction func(text string) domain.Direction
	finish    func(text string, rec *domain.TransactionRecord)
}

func (l layout) parse(text string) domain.TransactionRecord {
	f := extractAll(text, l.rules)

	amount := normalize.ParseMoney(f[fieldAmount])
	direction := domain.DirectionUnknown
	if l.direction != nil {
		direction = l.direction(text)
	}

	rec := domain.TransactionRecord{
		SourceSystem:    domain.StrPtr(l.sourceSystem),
		DocType:         domain.StrPtr(l.docType),
		Currency:        domain.StrPtr(l.currency),
		Amount:          amount,
		Datetime:        normalize.ParseSpanishDate(f[fieldDatetime]),
		Direction:       direction,
		OperationID:     f.ptr(fieldOperationID),
		OperationIDType: domain.StrPtr(l.operationIDType),
		Payer: domain.Party{
			Name:        f.ptr(fieldPayerName),
			TaxID:       f.ptr(fieldPayerTaxID),
			Bank:        f.ptr(fieldPayerBank),
			AccountType: f.ptr(fieldPayerAccountType),
			AccountID:   f.ptr(fieldPayerAccountID),
		},
		Payee: domain.Party{
			Name:        f.ptr(fieldPayeeName),
			TaxID:       f.ptr(fieldPayeeTaxID),
			Bank:        f.ptr(fieldPayeeBank),
			AccountType: f.ptr(fieldPayeeAccountType),
			AccountID:   f.ptr(fieldPayeeAccountID),
		},
		Concept:         f.ptr(fieldConcept),
		ParseConfidence: l.confidence.score(amount.Valid),
		NeedsReview:     l.alwaysReview || !amount.Valid,
	}
	if l.finish != nil {
		l.finish(text, &rec)
	}
	return rec
}

var layouts = map[domain.DocType]layout{
	domain.DocTypeMPTransfer:      mpTransferLayout,
	domain.DocTypeGaliciaMovement: galiciaMovementLayout,
	domain.DocTypeCardPayment:     cardPaymentLayout,
}

// Parse extracts a TransactionRecord for a classified document. Unknown
// types yield a stub that only carries a low confidence and the review flag.
// Blank text of a known type still goes through its layout.
func Parse(docType domain.DocType, text string) domain.TransactionRecord {
	l, ok := layouts[docType]
	if !ok {
		return unknownRecord()
	}
	return l.parse(text)
}

// ParseDocument classifies text, honouring hint when it names a known
// type, and parses it.
func ParseDocument(text string, hint domain.DocType) (domain.ExtractedDocument, domain.TransactionRecord) {
	doc := ClassifyDocument(text, hint)
	return doc, Parse(doc.DocType, text)
}

// ClassifyDocument assigns a document type to text. A known hint wins over
// the classifier.
func ClassifyDocument(text string, hint domain.DocType) domain.ExtractedDocument {
	doc := domain.ExtractedDocument{Text: text, DocType: hint}
	if !hint.IsKnown() {
		doc.DocType = Classify(text)
	}
	return doc
}

func unknownRecord() domain.TransactionRecord {
	return domain.TransactionRecord{
		Direction:       domain.DirectionUnknown,
		ParseConfidence: 10,
		NeedsReview:     true,
	}
}
