// Package extract turns extracted document text into transaction records and
// sale drafts using ordered, per-layout field rules.
package extract

import (
	"strings"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

type classifierRule struct {
	docType domain.DocType
	all     []string
	anyOf   []string
}

// Rules are mutually exclusive; the first one satisfied wins.
var classifierRules = []classifierRule{
	{
		docType: domain.DocTypeMPTransfer,
		all:     []string{"comprobante de transferencia", "mercado pago"},
	},
	{
		docType: domain.DocTypeGaliciaMovement,
		all:     []string{"office banking", "detalle de movimiento"},
	},
	{
		docType: domain.DocTypeCardPayment,
		all:     []string{"comprobante de pago"},
		anyOf:   []string{"tarjeta de crédito", "tarjeta de credito"},
	},
}

// Classify assigns a document type by marker phrases, case-insensitively.
func Classify(text string) domain.DocType {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return domain.DocTypeUnknown
	}
	for _, r := range classifierRules {
		if r.matches(t) {
			return r.docType
		}
	}
	return domain.DocTypeUnknown
}

func (r classifierRule) matches(lower string) bool {
	for _, marker := range r.all {
		if !strings.Contains(lower, marker) {
			return false
		}
	}
	if len(r.anyOf) == 0 {
		return true
	}
	for _, marker := range r.anyOf {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
