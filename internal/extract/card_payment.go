package extract

import (
	"regexp"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

// Masked ids look like "CUIT***12345**". The text layer of these receipts
// duplicates glyphs ("TTííttuulloo::"), so titles are matched in both forms.
var maskedTaxIDRe = regexp.MustCompile(`(?i)CUIT[:\s]*(\*+[\s-]?[0-9]{4,5}[\s-]?\*+)`)

// Credit-card payment confirmation. Counterparties only appear with masked
// tax ids, so every record goes to review until the registry resolves them.
var cardPaymentLayout = layout{
	sourceSystem:    "card_payment",
	docType:         "card_payment",
	currency:        "ARS",
	operationIDType: "transaction_number",
	confidence:      confidence{parsed: 80, failed: 20},
	alwaysReview:    true,
	rules: []fieldRule{
		{fieldAmount, grab(`\$\s*([0-9.,]+)`)},
		{fieldDatetime, grab(`Comprobante de pago\s*\n([^\n]+)`)},
		{fieldOperationID, grab(`N[úu]mero de transacci[óo]n::?\s*([0-9]+)`)},
		{fieldConcept, firstOf(
			grab(`TT[íi]{1,2}ttuulloo::\s*([^\n]+)`),
			grab(`T[íi]tulo:\s*([^\n]+)`),
		)},
		{fieldPayerName, grab(`\bDe\s*\n([^\n]+)`)},
		{fieldPayeeName, grab(`\bPara\s*\n([^\n]+)`)},
	},
	finish: assignMaskedTaxIDs,
}

// assignMaskedTaxIDs gives the first masked id in document order to the
// payer and the second, if any, to the payee.
func assignMaskedTaxIDs(text string, rec *domain.TransactionRecord) {
	matches := maskedTaxIDRe.FindAllStringSubmatch(text, 2)
	if len(matches) >= 1 {
		rec.Payer.TaxIDMasked = domain.StrPtr(matches[0][1])
	}
	if len(matches) >= 2 {
		rec.Payee.TaxIDMasked = domain.StrPtr(matches[1][1])
	}
}
