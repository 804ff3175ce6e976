package extract

import (
	"regexp"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

var (
	debitMarkerRe  = regexp.MustCompile(`(?i)\bD[ée]bito\b`)
	creditMarkerRe = regexp.MustCompile(`(?i)\bCr[ée]dito\b`)
)

// Galicia Office Banking movement detail. The amount sits on the movement
// line, e.g. "29/12/2025 Débito $ 38.000,00".
var galiciaMovementLayout = layout{
	sourceSystem:    "galicia",
	docType:         "movement",
	currency:        "ARS",
	operationIDType: "receipt_number",
	confidence:      confidence{parsed: 85, failed: 25},
	rules: []fieldRule{
		{fieldAmount, grab(`\b(?:Débito|Debito|Crédito|Credito)\b\s*\$\s*([0-9.,]+)`)},
		{fieldDatetime, grab(`\b(\d{2}/\d{2}/\d{4})\b`)},
		{fieldOperationID, firstOf(
			grab(`Número de comprobante\s*\n([0-9]+)`),
			grab(`Nro\.?\s*Comprobante\s*([0-9]+)`),
		)},
		{fieldConcept, firstOf(
			constIf("Trf Inmed Proveed", `Trf Inmed Proveed`),
			grab(`Tipo de movimiento\s*([^\n]+)`),
		)},
		{fieldPayerName, grab(`Leyendas adicionales\s*\n([^\n]+)`)},
		{fieldPayerTaxID, grab(`Leyendas adicionales\s*\n[^\n]+\n([0-9]{11})`)},
		{fieldPayerBank, grab(`(BANCO DE[^\n]+)`)},
	},
	direction: movementDirection,
}

// movementDirection checks the debit marker before the credit marker.
func movementDirection(text string) domain.Direction {
	switch {
	case debitMarkerRe.MatchString(text):
		return domain.DirectionDebit
	case creditMarkerRe.MatchString(text):
		return domain.DirectionCredit
	default:
		return domain.DirectionUnknown
	}
}
