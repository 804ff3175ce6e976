package extract

// Mercado Pago transfer receipt. The payer and payee blocks read
//
//	De
//	<name>
//	CUIT/CUIL: <id>
//
// with the payee bank on the line after the payee's tax id.
var mpTransferLayout = layout{
	sourceSystem:    "mercado_pago",
	docType:         "transfer",
	currency:        "ARS",
	operationIDType: "mp_operation",
	confidence:      confidence{parsed: 90, failed: 30},
	rules: []fieldRule{
		{fieldAmount, grab(`\$\s*([0-9.,]+)`)},
		{fieldDatetime, grab(`Comprobante de transferencia\s*\n([^\n]+)`)},
		{fieldOperationID, firstOf(
			grab(`Número de operación de Mercado Pago\s*\n([0-9]+)`),
			grab(`N° de operación\s*([0-9]+)`),
		)},
		{fieldConcept, grab(`Motivo:\s*([^\n]+)`)},
		{fieldPayerName, grab(`\bDe\s*\n([^\n]+)`)},
		{fieldPayerTaxID, grab(`\bDe\s*\n[^\n]+\nCUIT/CUIL:\s*([0-9-]+)`)},
		{fieldPayerBank, constIf("Mercado Pago", `\bMercado Pago\b`)},
		{fieldPayerAccountType, constIfContains("CVU", "CVU:")},
		{fieldPayerAccountID, grab(`CVU:\s*([0-9]+)`)},
		{fieldPayeeName, grab(`\bPara\s*\n([^\n]+)`)},
		{fieldPayeeTaxID, grab(`\bPara\s*\n[^\n]+\nCUIT/CUIL:\s*([0-9-]+)`)},
		{fieldPayeeBank, grab(`\bPara\s*\n[^\n]+\n[^\n]+\n([^\n]+)`)},
		{fieldPayeeAccountType, constIfContains("CBU", "CBU:")},
		{fieldPayeeAccountID, grab(`CBU:\s*([0-9]+)`)},
	},
}
