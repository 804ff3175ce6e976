// Package normalize canonicalizes the money, date and name strings found in
// extracted document text.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney parses an amount written with "." as thousands separator and
// "," as decimal separator ("38.000,00", "13.300"). It returns an invalid
// NullDecimal for anything that does not reduce to a number.
func ParseMoney(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
