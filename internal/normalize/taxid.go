package normalize

import (
	"strings"
)

// Digits drops every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// VisibleSuffix joins the digit groups left visible in a masked tax id
// ("CUIT***12345**" gives "12345"). Only 4 or 5 digit results are usable for
// suffix lookups; anything else yields "".
func VisibleSuffix(masked string) string {
	d := Digits(masked)
	if len(d) == 4 || len(d) == 5 {
		return d
	}
	return ""
}

// TaxIDParts splits a full CUIT/CUIL into its 2 digit prefix and 5 digit
// suffix. ok is false when fewer than 11 digits are present.
func TaxIDParts(taxID string) (prefix, suffix string, ok bool) {
	d := Digits(taxID)
	if len(d) < 11 {
		return "", "", false
	}
	return d[:2], d[len(d)-5:], true
}
