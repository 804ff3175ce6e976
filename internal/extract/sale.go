package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/normalize"
)

const saleRawTextLimit = 500

var currencyTokens = strings.NewReplacer("ARS", "", "$", "", "USD", "")

var (
	latamAmountRe = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3})*,\d{2})\b`)
	intlAmountRe  = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})*\.\d{2})\b`)
	bareIntegerRe = regexp.MustCompile(`\b(\d{3,})\b`)
)

// Phone patterns in priority order: +54 prefixed, grouped, bare 10 digits.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+54\s*9?\s*(\d{2,4}[\s-]?\d{4}[\s-]?\d{4})`),
	regexp.MustCompile(`\b(\d{2,4}[\s-]\d{4}[\s-]\d{4})\b`),
	regexp.MustCompile(`\b(\d{10})\b`),
}

var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:pedido|referencia|ref|order)\b[:\s#]*([A-Z0-9-]+)`),
	regexp.MustCompile(`#(\d{3,})`),
}

var (
	separatorRe       = regexp.MustCompile(`[\s-]`)
	saleTaxIDRe       = regexp.MustCompile(`\b(\d{2}[\s-]?\d{8}[\s-]?\d)\b`)
	customerKeywordRe = regexp.MustCompile(`(?i:cliente|nombre|customer|name)[:\s]+([A-ZÁÉÍÓÚÑ][\p{L} \t]+)`)
	numericDateRe     = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`)
	isoDateRe         = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
)

var nonNameKeywords = []string{"total", "fecha", "precio", "cantidad", "importe"}

var numericDateLayouts = []string{"2/1/2006", "2-1-2006", "2/1/06", "2-1-06"}

// ParseSale recovers what it can of a sale from free-form receipt text such
// as a chat upload. Missing fields stay nil; it never fails.
func ParseSale(text string) domain.SaleDraft {
	draft := domain.SaleDraft{
		Amount:        saleAmount(text),
		Datetime:      saleDatetime(text),
		CustomerName:  domain.StrPtr(customerName(text)),
		CustomerPhone: domain.StrPtr(phone(text)),
		ExternalRef:   domain.StrPtr(reference(text)),
		RawText:       truncateRunes(text, saleRawTextLimit),
	}
	if taxID, suffix := saleTaxID(text); taxID != "" {
		draft.CustomerTaxID = &taxID
		draft.CustomerTaxSuffix = &suffix
	}
	return draft
}

// saleAmount prefers decimal forms and, within a form, the last occurrence:
// totals tend to follow subtotals.
func saleAmount(text string) decimal.NullDecimal {
	clean := currencyTokens.Replace(text)

	if m := lastMatch(latamAmountRe, clean); m != "" {
		s := strings.ReplaceAll(m, ".", "")
		if d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1)); err == nil {
			return decimal.NewNullDecimal(d)
		}
	}
	if m := lastMatch(intlAmountRe, clean); m != "" {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", "")); err == nil {
			return decimal.NewNullDecimal(d)
		}
	}
	if m := lastMatch(bareIntegerRe, clean); m != "" {
		if d, err := decimal.NewFromString(m); err == nil {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

func lastMatch(re *regexp.Regexp, text string) string {
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1][1]
}

func phone(text string) string {
	for _, re := range phonePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		p := separatorRe.ReplaceAllString(m[1], "")
		if len(p) >= 10 {
			return p
		}
	}
	return ""
}

// saleTaxID returns a CUIT/CUIL with separators removed and its last 5 digits.
func saleTaxID(text string) (string, string) {
	m := saleTaxIDRe.FindString(text)
	if m == "" {
		return "", ""
	}
	d := normalize.Digits(m)
	if len(d) != 11 {
		return "", ""
	}
	return d, d[len(d)-5:]
}

func reference(text string) string {
	for _, re := range referencePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func customerName(text string) string {
	if m := customerKeywordRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(name) > 3 {
			return name
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 5 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(line)
		if !unicode.IsUpper(first) {
			continue
		}
		if containsAny(strings.ToLower(line), nonNameKeywords) {
			continue
		}
		return line
	}
	return ""
}

func saleDatetime(text string) *string {
	if m := numericDateRe.FindString(text); m != "" {
		for _, layout := range numericDateLayouts {
			if t, err := time.Parse(layout, m); err == nil {
				iso := t.Format(normalize.ISOLayout)
				return &iso
			}
		}
	}
	if m := isoDateRe.FindString(text); m != "" {
		if t, ok := normalize.ParseISO(m); ok {
			iso := t.Format(normalize.ISOLayout)
			return &iso
		}
	}
	return nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
