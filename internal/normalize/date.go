package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the zone-less ISO-8601 form every parsed datetime is rendered in.
const ISOLayout = "2006-01-02T15:04:05"

var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var (
	// "Lunes, 29 de diciembre de 2025 a las 10:39 hs", "17 de diciembre 2025, 16:11:36"
	longDateRe  = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+([a-zñ]+)\s+(?:de\s+)?(\d{4}).*?(\d{1,2}):(\d{2})(?::(\d{2}))?`)
	shortDateRe = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
)

// ParseSpanishDate parses Spanish long-form dates with a time of day, or a
// DD/MM/YYYY date taken as midnight. It returns nil when nothing parses.
func ParseSpanishDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if m := longDateRe.FindStringSubmatch(s); m != nil {
		if month, ok := spanishMonths[strings.ToLower(m[2])]; ok {
			sec := 0
			if m[6] != "" {
				sec = atoi(m[6])
			}
			if iso, ok := buildISO(atoi(m[3]), month, atoi(m[1]), atoi(m[4]), atoi(m[5]), sec); ok {
				return &iso
			}
		}
	}

	if m := shortDateRe.FindStringSubmatch(s); m != nil {
		if iso, ok := buildISO(atoi(m[3]), time.Month(atoi(m[2])), atoi(m[1]), 0, 0, 0); ok {
			return &iso
		}
	}

	return nil
}

// isoLayouts are tried in order by ParseISO. Seconds and fractions are
// optional, as is a trailing Z or numeric offset.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	ISOLayout,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseISO reads an ISO-8601 datetime, or a bare date as midnight. The date
// and time may be separated by a space. An offset, when present, is dropped
// and the wall clock kept, so every result compares with zone-less values
// in UTC.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
	}
	return time.Time{}, false
}

// buildISO rejects components time.Date would silently roll over, such as 31/02.
func buildISO(year int, month time.Month, day, hour, minute, sec int) (string, bool) {
	if month < time.January || month > time.December || hour > 23 || minute > 59 || sec > 59 {
		return "", false
	}
	t := time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return "", false
	}
	return t.Format(ISOLayout), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
