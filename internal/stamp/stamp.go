// Package stamp converts between caller-supplied timestamps, stored instants
// and the DD.MM.YYYY HH:MM display form used by the reception screens.
package stamp

import (
	"strings"
	"time"
)

// Layout is the display format of every timestamp in API responses.
const Layout = "02.01.2006 15:04"

// isoLayouts are tried in order against input whose date/time separator has
// been rewritten to 'T'. Fractional seconds are accepted after any layout
// that ends in seconds.
var isoLayouts = buildISOLayouts()

func buildISOLayouts() []string {
	clocks := []string{"15", "15:04", "15:04:05"}
	zones := []string{"", "Z07:00", "Z0700", "Z07"}

	layouts := []string{"2006-01-02"}
	for _, c := range clocks {
		for _, z := range zones {
			layouts = append(layouts, "2006-01-02T"+c+z)
		}
	}
	return layouts
}

// Stamp is a normalized timestamp. Time is set when the input parsed as an
// ISO-8601 date-time; otherwise Raw holds the fallback text verbatim.
type Stamp struct {
	Time time.Time
	Raw  string
}

// Parsed reports whether the stamp carries a real instant.
func (s Stamp) Parsed() bool {
	return !s.Time.IsZero()
}

// Format renders the stamp for display in loc.
func (s Stamp) Format(loc *time.Location) string {
	if s.Parsed() {
		return Format(s.Time, loc)
	}
	return s.Raw
}

// Normalize parses raw as an ISO-8601 date-time. The wall clock is kept as
// written and read in loc; a UTC offset in the input is not applied. If
// parsing fails the first 'T' is replaced by a space and the result is kept
// as-is without further checks.
func Normalize(raw string, loc *time.Location) Stamp {
	if raw == "" {
		return Stamp{}
	}
	if t, ok := parseISO(raw, loc); ok {
		return Stamp{Time: t}
	}
	return Stamp{Raw: strings.Replace(raw, "T", " ", 1)}
}

func parseISO(raw string, loc *time.Location) (time.Time, bool) {
	// Any single character may separate date and time.
	s := raw
	if len(s) > 10 {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), true
	}
	return time.Time{}, false
}

// Format renders t as DD.MM.YYYY HH:MM in loc.
func Format(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}

// FormatPtr renders t, or "" when t is nil.
func FormatPtr(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return Format(*t, loc)
}

// MonthRange returns the half-open range [first day of month, first day of
// the next month) in loc.
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
