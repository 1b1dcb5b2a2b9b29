package transfer

import (
	"strings"
	"time"

	_ "time/tzdata"
)

// DisplayLayout renders "YYYY-MM-DD HH:MM:SS <zone abbreviation>".
const DisplayLayout = "2006-01-02 15:04:05 MST"

const unknown = "unknown"

// Layouts accepted for record timestamps. Layouts without a zone are read
// as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp.
func ParseTimestamp(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatWhen renders ts in loc, or "unknown" when ts is missing or
// unparsable.
func FormatWhen(ts string, loc *time.Location) string {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return unknown
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayLayout)
}

// LoadLocation falls back to UTC when name is unknown.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		return time.UTC
	}
	return loc
}
