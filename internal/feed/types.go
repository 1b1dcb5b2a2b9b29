// Package feed fetches transfer feeds and selects the records that are newer
// than a stored cursor.
package feed

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Descriptor identifies one upstream feed. Key is stable and used as the
// cursor key; Label is what readers see.
type Descriptor struct {
	Key      string
	Label    string
	Endpoint string
	Accent   int
}

// Record is one transfer event. Optional fields are empty when absent.
type Record struct {
	ID       int64
	Username string

	FromName string
	FromSlug string
	FromLogo string

	ToName string
	ToSlug string
	ToLogo string

	Avatar   string
	Amount   decimal.Decimal
	Datetime string
}

// UnmarshalJSON decodes a record defensively: unknown or mistyped fields
// degrade to zero values instead of failing the whole payload.
func (r *Record) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*r = Record{
		ID:       rawID(m["id"]),
		Username: rawString(m["username"]),
		FromName: rawString(m["from_name"]),
		FromSlug: rawString(m["from_slug"]),
		FromLogo: rawString(m["from_logo"]),
		ToName:   rawString(m["to_name"]),
		ToSlug:   rawString(m["to_slug"]),
		ToLogo:   rawString(m["to_logo"]),
		Avatar:   rawString(m["avatar"]),
		Amount:   rawDecimal(m["amount"]),
		Datetime: rawString(m["datetime"]),
	}
	return nil
}

// rawString returns JSON strings as-is and numbers in their literal form.
// Anything else (null, bool, object) is "".
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw)
	default:
		return ""
	}
}

// rawID parses a number or an integer string. Non-numeric ids are 0.
// Fractional and exponent forms are truncated only for JSON numbers; as
// strings ("7.5", "1e3") they are not ids.
func rawID(raw json.RawMessage) int64 {
	s := rawString(raw)
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func rawDecimal(raw json.RawMessage) decimal.Decimal {
	s := rawString(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Payload is the upstream response body.
type Payload struct {
	Data []Record
}

// UnmarshalJSON skips entries of "data" that are not objects.
func (p *Payload) UnmarshalJSON(b []byte) error {
	var doc struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	p.Data = make([]Record, 0, len(doc.Data))
	for _, raw := range doc.Data {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		p.Data = append(p.Data, r)
	}
	return nil
}
