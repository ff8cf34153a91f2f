package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Number accepts a JSON number or a numeric string. The broker is not
// consistent about which it sends, sometimes within the same payload.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*n = Number(num.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Number(s)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into Number", string(b))
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

func (n Number) String() string { return string(n) }

// Float64 parses the value, returning 0 for the empty string.
func (n Number) Float64() (float64, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Float is a float64 decoded from a JSON number or numeric string. Empty
// strings and null decode to 0.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into Float: %w", string(b), err)
	}
	*f = Float(v)
	return nil
}

func (f Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// Value returns the plain float64.
func (f Float) Value() float64 { return float64(f) }

// Money is a decimal amount decoded from a JSON number or numeric string.
// Account balances go through Money so that buying-power arithmetic does
// not accumulate float error.
type Money struct {
	decimal.Decimal
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into Money: %w", string(b), err)
	}
	m.Decimal = d
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// Timestamp accepts epoch milliseconds, epoch seconds or an RFC3339 string.
// Login responses carry RFC3339, order timestamps carry millis.
type Timestamp time.Time

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*t = Timestamp(time.Time{})
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Heuristic: anything past the year 33658 as seconds is millis.
		if n > 1e12 {
			*t = Timestamp(time.UnixMilli(n))
		} else {
			*t = Timestamp(time.Unix(n, 0))
		}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("cannot unmarshal %q into Timestamp", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(tt.Format(time.RFC3339))
}

// Time returns the underlying time.Time value.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// IsZero reports whether the timestamp was absent from the payload.
func (t Timestamp) IsZero() bool { return time.Time(t).IsZero() }
