package market

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Bar represents one OHLCV sample of a price series.
//
// Prices arrive from feeds as binary floats and stay that way here. The ledger
// converts them to exact decimals before any money is computed.
type Bar struct {
	T time.Time
	O float64
	H float64
	L float64
	C float64
	V float64
}

// Field selects one of the bar's prices.
type Field string

const (
	FieldOpen  Field = "open"
	FieldClose Field = "close"
)

// Price returns the requested price field. Unknown fields fall back to close.
func (b Bar) Price(f Field) float64 {
	if f == FieldOpen {
		return b.O
	}
	return b.C
}

// Finite reports whether every OHLCV field is a finite number.
func (b Bar) Finite() bool {
	for _, x := range [...]float64{b.O, b.H, b.L, b.C, b.V} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// wireBar is the {t,o,h,l,c,v?} form used by bar files.
type wireBar struct {
	T json.RawMessage `json:"t"`
	O float64         `json:"o"`
	H float64         `json:"h"`
	L float64         `json:"l"`
	C float64         `json:"c"`
	V *float64        `json:"v,omitempty"`
}

// MarshalJSON writes t as RFC3339 with nanoseconds in UTC.
func (b Bar) MarshalJSON() ([]byte, error) {
	ts, err := json.Marshal(b.T.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	v := b.V
	return json.Marshal(wireBar{T: ts, O: b.O, H: b.H, L: b.L, C: b.C, V: &v})
}

// UnmarshalJSON accepts t as an RFC3339 string or as integer Unix milliseconds.
func (b *Bar) UnmarshalJSON(data []byte) error {
	var w wireBar
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := parseWireTime(w.T)
	if err != nil {
		return err
	}
	*b = Bar{T: t, O: w.O, H: w.H, L: w.L, C: w.C}
	if w.V != nil {
		b.V = *w.V
	}
	return nil
}

func parseWireTime(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, fmt.Errorf("bar: missing t")
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, err
		}
		return ParseTime(str)
	}
	return ParseTime(s)
}

// ParseTime parses a bar timestamp: RFC3339 (with or without fractional
// seconds) or integer Unix milliseconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
		}
		t = t2
	}
	return t.UTC(), nil
}
