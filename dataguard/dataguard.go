// Package dataguard validates bar sequences before a run and computes the
// content checksum recorded in the run manifest.
package dataguard

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/btledger/market"
)

// NoChecksum is recorded in place of a data checksum when a non-strict
// validation failed and the run continued anyway.
const NoChecksum = "none"

// Options controls which checks Validate applies.
type Options struct {
	Strict               bool
	ExpectSorted         bool
	AllowEqualTimestamps bool
	MinLength            int // 0 means 2
}

// DefaultOptions is what a run uses when nothing else is configured.
func DefaultOptions() Options {
	return Options{ExpectSorted: true, MinLength: 2}
}

// Report is the outcome of a validation.
type Report struct {
	OK       bool
	Errors   []string
	Checksum string
}

// Validate checks bars against opts. It never mutates its input.
//
// When opts.Strict is set the checksum is only computed for a clean sequence.
// Otherwise it is always computed and the caller decides what to record.
func Validate(bars []market.Bar, opts Options) Report {
	minLen := opts.MinLength
	if minLen <= 0 {
		minLen = 2
	}

	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if len(bars) < minLen {
		addf("need at least %d bars, got %d", minLen, len(bars))
	}

	seen := make(map[int64]int, len(bars))
	for i, b := range bars {
		if b.T.IsZero() {
			addf("bar %d: missing timestamp", i)
		}

		if !b.Finite() {
			addf("bar %d (%s): non-finite OHLCV value", i, stamp(b))
		} else {
			if b.O <= 0 || b.H <= 0 || b.L <= 0 || b.C <= 0 {
				addf("bar %d (%s): non-positive price", i, stamp(b))
			}
			if b.H < b.L {
				addf("bar %d (%s): high %v below low %v", i, stamp(b), b.H, b.L)
			}
			if b.V < 0 {
				addf("bar %d (%s): negative volume", i, stamp(b))
			}
		}

		if opts.ExpectSorted && i > 0 {
			prev := bars[i-1].T
			switch {
			case b.T.Before(prev):
				addf("bar %d (%s): timestamp goes backwards", i, stamp(b))
			case b.T.Equal(prev) && !opts.AllowEqualTimestamps:
				addf("bar %d (%s): duplicate timestamp", i, stamp(b))
			}
		}
		if !opts.ExpectSorted && !opts.AllowEqualTimestamps {
			key := b.T.UnixNano()
			if j, dup := seen[key]; dup {
				addf("bar %d (%s): duplicate timestamp (first seen at bar %d)", i, stamp(b), j)
			} else {
				seen[key] = i
			}
		}
	}

	r := Report{OK: len(errs) == 0, Errors: errs}
	if r.OK || !opts.Strict {
		r.Checksum = Checksum(bars)
	}
	return r
}

func stamp(b market.Bar) string {
	return b.T.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Canonical encodes bars as one line per bar:
//
//	<unix-millis>|<o>|<h>|<l>|<c>|<v>\n
//
// with every number in its shortest exact decimal form, so any two distinct
// float64 values encode differently. The encoding does not depend on locale
// or on how the bars were sourced.
func Canonical(bars []market.Bar) []byte {
	var buf bytes.Buffer
	buf.Grow(len(bars) * 64)
	for _, b := range bars {
		buf.WriteString(strconv.FormatInt(b.T.UnixMilli(), 10))
		for _, x := range [...]float64{b.O, b.H, b.L, b.C, b.V} {
			buf.WriteByte('|')
			buf.WriteString(exact(x))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func exact(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "+Inf"
	case math.IsInf(x, -1):
		return "-Inf"
	}
	return decimal.NewFromFloat(x).String()
}

// Checksum is the hex SHA-256 of Canonical(bars).
func Checksum(bars []market.Bar) string {
	sum := sha256.Sum256(Canonical(bars))
	return hex.EncodeToString(sum[:])
}
