// Package id builds run identifiers.
package id

import (
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// FromEntropy returns a ULID (time-sortable identifier) for t whose random
// part is read from entropy.
//
// Backtest runs pass the first bar's time and the run's seeded generator, so
// the same seed and data always yield the same run ID, and IDs of runs over
// later data sort after earlier ones.
func FromEntropy(t time.Time, entropy io.Reader) (string, error) {
	ms := t.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	id, err := ulid.New(uint64(ms), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Valid reports whether s parses as a ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
