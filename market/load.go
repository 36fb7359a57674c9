package market

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadFile reads bars from a local .json or .csv file.
//
// JSON files hold an array of {t,o,h,l,c,v?} objects. CSV files hold the same
// columns, with or without a header row. Bars are returned in file order; no
// sorting or validation happens here (see dataguard).
func LoadFile(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadJSON(f)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("load bars: unsupported file type %q (want .json or .csv)", filepath.Ext(path))
	}
}

// ReadJSON decodes a JSON array of bars.
func ReadJSON(r io.Reader) ([]Bar, error) {
	var bars []Bar
	if err := json.NewDecoder(r).Decode(&bars); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	return bars, nil
}

// ReadCSV decodes t,o,h,l,c[,v] rows. A first row whose first column is "t"
// or "time" is treated as a header.
func ReadCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var bars []Bar
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 {
			continue
		}
		if line == 1 {
			head := strings.ToLower(strings.TrimSpace(row[0]))
			if head == "t" || head == "time" {
				continue
			}
		}
		b, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
}

func parseRow(row []string) (Bar, error) {
	if len(row) < 5 {
		return Bar{}, fmt.Errorf("bad row (need at least 5 cols t,o,h,l,c): %v", row)
	}

	t, err := ParseTime(row[0])
	if err != nil {
		return Bar{}, err
	}

	vals := make([]float64, 5)
	n := 5
	if len(row) < 6 || strings.TrimSpace(row[5]) == "" {
		n = 4
	}
	for i := 0; i < n; i++ {
		s := strings.TrimSpace(row[i+1])
		vals[i], err = strconv.ParseFloat(s, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad number %q: %w", s, err)
		}
	}

	return Bar{T: t, O: vals[0], H: vals[1], L: vals[2], C: vals[3], V: vals[4]}, nil
}
