package journal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/btledger/ledger"
	"github.com/shopspring/decimal"
)

// Record is a journaled fill. Decimals are rounded to the journal's
// precision and rendered as fixed-point strings so the serialized form is
// stable across platforms.
type Record struct {
	RunID       string `json:"runId"`
	Seq         int    `json:"seq"`
	Index       int    `json:"index"`
	T           string `json:"t"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	Fee         string `json:"fee"`
	SlippageBps string `json:"slippageBps"`
	CashAfter   string `json:"cashAfter"`
	PosAfter    string `json:"posAfter"`
}

// Precision sets the decimal places used when a fill is journaled. Prices,
// fees and cash use PricePlaces; sizes and positions use SizePlaces.
type Precision struct {
	PricePlaces int32
	SizePlaces  int32
}

func DefaultPrecision() Precision {
	return Precision{PricePlaces: 8, SizePlaces: 8}
}

const bpsPlaces = 4

func newRecord(runID string, seq int, f ledger.Fill, after ledger.State, p Precision) Record {
	return Record{
		RunID:       runID,
		Seq:         seq,
		Index:       f.Index,
		T:           f.Time.UTC().Format(time.RFC3339Nano),
		Side:        string(f.Side),
		Price:       f.Price.StringFixed(p.PricePlaces),
		Size:        f.Size.StringFixed(p.SizePlaces),
		Fee:         f.Fee.StringFixed(p.PricePlaces),
		SlippageBps: f.SlippageBps.StringFixed(bpsPlaces),
		CashAfter:   after.Cash.StringFixed(p.PricePlaces),
		PosAfter:    after.Pos.StringFixed(p.SizePlaces),
	}
}

var csvHeader = []string{
	"run_id", "seq", "index", "t", "side", "price", "size", "fee",
	"slippage_bps", "cash_after", "pos_after",
}

func (r Record) csvRow() []string {
	return []string{
		r.RunID,
		strconv.Itoa(r.Seq),
		strconv.Itoa(r.Index),
		r.T,
		r.Side,
		r.Price,
		r.Size,
		r.Fee,
		r.SlippageBps,
		r.CashAfter,
		r.PosAfter,
	}
}

func recordFromRow(row []string) (Record, error) {
	if len(row) != len(csvHeader) {
		return Record{}, fmt.Errorf("want %d columns, got %d", len(csvHeader), len(row))
	}
	seq, err := strconv.Atoi(row[1])
	if err != nil {
		return Record{}, fmt.Errorf("seq: %w", err)
	}
	idx, err := strconv.Atoi(row[2])
	if err != nil {
		return Record{}, fmt.Errorf("index: %w", err)
	}
	for _, col := range []int{5, 6, 7, 8, 9, 10} {
		if _, err := decimal.NewFromString(row[col]); err != nil {
			return Record{}, fmt.Errorf("%s: %w", csvHeader[col], err)
		}
	}
	return Record{
		RunID:       row[0],
		Seq:         seq,
		Index:       idx,
		T:           row[3],
		Side:        row[4],
		Price:       row[5],
		Size:        row[6],
		Fee:         row[7],
		SlippageBps: row[8],
		CashAfter:   row[9],
		PosAfter:    row[10],
	}, nil
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.csvRow()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV is the inverse of WriteCSV.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("journal csv: missing header")
	}
	if strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("journal csv: unexpected header %v", rows[0])
	}

	out := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("journal csv line %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadFile loads records from a journal written by Finalize, either the
// .json or the .csv form.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var out []Record
		if err := json.NewDecoder(f).Decode(&out); err != nil {
			return nil, fmt.Errorf("journal json %s: %w", path, err)
		}
		return out, nil
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("journal: unsupported file type %q", filepath.Ext(path))
	}
}
