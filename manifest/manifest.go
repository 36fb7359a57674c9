// Package manifest describes a finished run: what data it saw, how it was
// configured, what it produced and how it performed. A manifest is sealed
// so later edits can be detected.
package manifest

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/rustyeddy/btledger/dataguard"
	"github.com/rustyeddy/btledger/journal"
	"github.com/rustyeddy/btledger/market"
	"github.com/rustyeddy/btledger/metrics"
	"github.com/shopspring/decimal"
)

// metricPlaces is the precision of rendered metrics.
const metricPlaces = 8

// Every field is a string, integer or bool, so a manifest read back from
// disk marshals to exactly the bytes it was sealed over.
type Manifest struct {
	RunID         string    `json:"runId"`
	EngineVersion string    `json:"engineVersion"`
	StrategyName  string    `json:"strategyName"`
	Seed          int64     `json:"seed"`
	Data          Data      `json:"data"`
	Config        Config    `json:"config"`
	Artifacts     Artifacts `json:"artifacts"`
	Metrics       Metrics   `json:"metrics"`
	Warnings      []string  `json:"warnings,omitempty"`
	DigitalSeal   string    `json:"digitalSeal"`
}

type Data struct {
	Checksum string `json:"checksum"`
	Bars     int    `json:"bars"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// Config is the run configuration as it affected the result.
type Config struct {
	InitialCash      string `json:"initialCash"`
	PositionFraction string `json:"positionFraction"`
	FeeBps           string `json:"feeBps"`
	Slippage         string `json:"slippage"`
	FillAt           string `json:"fillAt"`
	PeriodsPerYear   int    `json:"periodsPerYear"`
	StrictData       bool   `json:"strictData"`
	PricePlaces      int32  `json:"pricePlaces"`
	SizePlaces       int32  `json:"sizePlaces"`
}

type Artifacts struct {
	JournalChecksum string `json:"journalChecksum,omitempty"`
	JournalJSON     string `json:"journalJson,omitempty"`
	JournalCSV      string `json:"journalCsv,omitempty"`
}

type Metrics struct {
	EquityFinal string `json:"equityFinal"`
	ReturnTotal string `json:"returnTotal"`
	CAGR        string `json:"cagr"`
	Sharpe      string `json:"sharpe"`
	MDD         string `json:"mdd"`
	TradesCount int    `json:"tradesCount"`
}

// Input is everything Build needs from a finished run.
type Input struct {
	RunID         string
	EngineVersion string
	StrategyName  string
	Seed          int64

	Bars   []market.Bar
	Report dataguard.Report
	Config Config

	JournalChecksum string
	JournalPaths    journal.Paths

	Metrics  metrics.Metrics
	Warnings []string
}

// Build assembles an unsealed manifest.
func Build(in Input) Manifest {
	m := Manifest{
		RunID:         in.RunID,
		EngineVersion: in.EngineVersion,
		StrategyName:  in.StrategyName,
		Seed:          in.Seed,
		Data: Data{
			Checksum: in.Report.Checksum,
			Bars:     len(in.Bars),
		},
		Config: in.Config,
		Artifacts: Artifacts{
			JournalChecksum: in.JournalChecksum,
			JournalJSON:     baseName(in.JournalPaths.JSON),
			JournalCSV:      baseName(in.JournalPaths.CSV),
		},
		Metrics: Metrics{
			EquityFinal: in.Metrics.EquityFinal.StringFixed(metricPlaces),
			ReturnTotal: in.Metrics.ReturnTotal.StringFixed(metricPlaces),
			CAGR:        floatString(in.Metrics.CAGR),
			Sharpe:      floatString(in.Metrics.Sharpe),
			MDD:         in.Metrics.MDD.StringFixed(metricPlaces),
			TradesCount: in.Metrics.TradesCount,
		},
	}
	if len(in.Bars) > 0 {
		m.Data.Start = timeString(in.Bars[0].T)
		m.Data.End = timeString(in.Bars[len(in.Bars)-1].T)
	}
	if len(in.Warnings) > 0 {
		m.Warnings = append([]string(nil), in.Warnings...)
	}
	return m
}

// baseName keeps only the file name, so where a run wrote its files does not
// change the seal.
func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func floatString(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(metricPlaces)
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Canonical is the byte form the seal covers: compact JSON of m with the
// seal cleared.
func Canonical(m Manifest) ([]byte, error) {
	m.DigitalSeal = ""
	return json.Marshal(m)
}
