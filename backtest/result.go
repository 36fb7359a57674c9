package backtest

import (
	"fmt"
	"io"
	"strings"
)

const rule = "--------------------------------------------------"

// PrintResult writes a human-readable summary of r.
func PrintResult(w io.Writer, r *Result) {
	m := r.Manifest

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Engine:        %s\n", m.EngineVersion)
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Seed:          %d\n", r.Seed)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Data")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)
	fmt.Fprintf(w, "Start:         %s\n", m.Data.Start)
	fmt.Fprintf(w, "End:           %s\n", m.Data.End)
	fmt.Fprintf(w, "Checksum:      %s\n", m.Data.Checksum)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trading")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Fills:         %d\n", len(r.Trades))
	fmt.Fprintf(w, "Skipped:       %d\n", r.Skipped)
	fmt.Fprintf(w, "Final Cash:    %s\n", r.Final.Cash.StringFixed(2))
	fmt.Fprintf(w, "Final Pos:     %s\n", r.Final.Pos.String())

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Final Equity:  %s\n", r.Metrics.EquityFinal.StringFixed(2))
	fmt.Fprintf(w, "Return:        %s%%\n", r.Metrics.ReturnTotal.Shift(2).StringFixed(2))
	fmt.Fprintf(w, "CAGR:          %.2f%%\n", r.Metrics.CAGR*100)
	fmt.Fprintf(w, "Sharpe:        %.4f\n", r.Metrics.Sharpe)
	fmt.Fprintf(w, "Max Drawdown:  %s%%\n", r.Metrics.MDD.Shift(2).StringFixed(2))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Audit")
	fmt.Fprintln(w, rule)
	if r.JournalChecksum != "" {
		fmt.Fprintf(w, "Journal:       %s\n", r.JournalChecksum)
	}
	if r.JournalPaths.JSON != "" {
		fmt.Fprintf(w, "Journal JSON:  %s\n", r.JournalPaths.JSON)
	}
	if r.JournalPaths.CSV != "" {
		fmt.Fprintf(w, "Journal CSV:   %s\n", r.JournalPaths.CSV)
	}
	fmt.Fprintf(w, "Seal:          %s\n", m.DigitalSeal)
	if r.ManifestPath != "" {
		fmt.Fprintf(w, "Manifest:      %s\n", r.ManifestPath)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings")
		fmt.Fprintln(w, rule)
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "- %s\n", strings.TrimSpace(warn))
		}
	}

	fmt.Fprintln(w)
}
