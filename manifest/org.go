package manifest

import (
	"bytes"
	"fmt"
	"io"
	"text/template"

	"github.com/rustyeddy/btledger/internal/fsutil"
	"github.com/shopspring/decimal"
)

var orgFuncs = template.FuncMap{
	// pct renders a decimal fraction string as a percentage.
	"pct": func(s string) string {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return s
		}
		return v.Shift(2).StringFixed(2)
	},
	"orNone": func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	},
}

var orgTemplate = template.Must(template.New("manifest").Funcs(orgFuncs).Parse(OrgTemplate))

// RenderOrg writes m as an Org-mode run report.
func RenderOrg(w io.Writer, m Manifest) error {
	return orgTemplate.Execute(w, m)
}

// WriteOrg renders m to path.
func WriteOrg(path string, m Manifest) error {
	var buf bytes.Buffer
	if err := RenderOrg(&buf, m); err != nil {
		return fmt.Errorf("manifest: render org: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

const OrgTemplate = `* BACKTEST: {{.StrategyName}} {{.Data.Start}} .. {{.Data.End}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:ENGINE:      {{.EngineVersion}}
:STRATEGY:    {{.StrategyName}}
:SEED:        {{.Seed}}
:BARS:        {{.Data.Bars}}
:DATA_SUM:    {{.Data.Checksum}}
:JOURNAL_SUM: {{orNone .Artifacts.JournalChecksum}}
:SEAL:        {{orNone .DigitalSeal}}
:END:

** Configuration
| Parameter         | Value |
|-------------------+-------|
| Initial cash      | {{.Config.InitialCash}} |
| Position fraction | {{.Config.PositionFraction}} |
| Fee (bps)         | {{.Config.FeeBps}} |
| Slippage          | {{.Config.Slippage}} |
| Fill at           | {{.Config.FillAt}} |
| Periods per year  | {{.Config.PeriodsPerYear}} |
| Strict data       | {{.Config.StrictData}} |

** Performance Summary
- Final equity:   *{{.Metrics.EquityFinal}}*
- Return:         *{{pct .Metrics.ReturnTotal}}%*
- CAGR:           *{{pct .Metrics.CAGR}}%*
- Sharpe:         *{{.Metrics.Sharpe}}*
- Max Drawdown:   *{{pct .Metrics.MDD}}%*
- Trades:         *{{.Metrics.TradesCount}}*

** Artifacts
- Journal JSON: {{orNone .Artifacts.JournalJSON}}
- Journal CSV:  {{orNone .Artifacts.JournalCSV}}

{{- if .Warnings }}

** Warnings
{{- range .Warnings }}
- {{.}}
{{- end }}
{{- end }}
`
