package journal

import (
	"fmt"
	"strings"
)

// FormatRecordOrg renders a Record as an Org-mode block suitable for pasting
// into a trading journal. Structured facts live in a PROPERTIES drawer for
// easy search; the Notes heading is left for the reader.
func FormatRecordOrg(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Fill %d: %s %s @ %s\n", r.Seq, strings.ToUpper(r.Side), r.Size, r.Price)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", r.RunID)
	fmt.Fprintf(&b, ":SEQ: %d\n", r.Seq)
	fmt.Fprintf(&b, ":BAR: %d\n", r.Index)
	fmt.Fprintf(&b, ":TIME: %s\n", r.T)
	fmt.Fprintf(&b, ":SIDE: %s\n", r.Side)
	fmt.Fprintf(&b, ":PRICE: %s\n", r.Price)
	fmt.Fprintf(&b, ":SIZE: %s\n", r.Size)
	fmt.Fprintf(&b, ":FEE: %s\n", r.Fee)
	fmt.Fprintf(&b, ":SLIPPAGE_BPS: %s\n", r.SlippageBps)
	fmt.Fprintf(&b, ":CASH_AFTER: %s\n", r.CashAfter)
	fmt.Fprintf(&b, ":POS_AFTER: %s\n", r.PosAfter)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Notes\n- \n")
	return b.String()
}

// FormatRecordsOrg renders multiple records separated by blank lines.
func FormatRecordsOrg(records []Record) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatRecordOrg(r))
	}
	return b.String()
}
