package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/rustyeddy/btledger/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect trade journal files",
	Long: `Inspect the journal files written by a run.

Subcommands:
  show      - Print the records of a journal file
  checksum  - Recompute a journal's SHA-256 checksum

Examples:
  btledger journal show out/<run-id>_journal.csv --format org
  btledger journal checksum out/<run-id>_journal.json`,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <journal file>",
	Short: "Print the records of a journal file",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalChecksumCmd = &cobra.Command{
	Use:   "checksum <journal file>",
	Short: "Recompute a journal's checksum",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalChecksum,
}

var journalFormat string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalChecksumCmd)

	journalShowCmd.Flags().StringVarP(&journalFormat, "format", "f", "org", "output format (org, json, csv)")
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	recs, err := journal.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	out := cmd.OutOrStdout()
	switch journalFormat {
	case "org":
		fmt.Fprintln(out, journal.FormatRecordsOrg(recs))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case "csv":
		return journal.WriteCSV(out, recs)
	default:
		return fmt.Errorf("unknown format %q (supported: org, json, csv)", journalFormat)
	}
	return nil
}

func runJournalChecksum(cmd *cobra.Command, args []string) error {
	recs, err := journal.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	sum, err := journal.ChecksumRecords(recs)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sum)
	return nil
}
