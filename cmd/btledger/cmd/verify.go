package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustyeddy/btledger/journal"
	"github.com/rustyeddy/btledger/manifest"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <manifest.json>...",
	Short: "Verify manifest seals and journal checksums",
	Long: `Verify recomputes the digital seal of each manifest and, with --journal,
re-checksums the journal file the manifest points at.

The seal key is read from the environment variable named by --secret-env.
Manifests sealed without a key verify with the variable unset.

Example:
  BTLEDGER_SEAL_SECRET=... btledger verify out/*_manifest.json --journal`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

var (
	verifySecretEnv  string
	verifyJournal    bool
	verifyJournalDir string
)

var errVerifyFailed = errors.New("verification failed")

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifySecretEnv, "secret-env", "BTLEDGER_SEAL_SECRET", "environment variable holding the seal key")
	verifyCmd.Flags().BoolVar(&verifyJournal, "journal", false, "also re-checksum the referenced journal")
	verifyCmd.Flags().StringVar(&verifyJournalDir, "journal-dir", "", "directory holding the journal files (default: next to each manifest)")
}

type verifyResult struct {
	path  string
	runID string
	err   error
}

func runVerify(cmd *cobra.Command, args []string) error {
	var secret []byte
	if verifySecretEnv != "" {
		secret = []byte(os.Getenv(verifySecretEnv))
	}
	sealer := manifest.NewSealer(secret)

	results := make([]verifyResult, len(args))
	var g errgroup.Group
	g.SetLimit(8)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			results[i] = verifyOne(sealer, path, verifyJournal, verifyJournalDir)
			return nil
		})
	}
	_ = g.Wait()

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", r.path, r.err)
			continue
		}
		fmt.Fprintf(out, "OK   %s (run %s)\n", r.path, r.runID)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d manifests", errVerifyFailed, failed, len(args))
	}
	return nil
}

// verifyOne checks one manifest. Manifests record journal file names only;
// the journal is looked for in journalDir, or next to the manifest when that
// is empty.
func verifyOne(sealer manifest.Sealer, path string, checkJournal bool, journalDir string) verifyResult {
	res := verifyResult{path: path}

	m, err := manifest.ReadFile(path)
	if err != nil {
		res.err = err
		return res
	}
	res.runID = m.RunID

	if !sealer.Verify(m) {
		res.err = errors.New("seal mismatch")
		return res
	}
	if !checkJournal {
		return res
	}

	jpath := m.Artifacts.JournalJSON
	if jpath == "" {
		jpath = m.Artifacts.JournalCSV
	}
	if jpath == "" {
		res.err = errors.New("manifest references no journal file")
		return res
	}
	dir := journalDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	records, err := journal.ReadFile(filepath.Join(dir, jpath))
	if err != nil {
		res.err = err
		return res
	}
	sum, err := journal.ChecksumRecords(records)
	if err != nil {
		res.err = err
		return res
	}
	if sum != m.Artifacts.JournalChecksum {
		res.err = fmt.Errorf("journal checksum %s, manifest says %s", sum, m.Artifacts.JournalChecksum)
	}
	return res
}
