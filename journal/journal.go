// Package journal keeps the append-only record of a run's fills and writes
// it, with a checksum, as JSON and CSV.
package journal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rustyeddy/btledger/internal/fsutil"
	"github.com/rustyeddy/btledger/ledger"
)

var ErrFinalized = errors.New("journal: already finalized")

// Paths are the files written by Finalize. Both are empty for an in-memory
// journal.
type Paths struct {
	JSON string
	CSV  string
}

// Journal is owned by one run. Appends are synchronous and ordered, and
// Finalize sees every append that returned before it.
type Journal struct {
	mu sync.Mutex

	runID string
	dir   string
	prec  Precision

	records   []Record
	finalized bool
	checksum  string
	paths     Paths
}

// Start opens a journal for runID. Files go to dir, which is created if
// needed; an empty dir keeps the journal in memory.
func Start(runID, dir string, prec Precision) (*Journal, error) {
	if runID == "" {
		return nil, fmt.Errorf("journal: empty run id")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}
	return &Journal{
		runID:   runID,
		dir:     dir,
		prec:    prec,
		records: []Record{},
	}, nil
}

func (j *Journal) RunID() string { return j.runID }

// Append records fill together with the ledger state right after it.
func (j *Journal) Append(fill ledger.Fill, after ledger.State) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finalized {
		return ErrFinalized
	}
	j.records = append(j.records, newRecord(j.runID, len(j.records)+1, fill, after, j.prec))
	return nil
}

// Records returns a copy of the journaled records.
func (j *Journal) Records() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Record(nil), j.records...)
}

func (j *Journal) Paths() Paths {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.paths
}

// Finalize seals the journal: it computes the checksum and, for an on-disk
// journal, writes ${runId}_journal.json and ${runId}_journal.csv. The
// checksum is returned even when writing fails. Later calls return the same
// checksum and write nothing.
func (j *Journal) Finalize() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finalized {
		return j.checksum, nil
	}

	sum, err := ChecksumRecords(j.records)
	if err != nil {
		return "", err
	}
	j.checksum = sum
	j.finalized = true

	if j.dir == "" {
		return sum, nil
	}
	return sum, j.writeFiles()
}

func (j *Journal) writeFiles() error {
	base := filepath.Join(j.dir, j.runID+"_journal")

	js, err := json.MarshalIndent(j.records, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: encode json: %w", err)
	}
	var cs bytes.Buffer
	if err := WriteCSV(&cs, j.records); err != nil {
		return fmt.Errorf("journal: encode csv: %w", err)
	}

	var errs []error
	if err := fsutil.WriteFileAtomic(base+".json", append(js, '\n'), 0o644); err != nil {
		errs = append(errs, err)
	} else {
		j.paths.JSON = base + ".json"
	}
	if err := fsutil.WriteFileAtomic(base+".csv", cs.Bytes(), 0o644); err != nil {
		errs = append(errs, err)
	} else {
		j.paths.CSV = base + ".csv"
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("journal: write files: %w", err)
	}
	return nil
}

// Canonical is the byte form the checksum is taken over: the records as a
// compact JSON array.
func Canonical(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// ChecksumRecords is the lowercase hex SHA-256 of Canonical(records).
func ChecksumRecords(records []Record) (string, error) {
	b, err := Canonical(records)
	if err != nil {
		return "", fmt.Errorf("journal: canonical: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
