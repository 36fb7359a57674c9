package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustyeddy/btledger/internal/fsutil"
)

// FileName is the manifest file name for runID.
func FileName(runID string) string { return runID + "_manifest.json" }

// WriteFile writes m to dir/${runId}_manifest.json, creating dir if needed,
// and returns the path.
func WriteFile(dir string, m Manifest) (string, error) {
	if m.RunID == "" {
		return "", fmt.Errorf("manifest: empty run id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("manifest: create dir: %w", err)
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("manifest: encode: %w", err)
	}
	path := filepath.Join(dir, FileName(m.RunID))
	if err := fsutil.WriteFileAtomic(path, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	return path, nil
}

// ReadFile loads a manifest. Unknown fields are rejected, since anything
// outside the sealed structure would otherwise pass verification unseen.
func ReadFile(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return m, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}
