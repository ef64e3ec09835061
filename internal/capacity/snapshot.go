package capacity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"scotland-capacity/internal/model"
)

// ErrSnapshotCorrupt wraps any failure to read back an existing snapshot.
var ErrSnapshotCorrupt = errors.New("snapshot is corrupt")

// Persist writes the summary to path as indented JSON. The file is written
// next to its destination and renamed into place so a reader never sees a
// partial snapshot.
func Persist(s *model.CapacitySummary, path string) error {
	if s == nil {
		return errors.New("summary is nil")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadFallback reads a snapshot written by Persist.
// It returns (nil, nil) when the file does not exist and an error wrapping
// ErrSnapshotCorrupt when it exists but cannot be decoded.
func LoadFallback(path string) (*model.CapacitySummary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s model.CapacitySummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotCorrupt, path, err)
	}
	if s.Totals == nil {
		return nil, fmt.Errorf("%w: %s: missing totals", ErrSnapshotCorrupt, path)
	}
	return &s, nil
}
