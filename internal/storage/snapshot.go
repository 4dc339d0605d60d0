package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/joeycumines/btdsl/internal/tree"
)

const snapshotExt = ".json"

// SaveSnapshot writes the JSON snapshot of t to path, atomically.
func SaveSnapshot(path string, t *tree.BehaviorTree) error {
	data, err := json.MarshalIndent(t.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := AtomicWriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot and rebuilds the tree.
func LoadSnapshot(path string) (*tree.BehaviorTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s tree.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	t, err := tree.FromSnapshot(&s)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", path, err)
	}
	return t, nil
}

// SnapshotPath returns the file in dir holding the snapshot for key. The key
// is path-escaped, so it never names a directory.
func SnapshotPath(dir, key string) string {
	return filepath.Join(dir, url.PathEscape(key)+snapshotExt)
}

// RemoveSnapshot deletes the snapshot for key in dir. A missing file is not an
// error.
func RemoveSnapshot(dir, key string) error {
	err := os.Remove(SnapshotPath(dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}
