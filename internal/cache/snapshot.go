package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoSnapshot is returned by Load when nothing has been persisted yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot is the persisted form of the cache.
type Snapshot struct {
	Version    int              `json:"version"`
	ComputedAt time.Time        `json:"computedAt"`
	Entries    map[string]Entry `json:"entries"`
}

// Snapshotter persists snapshots between process runs.
type Snapshotter interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Clear(ctx context.Context) error
	// Location describes where snapshots live, for display.
	Location() string
}

// Ensure implementations satisfy Snapshotter.
var (
	_ Snapshotter = (*FileSnapshotter)(nil)
	_ Snapshotter = (*RedisSnapshotter)(nil)
)

// DefaultSnapshotPath returns the snapshot file under the user cache directory.
func DefaultSnapshotPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "langstats", "snapshot.json"), nil
}

// FileSnapshotter stores the snapshot as a JSON file.
type FileSnapshotter struct {
	path string
}

// NewFileSnapshotter creates a file snapshotter. An empty path selects
// DefaultSnapshotPath.
func NewFileSnapshotter(path string) (*FileSnapshotter, error) {
	if path == "" {
		p, err := DefaultSnapshotPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		path = p
	}
	return &FileSnapshotter{path: path}, nil
}

// Location returns the snapshot file path.
func (f *FileSnapshotter) Location() string {
	return f.path
}

// Load reads the snapshot file.
func (f *FileSnapshotter) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// Save writes the snapshot file, replacing any previous one.
func (f *FileSnapshotter) Save(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot file. A missing file is not an error.
func (f *FileSnapshotter) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return s, nil
}
