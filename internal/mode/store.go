package mode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the persisted slice of mode state written on every
// transition and loaded on startup when mode memory is enabled.
type Snapshot struct {
	LastActiveMode    string    `json:"last_active_mode"`
	PreviousMode      string    `json:"previous_mode,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	TransitionHistory []string  `json:"transition_history,omitempty"`
}

// snapshotHistory is how many trailing history entries a snapshot keeps.
const snapshotHistory = 10

// Store reads and writes snapshots for one agent config.
type Store struct {
	dir        string
	configName string
}

// NewStore creates a snapshot store rooted at dir. The directory is
// created lazily on first save.
func NewStore(dir, configName string) *Store {
	return &Store{dir: dir, configName: configName}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, "."+s.configName+".json")
}

// Load returns the persisted snapshot, or nil when none exists yet.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mode snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode mode snapshot: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically: a temp file in the same
// directory is renamed over the target so readers never see a partial
// write.
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if n := len(snap.TransitionHistory); n > snapshotHistory {
		snap.TransitionHistory = snap.TransitionHistory[n-snapshotHistory:]
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+s.configName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
