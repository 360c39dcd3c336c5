package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const defaultStatePath = "~/.sibyl/training-state.json"

// RunState journals training-data ingestion runs: which files fed the
// current snapshot, row counts and rejection details. It is an operator
// audit trail; retraining on an already-seen file is allowed and simply
// appends to the journal.
type RunState struct {
	StartedAt       time.Time `json:"started_at"`
	LastTrainedAt   time.Time `json:"last_trained_at"`
	FilesProcessed  []string  `json:"files_processed"`
	RowsAccepted    int       `json:"rows_accepted"`
	RowsRejected    int       `json:"rows_rejected"`
	SnapshotVersion string    `json:"snapshot_version"`
	Errors          []string  `json:"errors"`

	path string // not serialized
}

// LoadState loads the run state from disk, or creates a new one.
func LoadState() (*RunState, error) {
	p := expandHome(defaultStatePath)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &RunState{StartedAt: time.Now().UTC(), path: p}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *RunState) Save() error {
	s.LastTrainedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed returns true if the given file has already been ingested.
func (s *RunState) IsProcessed(path string) bool {
	for _, f := range s.FilesProcessed {
		if f == path {
			return true
		}
	}
	return false
}

// MarkProcessed records a file as ingested.
func (s *RunState) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
}

// AddError records an ingestion error.
func (s *RunState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
