package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunTracker persists the time of the last successful collection so a
// restarted daemon keeps its cadence.
type RunTracker struct {
	stateFile string
}

// NewRunTracker creates a new tracker with the given state file path
func NewRunTracker(stateFile string) *RunTracker {
	return &RunTracker{stateFile: stateFile}
}

// LastRun returns the last recorded run, or the zero time.
func (t *RunTracker) LastRun() time.Time {
	data, err := os.ReadFile(t.stateFile)
	if err != nil {
		return time.Time{}
	}
	last, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}
	}
	return last
}

// SetLastRun writes ts to the state file.
func (t *RunTracker) SetLastRun(ts time.Time) error {
	dir := filepath.Dir(t.stateFile)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	return os.WriteFile(t.stateFile, []byte(ts.UTC().Format(time.RFC3339)+"\n"), 0600)
}
