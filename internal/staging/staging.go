// Package staging writes run outputs to a private directory and moves them
// into place only once every file of the run has been written.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type Manager struct {
	baseDir     string
	stagingRoot string
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:     baseDir,
		stagingRoot: filepath.Join(baseDir, ".staging"),
	}
}

func (m *Manager) FinalDir() string {
	return m.baseDir
}

func (m *Manager) StagingRoot() string {
	return m.stagingRoot
}

func (m *Manager) StagingDir(runID string) string {
	return filepath.Join(m.stagingRoot, runID)
}

func (m *Manager) PrepareStaging(runID string) error {
	return os.MkdirAll(m.StagingDir(runID), 0750)
}

// WriteToStaging streams write's output into name under the run's staging
// directory. The file appears only if write succeeds.
func (m *Manager) WriteToStaging(runID, name string, write func(io.Writer) error) (int64, error) {
	destPath := filepath.Join(m.StagingDir(runID), name)
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return 0, fmt.Errorf("creating directories: %w", err)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	cw := &countingWriter{w: f}
	err = write(cw)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("writing %s: %w", name, err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	return cw.n, nil
}

// CommitStaging moves every staged file of the run into the final directory
// and returns their final paths.
func (m *Manager) CommitStaging(runID string) ([]string, error) {
	stagingDir := m.StagingDir(runID)

	var committed []string
	err := filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(m.baseDir, relPath)
		if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
			return err
		}

		if err := os.Rename(path, destPath); err != nil {
			return err
		}
		committed = append(committed, destPath)
		return nil
	})
	return committed, err
}

func (m *Manager) CleanupStaging(runID string) error {
	return os.RemoveAll(m.StagingDir(runID))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
