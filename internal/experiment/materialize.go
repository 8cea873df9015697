package experiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ResultFile is the fixed name of the persisted summary
const ResultFile = "CP_results.json"

// ErrPersist is returned when the result record cannot be written
var ErrPersist = errors.New("failed to persist results")

// Sink persists one run summary under an experiment identifier and returns
// the written path
type Sink interface {
	Write(experimentID string, summary any) (string, error)
}

// Materializer writes summaries to <Root>/<experiment id>/CP_results.json
type Materializer struct {
	Root string
}

// NewMaterializer creates a materializer rooted at root
func NewMaterializer(root string) *Materializer {
	return &Materializer{Root: root}
}

// Dir returns the output directory of an experiment
func (m *Materializer) Dir(experimentID string) string {
	return filepath.Join(m.Root, filepath.FromSlash(experimentID))
}

// Write replaces the result file atomically. A rerun overwrites the previous
// record; readers never observe a partial file.
func (m *Materializer) Write(experimentID string, summary any) (string, error) {
	data, err := json.MarshalIndent(summary, "", "    ")
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode summary: %v", ErrPersist, err)
	}
	data = append(data, '\n')

	dir := m.Dir(experimentID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %v", ErrPersist, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+ResultFile+".*")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temp file in %s: %v", ErrPersist, dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: failed to chmod %s: %v", ErrPersist, tmp.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: failed to write %s: %v", ErrPersist, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to close %s: %v", ErrPersist, tmp.Name(), err)
	}

	path := filepath.Join(dir, ResultFile)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: failed to replace %s: %v", ErrPersist, path, err)
	}
	return path, nil
}
