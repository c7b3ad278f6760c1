// Package history provides persistent per-job conversion records
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/exeforge/exeforge/pkg/logger"
	"github.com/exeforge/exeforge/pkg/types"
)

// Record is the persisted outcome of a job's most recent conversion.
type Record struct {
	Name         string         `json:"name"`
	ScriptPath   string         `json:"scriptPath"`
	State        types.JobState `json:"state"`
	ArtifactPath string         `json:"artifactPath,omitempty"`
	SizeMB       int64          `json:"sizeMB,omitempty"`
	Message      string         `json:"message,omitempty"`
	FinishedAt   time.Time      `json:"finishedAt"`
	Conversions  int            `json:"conversions"`
	Failures     int            `json:"failures"`
}

// Manager handles persistent conversion records under a project-local
// .exeforge/history directory.
type Manager struct {
	dir     string
	logger  logger.Logger
	mu      sync.RWMutex
	records map[string]*Record
}

// NewManager creates a manager rooted at the given project directory.
func NewManager(projectRoot string, log logger.Logger) *Manager {
	dir := filepath.Join(projectRoot, ".exeforge", "history")

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error("Failed to create history directory", logger.WithField("error", err))
	}

	return &Manager{
		dir:     dir,
		logger:  log,
		records: make(map[string]*Record),
	}
}

// Record persists one job outcome, carrying forward the conversion and
// failure counters from any earlier record for the same job name.
func (m *Manager) Record(name string, spec types.JobSpec, state types.JobState, result types.JobResult) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &Record{
		Name:         name,
		ScriptPath:   spec.ScriptPath,
		State:        state,
		ArtifactPath: result.ArtifactPath,
		SizeMB:       result.SizeMB,
		Message:      result.Message,
		FinishedAt:   time.Now(),
	}

	if prev, err := m.loadRecordFile(name); err == nil && prev != nil {
		record.Conversions = prev.Conversions
		record.Failures = prev.Failures
	}
	record.Conversions++
	if state == types.JobStateFailed {
		record.Failures++
	}

	if err := m.saveRecordFile(record); err != nil {
		return nil, err
	}

	m.records[name] = record
	return record, nil
}

// Read returns the record for a job name, from memory or disk.
func (m *Manager) Read(name string) (*Record, error) {
	m.mu.RLock()
	if record, ok := m.records[name]; ok {
		m.mu.RUnlock()
		return record, nil
	}
	m.mu.RUnlock()

	return m.loadRecordFile(name)
}

// List returns every stored record, sorted by job name.
func (m *Manager) List() ([]*Record, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		record, err := m.loadRecordFile(name)
		if err != nil {
			m.logger.Debug("Skipping unreadable history record",
				logger.WithField("name", name),
				logger.WithField("error", err))
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// Remove deletes a job's record.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, name)
	err := os.Remove(m.recordFilePath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove history record: %w", err)
	}
	return nil
}

// Private methods

func (m *Manager) recordFilePath(name string) string {
	return filepath.Join(m.dir, name+".json")
}

func (m *Manager) loadRecordFile(name string) (*Record, error) {
	data, err := os.ReadFile(m.recordFilePath(name))
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse history record: %w", err)
	}
	return &record, nil
}

func (m *Manager) saveRecordFile(record *Record) error {
	path := m.recordFilePath(record.Name)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	// Write atomically
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write history record: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename history record: %w", err)
	}

	return nil
}
