package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"igtail/pkg/models"
)

const resultExt = ".json"

// Manager writes one result file per target account.
type Manager struct {
	outputDir string
	mu        sync.Mutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Path is where the result of username is stored.
func (m *Manager) Path(username string) string {
	return filepath.Join(m.outputDir, username+resultExt)
}

// Save writes data for username, replacing any earlier result atomically.
func (m *Manager) Save(username string, data *models.CollectedData) error {
	if username == "" || strings.ContainsAny(username, `/\`) {
		return fmt.Errorf("invalid username %q", username)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	filename := m.Path(username)
	out, err := os.CreateTemp(m.outputDir, "."+username+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = out.Write(append(raw, '\n'))
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save result: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Load reads a stored result. It returns os.ErrNotExist (wrapped) when
// username was never saved.
func (m *Manager) Load(username string) (*models.CollectedData, error) {
	raw, err := os.ReadFile(m.Path(username))
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	var data models.CollectedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &data, nil
}

// Exists reports whether a result for username is stored.
func (m *Manager) Exists(username string) bool {
	_, err := os.Stat(m.Path(username))
	return err == nil
}

// Usernames lists stored results, sorted.
func (m *Manager) Usernames() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != resultExt {
			continue
		}
		names = append(names, strings.TrimSuffix(name, resultExt))
	}
	sort.Strings(names)
	return names, nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}
