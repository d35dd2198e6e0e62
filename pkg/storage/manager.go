package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const responseExt = ".json"

// Manager stores response bodies under an output directory and tracks which
// names have already been saved
type Manager struct {
	outputDir string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates the output directory if needed and indexes the
// responses already present in it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == responseExt {
			m.saved[strings.TrimSuffix(entry.Name(), responseExt)] = true
		}
	}

	return nil
}

// ValidateName rejects names that would escape the output directory
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid response name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("response name %q must not contain path separators", name)
	}
	return nil
}

// Path returns the file a response with the given name is stored in
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name+responseExt)
}

// IsSaved reports whether a response with the given name exists
func (m *Manager) IsSaved(name string) bool {
	m.mu.RLock()
	cached := m.saved[name]
	m.mu.RUnlock()
	if cached {
		return true
	}

	if _, err := os.Stat(m.Path(name)); err != nil {
		return false
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()
	return true
}

// SaveResponse writes r to <name>.json through a temporary file, so a
// reader never observes a partially written response
func (m *Manager) SaveResponse(name string, r io.Reader) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	filename := m.Path(name)
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write response: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()

	return nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Count returns the number of saved responses
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
