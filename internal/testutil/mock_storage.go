// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
)

// MockStorage implements storage.Store for testing. Files are written to a
// temp directory because sessions read inputs from disk.
type MockStorage struct {
	mu      sync.RWMutex
	tempDir string
	files   map[string]*models.FileInfo
	nextID  int

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMockStorage creates a mock storage that writes into tempDir.
func NewMockStorage(tempDir string) *MockStorage {
	return &MockStorage{
		tempDir: tempDir,
		files:   make(map[string]*models.FileInfo),
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("test-id-%d", m.nextID)
	m.mu.Unlock()

	return m.AddFile(id, name, data), nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrFileNotFound, id)
	}
	return file, nil
}

func (m *MockStorage) List(kind models.InputKind, limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.FileInfo, 0, len(m.files))
	for _, file := range m.files {
		if kind == "" || file.Kind == kind {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrFileNotFound, id)
	}
	os.Remove(m.pathFor(id, file.Name))
	delete(m.files, id)
	return nil
}

// GetFilePath returns the actual file path on disk
func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrFileNotFound, id)
	}
	return m.pathFor(id, file.Name), nil
}

// Test Helper Methods

// AddFile writes the file to disk under a fixed id and classifies it.
func (m *MockStorage) AddFile(id, name string, data []byte) *models.FileInfo {
	path := m.pathFor(id, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		panic(fmt.Sprintf("failed to write test file: %v", err))
	}

	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		Kind:       parser.GetGlobalRegistry().DetectBytes(name, data),
		UploadedAt: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = file
	return file
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

func (m *MockStorage) pathFor(id, name string) string {
	return filepath.Join(m.tempDir, id+"_"+filepath.Base(name))
}
