package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
)

// Store defines the interface for uploaded input files.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	// List returns the newest files first. An empty kind matches every
	// file and a non-positive limit returns all of them.
	List(kind models.InputKind, limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
}

// LocalStore implements Store using the local filesystem. Every saved file is
// classified by its content so sessions can check what they are given.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
	registry  *parser.Registry
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
		registry:  parser.GetGlobalRegistry(),
	}, nil
}

// Save stores a file and detects its kind. Names ending in .gz are
// decompressed on the way in and stored without the suffix.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
		name = name[:len(name)-len(".gz")]
	}

	id := uuid.New().String()
	path := s.pathFor(id, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	kind, err := s.registry.Detect(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("detecting input kind: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		Kind:       kind,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrFileNotFound, id)
	}

	return info, nil
}

// List returns uploads of one kind, newest first.
func (s *LocalStore) List(kind models.InputKind, limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		if kind == "" || info.Kind == kind {
			list = append(list, info)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].UploadedAt.After(list[j].UploadedAt)
		}
		return list[i].Name < list[j].Name
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrFileNotFound, id)
	}

	if err := os.Remove(s.pathFor(id, info.Name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// GetFilePath returns the path to a stored file. The stored name keeps the
// original extension so detection by suffix keeps working.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrFileNotFound, id)
	}

	return s.pathFor(id, info.Name), nil
}

func (s *LocalStore) pathFor(id, name string) string {
	return filepath.Join(s.uploadDir, id+strings.ToLower(filepath.Ext(name)))
}
