package sideinfo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var (
	ErrInvalidID = errors.New("invalid record id")
	ErrExists    = errors.New("record already exists")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidID reports whether id can name a record in every backend.
func ValidID(id string) error {
	if len(id) > 128 || !idPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Storage is a flat key/value space of encoded records. Values are written
// once; readers never observe a partial value.
type Storage interface {
	// Put returns ErrExists when id is already stored, including by another
	// process sharing the backend.
	Put(ctx context.Context, id string, data []byte) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) ([]byte, error)
	// List returns ids in the order they were first stored when the
	// backend can tell, otherwise sorted.
	List(ctx context.Context) ([]string, error)
	// Delete returns ErrNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
	order  []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (m *MemoryStorage) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[id]; ok {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	m.order = append(m.order, id)
	m.values[id] = slices.Clone(data)
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return slices.Clone(v), nil
}

func (m *MemoryStorage) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.values, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

// FileExt is the suffix of every file written by FileStorage.
const FileExt = ".wm.json"

// FileStorage stores one file per record in a directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates dir when missing.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the storage directory.
func (f *FileStorage) Dir() string { return f.dir }

func (f *FileStorage) path(id string) string {
	return filepath.Join(f.dir, id+FileExt)
}

// Put writes to a temporary file in the same directory and links it to the
// target name. Linking fails when the target exists, so concurrent writers
// of one id cannot replace each other.
func (f *FileStorage) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidID(id); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-"+id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to close record: %w", err)
	}
	defer os.Remove(name)
	if err := os.Link(name, f.path(id)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, id)
		}
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

func (f *FileStorage) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return data, nil
}

// List returns ids sorted by name; temporary files are skipped.
func (f *FileStorage) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, FileExt))
	}
	return ids, nil
}

func (f *FileStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	err := os.Remove(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
