package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const docExt = ".json"

// FileStore keeps each document as <base>/<collection>/<id>.json
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(collection, id string) (string, error) {
	if collection == "" || id == "" || strings.ContainsAny(collection+id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid key %s/%s", collection, id)
	}
	return filepath.Join(s.baseDir, collection, id+docExt), nil
}

// Create writes a new document, failing if the key already exists
func (s *FileStore) Create(ctx context.Context, collection, id string, doc any) error {
	p, err := s.path(collection, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, collection, id)
		}
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	return nil
}

// Read returns the raw document bytes
func (s *FileStore) Read(ctx context.Context, collection, id string) ([]byte, error) {
	p, err := s.path(collection, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	return data, nil
}

// Update replaces an existing document. The new content is written to a
// temporary file and renamed over the old one.
func (s *FileStore) Update(ctx context.Context, collection, id string, doc any) error {
	p, err := s.path(collection, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %v", ErrWriteFailed, collection, id, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	return nil
}

// Remove deletes a document
func (s *FileStore) Remove(ctx context.Context, collection, id string) error {
	p, err := s.path(collection, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, err)
	}
	return nil
}

// List returns the ids stored in a collection, sorted
func (s *FileStore) List(ctx context.Context, collection string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, docExt))
	}
	sort.Strings(ids)
	return ids, nil
}
