package template

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore loads and replaces template files on disk. Save is atomic:
// the new content is written to a temp file in the same directory and
// renamed over the target, so a reader never observes a missing or
// half-written template.
type FileStore struct{}

// NewFileStore creates a new template file store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Load reads a template file.
// POST: Returns the file content unchanged
func (s *FileStore) Load(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loading template: %w", err)
	}
	return string(content), nil
}

// Save atomically replaces the template at path with content.
// POST: path holds either the previous content or the new content in
// full, never nothing and never a partial write
func (s *FileStore) Save(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".template-*")
	if err != nil {
		return fmt.Errorf("staging template: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing template: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing template: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing template: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting template mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing template: %w", err)
	}
	return nil
}
