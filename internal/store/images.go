package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SanitizeFileName strips path separators and parent references from a
// filename so image blobs can never escape their session directory.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == "/" {
		return "unnamed"
	}
	return name
}

// PutImage stores a PNG blob under the session's image directory. The caller
// is responsible for passing a sanitized filename.
func (s *Store) PutImage(id, name string, data []byte) error {
	if name != SanitizeFileName(name) {
		return fmt.Errorf("unsanitized image filename %q", name)
	}
	dir := filepath.Join(s.sessionDir(id), imagesDir)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write image %s: %w", name, err)
	}
	return nil
}

// GetImage reads an image blob previously written with PutImage.
func (s *Store) GetImage(id, name string) ([]byte, error) {
	if name != SanitizeFileName(name) {
		return nil, fmt.Errorf("unsanitized image filename %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.sessionDir(id), imagesDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image %s not found in session %s: %w", name, id, err)
		}
		return nil, fmt.Errorf("failed to read image %s: %w", name, err)
	}
	return data, nil
}
