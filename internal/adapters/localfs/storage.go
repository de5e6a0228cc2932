// Package localfs stores uploaded objects on the local filesystem and serves
// them back by URL. It stands in for an object store behind the Storage port.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Storage struct {
	root    string
	baseURL string
}

func New(root, baseURL string) *Storage {
	return &Storage{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Storage) Upload(ctx context.Context, data []byte, path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/" + path, nil
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// resolve keeps storage keys inside the root.
func (s *Storage) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}
