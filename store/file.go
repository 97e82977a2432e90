package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON file per key.
//
// Writes are atomic and durable: temp file in the same directory, fsync, rename over
// the previous file, fsync the directory. A crash mid-write leaves the old document.
type FileStore struct {
	paths map[string]string
}

// NewFileStore maps document keys to file paths.
func NewFileStore(paths map[string]string) (*FileStore, error) {
	if len(paths) == 0 {
		return nil, errors.New("file store: no paths configured")
	}
	cp := make(map[string]string, len(paths))
	for k, p := range paths {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("file store: empty path for %q", k)
		}
		cp[k] = p
	}
	return &FileStore{paths: cp}, nil
}

func (s *FileStore) path(key string) (string, error) {
	p, ok := s.paths[key]
	if !ok {
		return "", fmt.Errorf("file store: unknown key %q", key)
	}
	return p, nil
}

func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return b, nil
}

func (s *FileStore) Save(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
