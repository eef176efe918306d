package authcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileKV persists values as files under a directory. It survives process
// restarts, which keeps a warm cache across server redeploys.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

// NewFileKV creates the directory if needed and returns a store rooted there.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("authcache: create cache dir: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

// Load reads the file for key, or (nil, nil) if absent.
func (f *FileKV) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authcache: read %s: %w", key, err)
	}
	return data, nil
}

// Store writes value atomically via a temp-file rename.
func (f *FileKV) Store(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, key+".*")
	if err != nil {
		return fmt.Errorf("authcache: temp file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("authcache: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("authcache: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("authcache: rename %s: %w", key, err)
	}
	return nil
}

// Delete removes the file for key if present.
func (f *FileKV) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}
