package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// FilesystemStore keeps blobs as files on a billy filesystem.
type FilesystemStore struct {
	fs billy.Filesystem
}

// NewLocal stores blobs under basePath on disk.
func NewLocal(basePath string) *FilesystemStore {
	return &FilesystemStore{fs: osfs.New(basePath)}
}

// NewMemory stores blobs in process memory.
func NewMemory() *FilesystemStore {
	return &FilesystemStore{fs: memfs.New()}
}

func (s *FilesystemStore) Read(_ context.Context, key string) ([]byte, error) {
	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Write replaces key atomically: data goes to a temp file in the same
// directory which is then renamed over the target.
func (s *FilesystemStore) Write(_ context.Context, key string, data []byte) error {
	dir := path.Dir(key)
	if dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	tmp, err := s.fs.TempFile(dir, ".tmp-"+path.Base(key)+"-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.fs.Rename(tmpName, key); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	err := s.fs.Remove(key)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns every stored key, sorted. Temp files are skipped.
func (s *FilesystemStore) List(context.Context) ([]string, error) {
	var keys []string
	var walk func(string) error
	walk = func(dir string) error {
		entries, err := s.fs.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			p := s.fs.Join(dir, entry.Name())
			if entry.IsDir() {
				if err := walk(p); err != nil {
					return err
				}
				continue
			}
			if len(entry.Name()) > 5 && entry.Name()[:5] == ".tmp-" {
				continue
			}
			if dir == "." || dir == "" {
				p = entry.Name()
			}
			keys = append(keys, path.Clean(p))
		}
		return nil
	}
	if err := walk("."); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
