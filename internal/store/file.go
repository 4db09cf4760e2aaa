// internal/store/file.go
//
// JSON-file Store: every key lives in one JSON object on disk.
// The whole object is rewritten on each mutation via a temp file and an
// atomic rename, so a crash never leaves a half-written file behind.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type fileStore struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// OpenFile opens (and creates on first write) a JSON-file store at path.
// An unreadable file is an error; a missing one is not. A malformed file is
// moved aside to "<path>.corrupt-<unix>" and the store starts empty.
func OpenFile(path string) (Store, error) {
	fs := &fileStore{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(data, &fs.values); err != nil {
		fs.values = make(map[string]string)
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		ev := log.Warn().Err(err).Str("path", path)
		if rerr := os.Rename(path, aside); rerr != nil {
			ev.AnErr("renameErr", rerr).Msg("store file is corrupt; starting empty")
		} else {
			ev.Str("movedTo", aside).Msg("store file is corrupt; starting empty")
		}
		return fs, nil
	}
	if fs.values == nil {
		fs.values = make(map[string]string)
	}
	return fs, nil
}

func (f *fileStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fileStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *fileStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

func (f *fileStore) Close() error { return nil }

// flush must be called with f.mu held.
func (f *fileStore) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	return AtomicWriteFile(f.path, data, 0o600)
}

// AtomicWriteFile writes data to a temp file in the target directory and
// renames it over filename.
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-store-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	var success bool
	defer func() {
		if !success {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename %s: %w", filename, err)
	}
	success = true
	return nil
}
