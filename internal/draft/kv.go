package draft

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// KV is the durable key-value surface the draft is written through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	// SetAll writes every pair or none of them.
	SetAll(ctx context.Context, pairs ...Pair) error
}

// Pair is one key and value of a SetAll write.
type Pair struct {
	Key   string
	Value []byte
}

type scopedKV struct {
	inner  KV
	prefix string
}

// Scoped namespaces every key under scope, so one backend can hold a draft
// per user.
func Scoped(kv KV, scope string) KV {
	return &scopedKV{inner: kv, prefix: "coach:" + scope + ":"}
}

func (s *scopedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scopedKV) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scopedKV) SetAll(ctx context.Context, pairs ...Pair) error {
	scoped := make([]Pair, len(pairs))
	for i, p := range pairs {
		scoped[i] = Pair{Key: s.prefix + p.Key, Value: p.Value}
	}
	return s.inner.SetAll(ctx, scoped...)
}

func (s *scopedKV) Delete(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, key := range keys {
		scoped[i] = s.prefix + key
	}
	return s.inner.Delete(ctx, scoped...)
}

// FileKV stores each key as a file under dir.
type FileKV struct {
	dir string
}

// NewFileKV creates dir if needed and returns a FileKV rooted there.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("draft: create dir %s: %w", dir, err)
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Get reads the file for key.
func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("draft: read %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes key atomically through a temp file and rename.
func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	path := f.path(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, value, 0o600); err != nil {
		return fmt.Errorf("draft: write temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("draft: rename temp file for %s: %w", key, err)
	}
	return nil
}

// SetAll stages every value in a temp file before renaming any of them. If a
// rename fails, the keys already renamed are put back to their previous
// contents.
func (f *FileKV) SetAll(ctx context.Context, pairs ...Pair) error {
	staged := make([]string, 0, len(pairs))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for _, p := range pairs {
		tmpPath := f.path(p.Key) + ".tmp"
		if err := os.WriteFile(tmpPath, p.Value, 0o600); err != nil {
			cleanup()
			return fmt.Errorf("draft: write temp file for %s: %w", p.Key, err)
		}
		staged = append(staged, tmpPath)
	}

	type previous struct {
		data  []byte
		found bool
	}
	before := make([]previous, len(pairs))
	for i, p := range pairs {
		data, found, err := f.Get(ctx, p.Key)
		if err != nil {
			cleanup()
			return err
		}
		before[i] = previous{data: data, found: found}
	}

	for i, p := range pairs {
		if err := os.Rename(staged[i], f.path(p.Key)); err != nil {
			cleanup()
			for j := 0; j < i; j++ {
				f.restore(ctx, pairs[j].Key, before[j].data, before[j].found)
			}
			return fmt.Errorf("draft: rename temp file for %s: %w", p.Key, err)
		}
	}
	return nil
}

func (f *FileKV) restore(ctx context.Context, key string, data []byte, found bool) {
	var err error
	if found {
		err = f.Set(ctx, key, data)
	} else {
		err = f.Delete(ctx, key)
	}
	if err != nil {
		log.WithError(err).WithField("key", key).Error("draft: restoring key after failed write")
	}
}

// Delete removes the files for keys. Missing files are fine.
func (f *FileKV) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("draft: delete %s: %w", key, err)
		}
	}
	return nil
}

// MemoryKV keeps values in process memory. Drafts do not survive a restart.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) SetAll(_ context.Context, pairs ...Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.data[p.Key] = append([]byte(nil), p.Value...)
	}
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}
