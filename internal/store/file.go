package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"flashdetail/internal/metrics"
)

type tableMap map[string]map[string]Record

// FileStore keeps every table in memory and rewrites one JSON file on each
// mutation. Before a read it compares the file's modification time with the
// one stamped at the last load or save and reloads if the file is newer, so
// out-of-band edits become visible.
//
// A lock file next to the cache file serializes rewrites and reloads across
// processes; mu serializes them within the process.
type FileStore struct {
	path   string
	logger *zap.Logger
	lock   *flock.Flock

	mu     sync.Mutex
	tables tableMap

	// UnixNano mtime of the file at the last load or save; 0 when absent.
	stamp atomic.Int64
}

// NewFileStore opens the store at path. A missing file yields an empty store
// and its directory is created. Malformed content is logged and treated as
// empty.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store: file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create cache directory: %w", ErrIO, err)
	}

	s := &FileStore{
		path:   path,
		logger: logger.Named("store"),
		lock:   flock.New(path + ".lock"),
	}

	s.mu.Lock()
	s.tables = s.readFile()
	s.stamp.Store(s.modTime())
	s.mu.Unlock()

	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, table, key string) (Record, bool, error) {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tables[table][NormalizeKey(key)]
	if !ok {
		return Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *FileStore) Set(_ context.Context, table, key string, rec Record) error {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]Record)
		s.tables[table] = t
	}
	t[NormalizeKey(key)] = rec.Clone()

	return s.saveLocked()
}

// Update holds mu across the read, fn and the rewrite.
func (s *FileStore) Update(_ context.Context, table, key string, fn UpdateFunc) error {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	key = NormalizeKey(key)
	current, exists := s.tables[table][key]
	rec := current.Clone()

	remove, err := fn(&rec, exists)
	if err != nil {
		return err
	}

	if remove {
		if !exists {
			return nil
		}
		delete(s.tables[table], key)
	} else {
		t, ok := s.tables[table]
		if !ok {
			t = make(map[string]Record)
			s.tables[table] = t
		}
		t[key] = rec.Clone()
	}

	return s.saveLocked()
}

func (s *FileStore) Delete(_ context.Context, table, key string) error {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	key = NormalizeKey(key)
	if _, ok := t[key]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrNotFound, table, key)
	}
	delete(t, key)

	return s.saveLocked()
}

func (s *FileStore) ClearTable(_ context.Context, table string) error {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	s.tables[table] = make(map[string]Record)

	return s.saveLocked()
}

func (s *FileStore) DeleteTable(_ context.Context, table string) error {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	delete(s.tables, table)

	return s.saveLocked()
}

func (s *FileStore) Keys(_ context.Context, table string) ([]string, error) {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tables[table]
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Tables(_ context.Context) ([]string, error) {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// reloadIfChanged re-reads the file when its mtime moved past the stamp. The
// comparison is repeated under mu so concurrent callers that noticed the same
// change reload only once.
func (s *FileStore) reloadIfChanged() {
	current := s.modTime()
	if current <= s.stamp.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current <= s.stamp.Load() {
		return
	}

	s.logger.Info("cache file modified externally, reloading",
		zap.String("path", s.path),
	)
	s.tables = s.readFile()
	s.stamp.Store(current)
	metrics.CacheReloadsTotal.Inc()
}

func (s *FileStore) modTime() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}

// readFile loads the file; any failure yields an empty store. Caller holds mu.
func (s *FileStore) readFile() tableMap {
	if err := s.lock.RLock(); err != nil {
		s.logger.Warn("cache lock unavailable, reading without it", zap.Error(err))
	} else {
		defer s.unlock()
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read cache file",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return make(tableMap)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return make(tableMap)
	}

	var tables tableMap
	if err := json.Unmarshal(data, &tables); err != nil {
		s.logger.Warn("failed to parse cache file, starting empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return make(tableMap)
	}
	if tables == nil {
		tables = make(tableMap)
	}

	s.logger.Debug("loaded cache file",
		zap.String("path", s.path),
		zap.Int("tables", len(tables)),
	)
	return tables
}

// saveLocked rewrites the whole file through a temp file. Caller holds mu.
func (s *FileStore) saveLocked() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.tables); err != nil {
		return fmt.Errorf("%w: encode cache: %w", ErrIO, err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock cache file: %w", ErrIO, err)
	}
	defer s.unlock()

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		s.logger.Error("failed to write cache file", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: write temp file: %w", ErrIO, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		s.logger.Error("failed to replace cache file", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: rename cache file: %w", ErrIO, err)
	}

	s.stamp.Store(s.modTime())
	return nil
}

func (s *FileStore) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release cache lock", zap.Error(err))
	}
}
