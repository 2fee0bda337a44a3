package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const entryExtension = ".json"

// Common cache errors.
var (
	ErrNotFound   = errors.New("cache entry not found")
	ErrExpired    = errors.New("cache entry expired")
	ErrInvalidKey = errors.New("cache key cannot be empty")
	ErrDisabled   = errors.New("cache is disabled")
)

// Store is the cache used by the API client.
type Store interface {
	Get(key string) (*Entry, error)
	Set(key, route string, data json.RawMessage) error
	Clear() error
}

// FileStore keeps one JSON file per entry in a directory.
// Safe for concurrent use.
type FileStore struct {
	dir      string
	enabled  bool
	ttl      time.Duration
	maxBytes int64 // 0 = unlimited

	mu sync.RWMutex
}

// NewFileStore creates the directory if needed. A disabled store is valid and
// returns ErrDisabled from every operation.
func NewFileStore(dir string, enabled bool, ttlSeconds, maxSizeMB int) (*FileStore, error) {
	if !enabled {
		return &FileStore{}, nil
	}
	if dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{
		dir:      dir,
		enabled:  true,
		ttl:      time.Duration(ttlSeconds) * time.Second,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
	}, nil
}

// Get returns a live entry. Expired entries are removed and reported as
// ErrExpired.
func (s *FileStore) Get(key string) (*Entry, error) {
	if !s.enabled {
		return nil, ErrDisabled
	}
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path(key))
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if err = json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if entry.IsExpired() {
		s.mu.Lock()
		_ = os.Remove(s.path(key))
		s.mu.Unlock()
		return nil, ErrExpired
	}
	return &entry, nil
}

// Set writes an entry atomically, then evicts the oldest entries if the
// directory exceeds the size limit.
func (s *FileStore) Set(key, route string, data json.RawMessage) error {
	if !s.enabled {
		return ErrDisabled
	}
	if key == "" {
		return ErrInvalidKey
	}

	encoded, err := json.Marshal(NewEntry(key, route, data, s.ttl))
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp := target + ".tmp"
	if err = os.WriteFile(tmp, encoded, 0o600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err = os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return s.evictLocked()
}

// Clear removes every entry.
func (s *FileStore) Clear() error {
	if !s.enabled {
		return ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.filesLocked()
	if err != nil {
		return err
	}
	for _, f := range files {
		if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("failed to remove cache file: %w", rmErr)
		}
	}
	return nil
}

// Count returns the number of entry files, expired or not.
func (s *FileStore) Count() (int, error) {
	if !s.enabled {
		return 0, ErrDisabled
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	files, err := s.filesLocked()
	return len(files), err
}

// Enabled reports whether the store caches anything.
func (s *FileStore) Enabled() bool {
	return s.enabled
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (s *FileStore) filesLocked() ([]cacheFile, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	files := make([]cacheFile, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != entryExtension {
			continue
		}
		info, infoErr := de.Info()
		if infoErr != nil {
			continue
		}
		files = append(files, cacheFile{
			path:    filepath.Join(s.dir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return files, nil
}

func (s *FileStore) evictLocked() error {
	if s.maxBytes <= 0 {
		return nil
	}
	files, err := s.filesLocked()
	if err != nil {
		return err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= s.maxBytes {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files {
		if total <= s.maxBytes {
			break
		}
		if rmErr := os.Remove(f.path); rmErr == nil {
			total -= f.size
		}
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+entryExtension)
}
