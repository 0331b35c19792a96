package localstore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Storage keys. The layout key keeps the historical name so existing state
// files carry over; deviceVisibility is a legacy key that is only ever read
// as a migration source.
const (
	KeyToken            = "token"
	KeyLayout           = "dashboard_widgets_v1"
	KeyDeviceCache      = "device_usage_cache"
	KeyDeviceCacheAt    = "device_usage_cache_at"
	KeyPrediction       = "ai_prediction_cache"
	KeyDeviceVisibility = "deviceVisibility"
)

// Store is a small keyed JSON store persisted as one state file. It stands in
// for the browser's localStorage: every write lands on disk synchronously,
// last write wins, and there is no coordination across processes.
type Store struct {
	mu        sync.Mutex
	path      string
	values    map[string]json.RawMessage
	persistMu sync.Mutex
	logger    *slog.Logger
}

type persistedStateFile struct {
	Version int                        `json:"version"`
	Values  map[string]json.RawMessage `json:"values"`
	SavedAt int64                      `json:"savedAt"`
}

// Open loads the state file at path, or starts empty when it does not exist.
// An unreadable or corrupt file also starts empty: local state is a cache of
// user preference, never the source of truth worth failing over.
// An empty path keeps the store memory-only.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		values: make(map[string]json.RawMessage),
		logger: logger,
	}
	if path == "" {
		return s
	}
	if err := s.loadFromFile(path); err != nil {
		logger.Warn("state file load failed, starting empty", "path", path, "error", err)
		s.values = make(map[string]json.RawMessage)
	}
	return s
}

func (s *Store) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedStateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported state file version")
	}
	for k, v := range file.Values {
		s.values[k] = v
	}
	return nil
}

// Get unmarshals the value stored under key into out. The boolean reports
// whether the key was present at all, so callers can tell "no data yet" from
// a zero value.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, err
	}
	return true, nil
}

// Set stores the value under key and writes the whole state file out
// synchronously. Writes are user-interaction-bound, so one file write per
// mutation is acceptable.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = raw
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(snapshot)
	return nil
}

// Delete removes key and persists.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(snapshot)
}

func (s *Store) snapshotLocked() map[string]json.RawMessage {
	snapshot := make(map[string]json.RawMessage, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	return snapshot
}

func (s *Store) persist(values map[string]json.RawMessage) {
	if s.path == "" {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.logger.Warn("state persistence: mkdir failed", "dir", dir, "error", err)
		return
	}

	file := persistedStateFile{Version: 1, Values: values, SavedAt: time.Now().UnixMilli()}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		s.logger.Warn("state persistence: marshal failed", "error", err)
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		s.logger.Warn("state persistence: create temp failed", "error", err)
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		s.logger.Warn("state persistence: chmod temp failed", "error", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		s.logger.Warn("state persistence: write temp failed", "error", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		s.logger.Warn("state persistence: sync temp failed", "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		s.logger.Warn("state persistence: close temp failed", "error", err)
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		s.logger.Warn("state persistence: rename failed", "error", err)
	}
}
