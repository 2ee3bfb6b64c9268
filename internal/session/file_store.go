package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileStore keeps the credential in a single file readable by every client
// process of the same user. Changes by other processes arrive through fsnotify.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	lastSeen string
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: filepath.Clean(path), logger: logger}
}

func (s *FileStore) Load(_ context.Context) (string, error) {
	value, err := s.read()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.lastSeen = value
	s.mu.Unlock()
	return value, nil
}

func (s *FileStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir failed: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("create credential temp file failed: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential failed: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod credential failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential temp file failed: %w", err)
	}
	s.lastSeen = token
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credential file failed: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = ""
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file failed: %w", err)
	}
	return nil
}

func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create credential watcher failed: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir failed: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch credential dir failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if s.changedElsewhere() {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("credential watcher error", zap.Error(err))
		}
	}
}

// changedElsewhere compares the file against the last value this store wrote
// or read, so a process is not told about its own writes.
func (s *FileStore) changedElsewhere() bool {
	value, err := s.read()
	if err != nil {
		s.logger.Warn("read credential after change failed", zap.Error(err))
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == s.lastSeen {
		return false
	}
	s.lastSeen = value
	return true
}

func (s *FileStore) read() (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential file failed: %w", err)
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}
