package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	lockTimeout    = 3 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// JSONFile stores the whole database in one JSON document on disk.
// Every Load and Save holds a cross-process lock on "<path>.lock", and
// saves go through a temporary file renamed over the target.
type JSONFile struct {
	path        string
	fs          FileSystem
	lockFactory FileLockFactory
	fileLock    FileLock
	timeFunc    func() time.Time
}

// JSONFileOption configures a JSONFile
type JSONFileOption func(*JSONFile)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fsys FileSystem) JSONFileOption {
	return func(s *JSONFile) {
		s.fs = fsys
	}
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) JSONFileOption {
	return func(s *JSONFile) {
		s.lockFactory = factory
	}
}

// WithTimeFunc sets the clock used for metadata timestamps
func WithTimeFunc(fn func() time.Time) JSONFileOption {
	return func(s *JSONFile) {
		s.timeFunc = fn
	}
}

// NewJSONFile creates a JSON file backend for path. The file is not
// touched until the first Load or Save.
func NewJSONFile(path string, opts ...JSONFileOption) *JSONFile {
	s := &JSONFile{
		path:     path,
		timeFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		s.fs = OSFileSystem{}
	}
	if s.lockFactory == nil {
		s.lockFactory = FlockFactory{}
	}
	s.fileLock = s.lockFactory.New(s.lockPath())
	return s
}

// Path returns the database file path
func (s *JSONFile) Path() string { return s.path }

func (s *JSONFile) lockPath() string { return s.path + ".lock" }

// Load implements Storage
func (s *JSONFile) Load() (*StoreData, error) {
	var data *StoreData
	err := s.withLock(func() error {
		var err error
		data, err = s.read()
		return err
	})
	return data, err
}

// Save implements Storage
func (s *JSONFile) Save(data *StoreData) error {
	if data == nil {
		return errors.New("storage: nothing to save")
	}
	return s.withLock(func() error {
		return s.write(data)
	})
}

// Update implements Storage
func (s *JSONFile) Update(fn func(data *StoreData) (bool, error)) error {
	return s.withLock(func() error {
		data, err := s.read()
		if err != nil {
			return err
		}
		if data == nil {
			data = &StoreData{}
		}
		changed, err := fn(data)
		if err != nil || !changed {
			return err
		}
		return s.write(data)
	})
}

// Close removes the lock file
func (s *JSONFile) Close() error {
	if err := s.fs.Remove(s.lockPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (s *JSONFile) withLock(fn func() error) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer func() { _ = s.fileLock.Unlock() }()

	return fn()
}

// acquireLock attempts to acquire the file lock with retry logic
func (s *JSONFile) acquireLock(ctx context.Context) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("failed to acquire lock after %d attempts", lockMaxRetries)
}

func (s *JSONFile) read() (*StoreData, error) {
	if _, err := s.fs.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	raw, err := s.fs.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var data StoreData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return &data, nil
}

func (s *JSONFile) write(data *StoreData) error {
	now := s.timeFunc()
	if data.Metadata.ID == "" {
		data.Metadata.ID = uuid.New().String()
	}
	if data.Metadata.CreatedAt.IsZero() {
		data.Metadata.CreatedAt = now
	}
	data.Metadata.Version = FormatVersion
	data.Metadata.UpdatedAt = now

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpFile := s.path + ".tmp"
	if err := s.fs.WriteFile(tmpFile, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := s.fs.Rename(tmpFile, s.path); err != nil {
		_ = s.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
