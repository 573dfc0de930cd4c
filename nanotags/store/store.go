// Package store is a small document-collection database. A database holds
// named collections of typed fields; documents are maps keyed by a
// primary-key field and can be filtered with the boolean expressions of
// package query.
//
// All access goes through scoped sessions:
//
//	err := db.Read(func(s store.Session) error {
//	    docs, err := s.FilterDocuments("current", `{Age} > 30`)
//	    ...
//	})
//
// A write session works on a copy of the data. Returning nil commits and
// persists the copy; returning an error or panicking discards it.
package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arthur-debert/nanotags/internal/validation"
	"github.com/arthur-debert/nanotags/nanotags/storage"
	"github.com/arthur-debert/nanotags/types"
	"github.com/google/uuid"
)

// DB is a document-collection database backed by a storage.Storage.
// Every session starts from the data currently stored, so several DB values
// (or processes) can share one backend.
type DB struct {
	backend storage.Storage
	locks   *storage.LockManager
	logger  *slog.Logger
}

// Open checks that backend holds a readable database. An empty backend
// yields an empty database; nothing is written until the first committed
// write session.
func Open(backend storage.Storage, opts ...Option) (*DB, error) {
	db := &DB{
		backend: backend,
		locks:   storage.NewLockManager(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}

	if _, err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenMemory returns an empty database kept in memory
func OpenMemory(opts ...Option) *DB {
	db, _ := Open(storage.NewMemory(), opts...)
	return db
}

func (db *DB) load() (*storage.StoreData, error) {
	data, err := db.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	if data == nil {
		data = &storage.StoreData{}
	}
	normalize(data)
	return data, nil
}

// Read runs fn in a read-only session over the stored data. Mutating
// operations fail with types.ErrReadOnly.
func (db *DB) Read(fn func(Session) error) error {
	return db.locks.Execute(storage.ReadOperation, func() error {
		data, err := db.load()
		if err != nil {
			return err
		}
		return fn(newSession(data, true))
	})
}

// Write runs fn in a read-write session. The backend stays locked from the
// load to the save, so writes from other handles are never overwritten.
// When fn returns nil the changes are saved; otherwise they are dropped.
// Panics are re-raised after the rollback.
func (db *DB) Write(fn func(Session) error) error {
	return db.locks.Execute(storage.WriteOperation, func() error {
		id := uuid.New().String()
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				db.logger.Error("write session panicked, rolled back", "session", id, "panic", r)
				panic(r)
			}
		}()

		var fnErr error
		var collections int
		err := db.backend.Update(func(data *storage.StoreData) (bool, error) {
			normalize(data)
			s := newSession(data, false)
			if fnErr = fn(s); fnErr != nil {
				return false, fnErr
			}
			collections = len(data.Collections)
			return s.changed, nil
		})
		switch {
		case fnErr != nil:
			db.logger.Debug("write session rolled back", "session", id, "error", fnErr)
			return fnErr
		case err != nil:
			db.logger.Error("commit failed", "session", id, "error", err)
			return fmt.Errorf("failed to save data: %w", err)
		}
		db.logger.Debug("write session committed",
			"session", id,
			"collections", collections,
			"duration", time.Since(start))
		return nil
	})
}

// Close releases the backend
func (db *DB) Close() error {
	return db.locks.Execute(storage.WriteOperation, func() error {
		return db.backend.Close()
	})
}

// normalize converts values decoded from JSON back to their stored
// representation (JSON numbers arrive as float64).
func normalize(data *storage.StoreData) {
	for ci := range data.Collections {
		c := &data.Collections[ci]
		fieldTypes := make(map[string]types.FieldType, len(c.Fields))
		for _, f := range c.Fields {
			fieldTypes[f.Name] = types.FieldType(f.Type)
		}
		for _, doc := range c.Documents {
			for name, raw := range doc {
				t, ok := fieldTypes[name]
				if !ok {
					continue
				}
				if v, err := validation.CoerceValue(raw, t, name); err == nil {
					doc[name] = v
				}
			}
		}
	}
}
