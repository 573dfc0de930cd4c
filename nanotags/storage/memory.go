package storage

import (
	"sync"

	"github.com/google/uuid"
)

// Memory keeps the database in process memory. Saved data is cloned on the
// way in and out so callers never share maps with the backend.
type Memory struct {
	mu   sync.Mutex
	data *StoreData
}

// NewMemory returns an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements Storage
func (m *Memory) Load() (*StoreData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone(), nil
}

// Save implements Storage
func (m *Memory) Save(data *StoreData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(data)
	return nil
}

// Update implements Storage
func (m *Memory) Update(fn func(data *StoreData) (bool, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.data.Clone()
	if data == nil {
		data = &StoreData{}
	}
	changed, err := fn(data)
	if err != nil || !changed {
		return err
	}
	m.store(data)
	return nil
}

func (m *Memory) store(data *StoreData) {
	cp := data.Clone()
	if cp != nil {
		if cp.Metadata.ID == "" {
			cp.Metadata.ID = uuid.New().String()
		}
		cp.Metadata.Version = FormatVersion
	}
	m.data = cp
}

// Close implements Storage
func (m *Memory) Close() error { return nil }
