// Package storage provides the persistence layer for nanotags.
// It defines the serialized shape of a database (collections with their
// schema and documents) and the backends that load and save it as a unit.
package storage

import (
	"time"
)

// FormatVersion is written to the metadata of every saved database
const FormatVersion = "1.0"

// StoreData represents the complete data structure stored in the backend
type StoreData struct {
	Collections []CollectionData `json:"collections"`
	Metadata    Metadata         `json:"metadata"`
}

// CollectionData is one collection: its schema and its documents in
// insertion order. Every document carries its primary key value.
type CollectionData struct {
	Name       string                   `json:"name"`
	PrimaryKey string                   `json:"primary_key"`
	Fields     []FieldData              `json:"fields"`
	Documents  []map[string]interface{} `json:"documents"`
}

// FieldData is the persisted schema of one field
type FieldData struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Indexed     bool   `json:"indexed,omitempty"`
}

// Metadata contains storage metadata
type Metadata struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Storage defines the low-level interface for batch persistence.
// This interface handles loading and saving the entire database
// as a single unit, which matches the JSON file backend's natural behavior.
type Storage interface {
	// Load reads the entire store data from the backend.
	// A backend with nothing stored yet returns (nil, nil).
	Load() (*StoreData, error)

	// Save writes the entire store data to the backend
	Save(data *StoreData) error

	// Update loads the stored data, passes it to fn and saves it when fn
	// reports a change, holding the backend's lock throughout so that no
	// other writer can slip in between. fn gets an empty StoreData when
	// nothing is stored yet. Nothing is saved when fn fails.
	Update(fn func(data *StoreData) (changed bool, err error)) error

	// Close releases any resources held by the storage
	Close() error
}

// Clone returns a deep copy of the data. Write sessions work on a clone so
// that a failed session leaves the committed data untouched.
func (d *StoreData) Clone() *StoreData {
	if d == nil {
		return nil
	}
	out := &StoreData{
		Collections: make([]CollectionData, len(d.Collections)),
		Metadata:    d.Metadata,
	}
	for i, c := range d.Collections {
		out.Collections[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of the collection
func (c CollectionData) Clone() CollectionData {
	out := CollectionData{
		Name:       c.Name,
		PrimaryKey: c.PrimaryKey,
		Fields:     append([]FieldData(nil), c.Fields...),
		Documents:  make([]map[string]interface{}, len(c.Documents)),
	}
	for i, doc := range c.Documents {
		out.Documents[i] = cloneMap(doc)
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies the maps and slices of a JSON-like value
func CloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return cloneMap(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}
