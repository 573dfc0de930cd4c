// Package attributes keeps per-field metadata (visibility, origin, unit and
// default value) next to the collections of a store.
//
// The metadata lives in the field_attributes collection, one record per
// field keyed by "collection|field". Session wraps a store.Session and keeps
// those records in step with the schema: adding a collection or a field
// writes its record, removing a field drops it.
package attributes

import (
	"fmt"
	"log/slog"

	"github.com/arthur-debert/nanotags/nanotags/store"
	"github.com/arthur-debert/nanotags/types"
)

// Fields of an attributes record
const (
	KeyIndex        = "index"
	KeyVisibility   = "visibility"
	KeyOrigin       = "origin"
	KeyUnit         = "unit"
	KeyDefaultValue = "default_value"
)

var recordFields = []struct {
	name string
	typ  types.FieldType
	desc string
}{
	{KeyVisibility, types.FieldTypeBoolean, "Shown in the browser table by default"},
	{KeyOrigin, types.FieldTypeString, "builtin or user"},
	{KeyUnit, types.FieldTypeString, "Physical unit of the values"},
	{KeyDefaultValue, types.FieldTypeString, "Value given to new documents"},
}

// FieldSpec describes one field for AddFields
type FieldSpec struct {
	Collection  string
	Name        string
	Type        types.FieldType
	Description string
	Attributes  types.FieldAttributes
}

// Session is a store session that maintains field attributes. Operations it
// does not override go straight to the wrapped session.
type Session struct {
	store.Session
}

// Wrap returns an attribute-aware view of s
func Wrap(s store.Session) *Session {
	return &Session{Session: s}
}

// EnsureAttributesCollection creates the attributes collection and its
// schema unless it already exists
func (s *Session) EnsureAttributesCollection() error {
	if s.HasCollection(types.CollectionFieldAttributes) {
		return nil
	}
	if err := s.Session.AddCollection(types.CollectionFieldAttributes, KeyIndex); err != nil {
		return err
	}
	for _, f := range recordFields {
		if err := s.Session.AddField(types.CollectionFieldAttributes, f.name, f.typ, f.desc, store.WithoutFlush()); err != nil {
			return err
		}
	}
	slog.Debug("created attributes collection", "collection", types.CollectionFieldAttributes)
	return nil
}

// AddCollection creates a collection and the attributes record of its
// primary key
func (s *Session) AddCollection(name, primaryKey string, attrs types.FieldAttributes) error {
	if err := s.EnsureAttributesCollection(); err != nil {
		return err
	}
	if err := s.Session.AddCollection(name, primaryKey); err != nil {
		return err
	}
	return s.putRecord(name, primaryKey, attrs)
}

// AddField creates a field and its attributes record. opts are passed to
// the store unchanged.
func (s *Session) AddField(collection, name string, fieldType types.FieldType, description string, attrs types.FieldAttributes, opts ...store.FieldOption) error {
	if err := s.EnsureAttributesCollection(); err != nil {
		return err
	}
	if err := s.Session.AddField(collection, name, fieldType, description, opts...); err != nil {
		return err
	}
	return s.putRecord(collection, name, attrs)
}

// AddFields adds fields in order with deferred flushing. It stops at the
// first failure; fields added before it stay added.
func (s *Session) AddFields(fields []FieldSpec) error {
	for i, f := range fields {
		if err := s.AddField(f.Collection, f.Name, f.Type, f.Description, f.Attributes, store.WithoutFlush()); err != nil {
			return fmt.Errorf("field %d (%s.%s): %w", i, f.Collection, f.Name, err)
		}
	}
	return nil
}

// RemoveField removes fields from the store, then their attributes records.
// The store decides whether the collection and fields exist.
func (s *Session) RemoveField(collection string, names ...string) error {
	if err := s.Session.RemoveField(collection, names...); err != nil {
		return err
	}
	if !s.HasCollection(types.CollectionFieldAttributes) {
		return nil
	}
	for _, name := range names {
		key := types.AttributesKey(collection, name)
		if s.GetDocument(types.CollectionFieldAttributes, key) == nil {
			continue
		}
		if err := s.RemoveDocument(types.CollectionFieldAttributes, key); err != nil {
			return err
		}
	}
	return nil
}

// GetField returns the field with its attributes, nil if the field does
// not exist. Attributes stays nil when no record exists.
func (s *Session) GetField(collection, name string) *types.Field {
	f := s.Session.GetField(collection, name)
	if f == nil {
		return nil
	}
	f.Attributes = s.lookup(collection, name)
	return f
}

// GetFields returns every field of a collection with its attributes
func (s *Session) GetFields(collection string) []types.Field {
	fields := s.Session.GetFields(collection)
	for i := range fields {
		fields[i].Attributes = s.lookup(collection, fields[i].Name)
	}
	return fields
}

// GetShownTags returns the names of visible fields across all collections,
// in record order and without duplicates
func (s *Session) GetShownTags() ([]string, error) {
	if !s.HasCollection(types.CollectionFieldAttributes) {
		return []string{}, nil
	}
	docs, err := s.FilterDocuments(types.CollectionFieldAttributes, "{"+KeyVisibility+"} == true")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(docs))
	shown := make([]string, 0, len(docs))
	for _, doc := range docs {
		_, field, ok := types.SplitAttributesKey(doc.Key)
		if !ok || seen[field] {
			continue
		}
		seen[field] = true
		shown = append(shown, field)
	}
	return shown, nil
}

// SetShownTags makes exactly the named fields visible, in every collection,
// and hides all others
func (s *Session) SetShownTags(names []string) error {
	if !s.HasCollection(types.CollectionFieldAttributes) {
		return nil
	}
	shown := make(map[string]bool, len(names))
	for _, name := range names {
		shown[name] = true
	}
	keys, err := s.DocumentKeys(types.CollectionFieldAttributes)
	if err != nil {
		return err
	}
	for _, key := range keys {
		_, field, _ := types.SplitAttributesKey(key)
		if err := s.SetValue(types.CollectionFieldAttributes, key, KeyVisibility, shown[field]); err != nil {
			return err
		}
	}
	return nil
}

// SetAttributes replaces the attributes record of an existing field
func (s *Session) SetAttributes(collection, name string, attrs types.FieldAttributes) error {
	if s.Session.GetField(collection, name) == nil {
		if !s.HasCollection(collection) {
			return fmt.Errorf("%w: %q", types.ErrCollectionNotFound, collection)
		}
		return fmt.Errorf("%w: %q in collection %q", types.ErrFieldNotFound, name, collection)
	}
	if err := s.EnsureAttributesCollection(); err != nil {
		return err
	}
	return s.putRecord(collection, name, attrs)
}

// putRecord writes the attributes record of a field. An existing record is
// updated in place so that it keeps its position, which orders the shown tags.
func (s *Session) putRecord(collection, name string, attrs types.FieldAttributes) error {
	key := types.AttributesKey(collection, name)
	record := toRecord(key, attrs)
	if s.GetDocument(types.CollectionFieldAttributes, key) == nil {
		return s.AddDocument(types.CollectionFieldAttributes, record)
	}
	for _, f := range recordFields {
		if err := s.SetValue(types.CollectionFieldAttributes, key, f.name, record[f.name]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) lookup(collection, name string) *types.FieldAttributes {
	doc := s.GetDocument(types.CollectionFieldAttributes, types.AttributesKey(collection, name))
	if doc == nil {
		return nil
	}
	attrs := fromRecord(doc)
	return &attrs
}

func toRecord(key string, attrs types.FieldAttributes) map[string]interface{} {
	record := map[string]interface{}{
		KeyIndex:      key,
		KeyVisibility: attrs.Visibility,
		KeyOrigin:     attrs.Origin.String(),
	}
	if attrs.Unit != types.UnitNone {
		record[KeyUnit] = attrs.Unit.String()
	}
	if attrs.DefaultValue != nil {
		record[KeyDefaultValue] = *attrs.DefaultValue
	}
	return record
}

// fromRecord reads an attributes record. Unreadable origins and units are
// logged and reported as user and none.
func fromRecord(doc *types.Document) types.FieldAttributes {
	var attrs types.FieldAttributes
	attrs.Visibility, _ = doc.Get(KeyVisibility).(bool)

	origin, _ := doc.Get(KeyOrigin).(string)
	if o, err := types.ParseOrigin(origin); err == nil {
		attrs.Origin = o
	} else {
		slog.Debug("unreadable origin in attributes record", "index", doc.Key, "error", err)
		attrs.Origin = types.OriginUser
	}

	if unit, ok := doc.Get(KeyUnit).(string); ok {
		if u, err := types.ParseUnit(unit); err == nil {
			attrs.Unit = u
		} else {
			slog.Debug("unreadable unit in attributes record", "index", doc.Key, "error", err)
		}
	}
	if def, ok := doc.Get(KeyDefaultValue).(string); ok {
		attrs.DefaultValue = &def
	}
	return attrs
}
