package store

import (
	"fmt"

	"github.com/arthur-debert/nanotags/internal/validation"
	"github.com/arthur-debert/nanotags/nanotags/query"
	"github.com/arthur-debert/nanotags/nanotags/storage"
	"github.com/arthur-debert/nanotags/types"
)

// Session is the view of the database available inside Read and Write.
// Lookups of missing collections, fields or documents return nil; every
// other failure is an error wrapping one of the types.Err* sentinels.
type Session interface {
	ReadOnly() bool

	HasCollection(name string) bool
	AddCollection(name, primaryKey string) error
	RemoveCollection(name string) error
	GetCollection(name string) *types.Collection
	CollectionNames() []string

	AddField(collection, name string, fieldType types.FieldType, description string, opts ...FieldOption) error
	RemoveField(collection string, names ...string) error
	GetField(collection, name string) *types.Field
	GetFields(collection string) []types.Field

	AddDocument(collection string, values map[string]interface{}) error
	RemoveDocument(collection, key string) error
	GetDocument(collection, key string) *types.Document
	GetDocuments(collection string) ([]types.Document, error)
	DocumentKeys(collection string) ([]string, error)
	FilterDocuments(collection, expr string) ([]types.Document, error)
	SetValue(collection, key, field string, value interface{}) error
}

// session implements Session over one StoreData. Lookup tables are built
// lazily per collection and dropped whenever the underlying slices change.
type session struct {
	data     *storage.StoreData
	readOnly bool
	changed  bool

	collections map[string]int
	fields      map[string]map[string]int
	docs        map[string]map[string]int
}

func newSession(data *storage.StoreData, readOnly bool) *session {
	return &session{
		data:     data,
		readOnly: readOnly,
		fields:   make(map[string]map[string]int),
		docs:     make(map[string]map[string]int),
	}
}

func (s *session) ReadOnly() bool { return s.readOnly }

func (s *session) writable() error {
	if s.readOnly {
		return types.ErrReadOnly
	}
	return nil
}

func (s *session) collection(name string) *storage.CollectionData {
	if s.collections == nil {
		s.collections = make(map[string]int, len(s.data.Collections))
		for i, c := range s.data.Collections {
			s.collections[c.Name] = i
		}
	}
	i, ok := s.collections[name]
	if !ok {
		return nil
	}
	return &s.data.Collections[i]
}

func (s *session) mustCollection(name string) (*storage.CollectionData, error) {
	c := s.collection(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %q", types.ErrCollectionNotFound, name)
	}
	return c, nil
}

func (s *session) fieldIndex(c *storage.CollectionData) map[string]int {
	idx, ok := s.fields[c.Name]
	if !ok {
		idx = make(map[string]int, len(c.Fields))
		for i, f := range c.Fields {
			idx[f.Name] = i
		}
		s.fields[c.Name] = idx
	}
	return idx
}

func (s *session) docIndex(c *storage.CollectionData) map[string]int {
	idx, ok := s.docs[c.Name]
	if !ok {
		idx = make(map[string]int, len(c.Documents))
		for i, doc := range c.Documents {
			if key, ok := doc[c.PrimaryKey].(string); ok {
				idx[key] = i
			}
		}
		s.docs[c.Name] = idx
	}
	return idx
}

func (s *session) fieldData(c *storage.CollectionData, name string) (storage.FieldData, bool) {
	i, ok := s.fieldIndex(c)[name]
	if !ok {
		return storage.FieldData{}, false
	}
	return c.Fields[i], true
}

func (s *session) HasCollection(name string) bool {
	return s.collection(name) != nil
}

func (s *session) AddCollection(name, primaryKey string) error {
	if err := s.writable(); err != nil {
		return err
	}
	if err := types.ValidateName("collection", name); err != nil {
		return err
	}
	if err := types.ValidateName("field", primaryKey); err != nil {
		return err
	}
	if s.HasCollection(name) {
		return fmt.Errorf("%w: %q", types.ErrCollectionExists, name)
	}

	s.data.Collections = append(s.data.Collections, storage.CollectionData{
		Name:       name,
		PrimaryKey: primaryKey,
		Fields: []storage.FieldData{
			{Name: primaryKey, Type: string(types.FieldTypeString), Description: "Primary key", Indexed: true},
		},
		Documents: []map[string]interface{}{},
	})
	s.collections = nil
	s.changed = true
	return nil
}

func (s *session) RemoveCollection(name string) error {
	if err := s.writable(); err != nil {
		return err
	}
	if !s.HasCollection(name) {
		return fmt.Errorf("%w: %q", types.ErrCollectionNotFound, name)
	}
	kept := s.data.Collections[:0]
	for _, c := range s.data.Collections {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	s.data.Collections = kept
	s.collections = nil
	delete(s.fields, name)
	delete(s.docs, name)
	s.changed = true
	return nil
}

func (s *session) GetCollection(name string) *types.Collection {
	c := s.collection(name)
	if c == nil {
		return nil
	}
	return &types.Collection{Name: c.Name, PrimaryKey: c.PrimaryKey}
}

// CollectionNames returns the collection names in creation order
func (s *session) CollectionNames() []string {
	names := make([]string, len(s.data.Collections))
	for i, c := range s.data.Collections {
		names[i] = c.Name
	}
	return names
}

func (s *session) AddField(collection, name string, fieldType types.FieldType, description string, opts ...FieldOption) error {
	if err := s.writable(); err != nil {
		return err
	}
	o := newFieldOptions(opts)
	c, err := s.mustCollection(collection)
	if err != nil {
		return err
	}
	if err := types.ValidateName("field", name); err != nil {
		return err
	}
	if !fieldType.Valid() {
		return fmt.Errorf("%w: unknown field type %q", types.ErrInvalidValue, fieldType)
	}
	if _, exists := s.fieldData(c, name); exists {
		return fmt.Errorf("%w: %q in collection %q", types.ErrFieldExists, name, collection)
	}

	c.Fields = append(c.Fields, storage.FieldData{
		Name:        name,
		Type:        string(fieldType),
		Description: description,
		Indexed:     o.index,
	})
	if o.flush {
		s.fieldIndex(c)[name] = len(c.Fields) - 1
	} else {
		delete(s.fields, collection)
	}
	s.changed = true
	return nil
}

// RemoveField removes fields and their values from every document. Nothing
// is removed unless all names exist. The primary key cannot be removed.
func (s *session) RemoveField(collection string, names ...string) error {
	if err := s.writable(); err != nil {
		return err
	}
	c, err := s.mustCollection(collection)
	if err != nil {
		return err
	}
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := s.fieldData(c, name); !ok {
			return fmt.Errorf("%w: %q in collection %q", types.ErrFieldNotFound, name, collection)
		}
		if name == c.PrimaryKey {
			return fmt.Errorf("%w: cannot remove primary key %q", types.ErrInvalidName, name)
		}
		drop[name] = true
	}

	kept := c.Fields[:0]
	for _, f := range c.Fields {
		if !drop[f.Name] {
			kept = append(kept, f)
		}
	}
	c.Fields = kept
	for _, doc := range c.Documents {
		for name := range drop {
			delete(doc, name)
		}
	}
	delete(s.fields, collection)
	s.changed = true
	return nil
}

func (s *session) GetField(collection, name string) *types.Field {
	c := s.collection(collection)
	if c == nil {
		return nil
	}
	f, ok := s.fieldData(c, name)
	if !ok {
		return nil
	}
	return toField(collection, f)
}

// GetFields returns the fields of a collection in declaration order, nil for
// an unknown collection
func (s *session) GetFields(collection string) []types.Field {
	c := s.collection(collection)
	if c == nil {
		return nil
	}
	fields := make([]types.Field, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = *toField(collection, f)
	}
	return fields
}

func toField(collection string, f storage.FieldData) *types.Field {
	return &types.Field{
		Collection:  collection,
		Name:        f.Name,
		Type:        types.FieldType(f.Type),
		Description: f.Description,
		Indexed:     f.Indexed,
	}
}

// AddDocument inserts a document. values must hold a non-empty primary key;
// every other entry must name a field of the collection and is converted to
// the field's type.
func (s *session) AddDocument(collection string, values map[string]interface{}) error {
	if err := s.writable(); err != nil {
		return err
	}
	c, err := s.mustCollection(collection)
	if err != nil {
		return err
	}

	doc := make(map[string]interface{}, len(values))
	for name, raw := range values {
		f, ok := s.fieldData(c, name)
		if !ok {
			return fmt.Errorf("%w: %q in collection %q", types.ErrFieldNotFound, name, collection)
		}
		v, err := validation.CoerceValue(raw, types.FieldType(f.Type), name)
		if err != nil {
			return err
		}
		if v != nil {
			doc[name] = v
		}
	}

	key, _ := doc[c.PrimaryKey].(string)
	if key == "" {
		return fmt.Errorf("%w: document has no %q", types.ErrInvalidValue, c.PrimaryKey)
	}
	idx := s.docIndex(c)
	if _, exists := idx[key]; exists {
		return fmt.Errorf("%w: %q in collection %q", types.ErrDocumentExists, key, collection)
	}

	c.Documents = append(c.Documents, doc)
	idx[key] = len(c.Documents) - 1
	s.changed = true
	return nil
}

func (s *session) RemoveDocument(collection, key string) error {
	if err := s.writable(); err != nil {
		return err
	}
	c, err := s.mustCollection(collection)
	if err != nil {
		return err
	}
	i, ok := s.docIndex(c)[key]
	if !ok {
		return fmt.Errorf("%w: %q in collection %q", types.ErrDocumentNotFound, key, collection)
	}
	c.Documents = append(c.Documents[:i], c.Documents[i+1:]...)
	delete(s.docs, collection)
	s.changed = true
	return nil
}

// GetDocument returns a copy of a document, nil when absent
func (s *session) GetDocument(collection, key string) *types.Document {
	c := s.collection(collection)
	if c == nil {
		return nil
	}
	i, ok := s.docIndex(c)[key]
	if !ok {
		return nil
	}
	doc := toDocument(c, c.Documents[i])
	return &doc
}

// GetDocuments returns copies of every document in insertion order
func (s *session) GetDocuments(collection string) ([]types.Document, error) {
	c, err := s.mustCollection(collection)
	if err != nil {
		return nil, err
	}
	docs := make([]types.Document, len(c.Documents))
	for i, raw := range c.Documents {
		docs[i] = toDocument(c, raw)
	}
	return docs, nil
}

// DocumentKeys returns the primary keys in insertion order
func (s *session) DocumentKeys(collection string) ([]string, error) {
	c, err := s.mustCollection(collection)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(c.Documents))
	for _, doc := range c.Documents {
		if key, ok := doc[c.PrimaryKey].(string); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func toDocument(c *storage.CollectionData, raw map[string]interface{}) types.Document {
	values := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		values[k] = storage.CloneValue(v)
	}
	key, _ := raw[c.PrimaryKey].(string)
	return types.Document{Key: key, Values: values}
}

// FilterDocuments returns the documents for which expr evaluates to true, in
// insertion order. Fields the collection does not declare evaluate as null.
// A blank expression matches every document.
func (s *session) FilterDocuments(collection, expr string) ([]types.Document, error) {
	c, err := s.mustCollection(collection)
	if err != nil {
		return nil, err
	}
	parsed, err := query.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter on %q: %w", collection, err)
	}

	fieldTypes := make(map[string]types.FieldType, len(c.Fields))
	for _, f := range c.Fields {
		fieldTypes[f.Name] = types.FieldType(f.Type)
	}

	var result []types.Document
	for _, raw := range c.Documents {
		resolver := query.ResolverFunc(func(field string) query.Value {
			return query.FromField(raw[field], fieldTypes[field])
		})
		if query.Matches(parsed, resolver) {
			result = append(result, toDocument(c, raw))
		}
	}
	return result, nil
}

// SetValue sets one field of a document; a nil value clears it
func (s *session) SetValue(collection, key, field string, value interface{}) error {
	if err := s.writable(); err != nil {
		return err
	}
	c, err := s.mustCollection(collection)
	if err != nil {
		return err
	}
	f, ok := s.fieldData(c, field)
	if !ok {
		return fmt.Errorf("%w: %q in collection %q", types.ErrFieldNotFound, field, collection)
	}
	if field == c.PrimaryKey {
		return fmt.Errorf("%w: cannot change primary key %q", types.ErrInvalidValue, field)
	}
	i, ok := s.docIndex(c)[key]
	if !ok {
		return fmt.Errorf("%w: %q in collection %q", types.ErrDocumentNotFound, key, collection)
	}

	v, err := validation.CoerceValue(value, types.FieldType(f.Type), field)
	if err != nil {
		return err
	}
	if v == nil {
		delete(c.Documents[i], field)
	} else {
		c.Documents[i][field] = v
	}
	s.changed = true
	return nil
}
