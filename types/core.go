package types

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved collection and tag names shared by the store, the attribute
// layer and the filter engine.
const (
	// CollectionCurrent holds the live, query-affected scans
	CollectionCurrent = "current"
	// CollectionInitial holds scan values as they were first imported
	CollectionInitial = "initial"
	// CollectionFieldAttributes holds metadata about fields of other collections
	CollectionFieldAttributes = "field_attributes"

	// TagFileName is the primary key of the scan collections
	TagFileName = "FileName"
	// TagHistory holds the processing history of a scan; it is never searched
	TagHistory = "History"

	// AttributesSeparator joins collection and field names into an attributes key
	AttributesSeparator = "|"
)

// Errors returned by the store. Callers match them with errors.Is; the
// returned errors wrap them with the offending names.
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrFieldNotFound      = errors.New("field not found")
	ErrFieldExists        = errors.New("field already exists")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentExists     = errors.New("document already exists")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidValue       = errors.New("invalid value")
	ErrReadOnly           = errors.New("session is read-only")
)

// Document is one row of a collection. Values holds one entry per field,
// including the primary key; a missing entry or a nil value is null.
type Document struct {
	Key    string
	Values map[string]interface{}
}

// Get returns the value of a field, nil when null
func (d *Document) Get(field string) interface{} {
	if d == nil || d.Values == nil {
		return nil
	}
	return d.Values[field]
}

// Collection describes a named set of documents
type Collection struct {
	Name       string
	PrimaryKey string
}

// Field describes a field of a collection. Attributes is nil when no
// attributes record exists for it.
type Field struct {
	Collection  string
	Name        string
	Type        FieldType
	Description string
	Indexed     bool
	Attributes  *FieldAttributes
}

// AttributesKey builds the key of the attributes record of a field
func AttributesKey(collection, field string) string {
	return collection + AttributesSeparator + field
}

// SplitAttributesKey is the inverse of AttributesKey
func SplitAttributesKey(key string) (collection, field string, ok bool) {
	return strings.Cut(key, AttributesSeparator)
}

// ValidateName checks a collection or field name. Braces delimit field
// references in filter expressions and the separator joins attributes keys,
// so neither may appear in a name.
func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s name cannot be empty", ErrInvalidName, kind)
	}
	if strings.ContainsAny(name, "{}"+AttributesSeparator) {
		return fmt.Errorf("%w: %s name %q cannot contain '{', '}' or %q", ErrInvalidName, kind, name, AttributesSeparator)
	}
	return nil
}
