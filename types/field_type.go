package types

import (
	"fmt"
	"strings"
)

// FieldType is the declared value type of a field.
// Scalar types have list variants named "list_<scalar>".
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeInteger  FieldType = "int"
	FieldTypeFloat    FieldType = "float"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDate     FieldType = "date"
	FieldTypeDateTime FieldType = "datetime"
	FieldTypeTime     FieldType = "time"
	FieldTypeJSON     FieldType = "json"

	FieldTypeListString   FieldType = "list_string"
	FieldTypeListInteger  FieldType = "list_int"
	FieldTypeListFloat    FieldType = "list_float"
	FieldTypeListBoolean  FieldType = "list_boolean"
	FieldTypeListDate     FieldType = "list_date"
	FieldTypeListDateTime FieldType = "list_datetime"
	FieldTypeListTime     FieldType = "list_time"
	FieldTypeListJSON     FieldType = "list_json"
)

const listPrefix = "list_"

var scalarTypes = []FieldType{
	FieldTypeString,
	FieldTypeInteger,
	FieldTypeFloat,
	FieldTypeBoolean,
	FieldTypeDate,
	FieldTypeDateTime,
	FieldTypeTime,
	FieldTypeJSON,
}

// FieldTypes returns every known field type, scalars first.
func FieldTypes() []FieldType {
	all := make([]FieldType, 0, 2*len(scalarTypes))
	all = append(all, scalarTypes...)
	for _, t := range scalarTypes {
		all = append(all, ListOf(t))
	}
	return all
}

// ParseFieldType validates a field type name.
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown field type %q", ErrInvalidValue, s)
}

// Valid reports whether t belongs to the taxonomy.
func (t FieldType) Valid() bool {
	scalar := t.Element()
	for _, s := range scalarTypes {
		if s == scalar {
			return true
		}
	}
	return false
}

// IsList reports whether t is a list-of variant.
func (t FieldType) IsList() bool {
	return strings.HasPrefix(string(t), listPrefix)
}

// Element returns the scalar type of a list type, or t itself.
func (t FieldType) Element() FieldType {
	return FieldType(strings.TrimPrefix(string(t), listPrefix))
}

// IsNumeric reports whether values of t (or its elements) are numbers.
func (t FieldType) IsNumeric() bool {
	e := t.Element()
	return e == FieldTypeInteger || e == FieldTypeFloat
}

// IsTemporal reports whether values of t (or its elements) are dates or times.
func (t FieldType) IsTemporal() bool {
	e := t.Element()
	return e == FieldTypeDate || e == FieldTypeDateTime || e == FieldTypeTime
}

// ListOf returns the list variant of a scalar type.
func ListOf(t FieldType) FieldType {
	if t.IsList() {
		return t
	}
	return FieldType(listPrefix + string(t))
}

func (t FieldType) String() string {
	return string(t)
}
