// Package filter compiles the two kinds of scan searches into filter
// expressions and evaluates them.
//
// A rapid search looks for a text in every searchable tag. An advanced
// search is a list of rows, each applying a condition to one or more tags,
// optionally negated and joined to the previous row by AND or OR. A Filter
// bundles both; GenerateFilter runs the rapid search first and the advanced
// search over its result.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFilter reports an advanced search whose rows are inconsistent
// or use unknown tokens
var ErrMalformedFilter = errors.New("malformed filter")

// Keys of the saved filter format
const (
	KeyName       = "name"
	KeySearchBar  = "search_bar_text"
	KeyFields     = "fields"
	KeyConditions = "conditions"
	KeyValues     = "values"
	KeyLinks      = "links"
	KeyNots       = "nots"
)

// Filter is a named search. Nots, Values, Fields and Conditions hold one
// entry per advanced row; Links has one entry fewer. An empty Fields entry
// targets every visible tag.
type Filter struct {
	Name       string
	Nots       []string
	Values     []interface{}
	Fields     [][]string
	Links      []string
	Conditions []string
	SearchBar  string
}

// New returns a filter with the given rows
func New(name string, nots []string, values []interface{}, fields [][]string, links, conditions []string, searchBar string) *Filter {
	return &Filter{
		Name:       name,
		Nots:       nots,
		Values:     values,
		Fields:     fields,
		Links:      links,
		Conditions: conditions,
		SearchBar:  searchBar,
	}
}

// Rows returns the number of advanced search rows
func (f *Filter) Rows() int { return len(f.Conditions) }

// Validate checks the shape of the advanced rows and their tokens
func (f *Filter) Validate() error {
	if err := checkShape(f.Links, f.Fields, f.Conditions, f.Values, f.Nots); err != nil {
		return err
	}
	for i, c := range f.Conditions {
		if _, err := ParseCondition(c); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// JSONFormat returns the saved form of the filter. No validation is done.
func (f *Filter) JSONFormat() map[string]interface{} {
	return map[string]interface{}{
		KeyName:       f.Name,
		KeySearchBar:  f.SearchBar,
		KeyFields:     f.Fields,
		KeyConditions: f.Conditions,
		KeyValues:     f.Values,
		KeyLinks:      f.Links,
		KeyNots:       f.Nots,
	}
}

// FromJSONFormat rebuilds a filter from its saved form. It accepts both
// the map produced by JSONFormat and the same map decoded from JSON.
// Missing keys leave the matching field empty.
func FromJSONFormat(m map[string]interface{}) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.Name, err = stringAt(m, KeyName); err != nil {
		return nil, err
	}
	if f.SearchBar, err = stringAt(m, KeySearchBar); err != nil {
		return nil, err
	}
	if f.Conditions, err = stringsAt(m, KeyConditions); err != nil {
		return nil, err
	}
	if f.Links, err = stringsAt(m, KeyLinks); err != nil {
		return nil, err
	}
	if f.Nots, err = stringsAt(m, KeyNots); err != nil {
		return nil, err
	}

	switch fields := m[KeyFields].(type) {
	case nil:
	case [][]string:
		f.Fields = fields
	case []interface{}:
		f.Fields = make([][]string, len(fields))
		for i, row := range fields {
			names, err := toStrings(row)
			if err != nil {
				return nil, fmt.Errorf("%q row %d: %w", KeyFields, i, err)
			}
			f.Fields[i] = names
		}
	default:
		return nil, fmt.Errorf("%q: expected a list of lists, got %T", KeyFields, fields)
	}

	switch values := m[KeyValues].(type) {
	case nil:
	case []interface{}:
		f.Values = values
	default:
		return nil, fmt.Errorf("%q: expected a list, got %T", KeyValues, values)
	}
	return f, nil
}

// MarshalJSON encodes the saved form
func (f *Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.JSONFormat())
}

// UnmarshalJSON decodes the saved form
func (f *Filter) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromJSONFormat(m)
	if err != nil {
		return err
	}
	*f = *parsed
	return nil
}

func stringAt(m map[string]interface{}, key string) (string, error) {
	switch v := m[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%q: expected a string, got %T", key, v)
	}
}

func stringsAt(m map[string]interface{}, key string) ([]string, error) {
	if m[key] == nil {
		return nil, nil
	}
	out, err := toStrings(m[key])
	if err != nil {
		return nil, fmt.Errorf("%q: %w", key, err)
	}
	return out, nil
}

func toStrings(x interface{}) ([]string, error) {
	switch v := x.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d: expected a string, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", x)
	}
}
