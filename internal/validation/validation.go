package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/nanotags/types"
)

// Canonical layouts of temporal values, both in the stored documents and in
// filter expressions.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
	TimeLayout     = "15:04:05"
)

// CoerceValue converts a value to the stored representation of a field type:
// string, int64, float64, bool, canonical date/time strings, or a
// []interface{} of those for list types. nil stays nil.
func CoerceValue(value interface{}, t types.FieldType, fieldName string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	// Dereference pointers
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		return CoerceValue(v.Elem().Interface(), t, fieldName)
	}

	if t.IsList() {
		if s, ok := value.(string); ok {
			var decoded []interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return nil, invalid(fieldName, t, value)
			}
			value = decoded
			v = reflect.ValueOf(value)
		}
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, invalid(fieldName, t, value)
		}
		elem := t.Element()
		list := make([]interface{}, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := CoerceValue(v.Index(i).Interface(), elem, fieldName)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	}

	switch t {
	case types.FieldTypeString:
		switch x := value.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return fmt.Sprintf("%v", value), nil
	case types.FieldTypeInteger:
		return coerceInt(value, fieldName, t)
	case types.FieldTypeFloat:
		return coerceFloat(value, fieldName, t)
	case types.FieldTypeBoolean:
		switch x := value.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, invalid(fieldName, t, value)
			}
			return b, nil
		}
		return nil, invalid(fieldName, t, value)
	case types.FieldTypeDate:
		return coerceTemporal(value, fieldName, t, DateLayout)
	case types.FieldTypeDateTime:
		return coerceTemporal(value, fieldName, t, DateTimeLayout)
	case types.FieldTypeTime:
		return coerceTemporal(value, fieldName, t, TimeLayout)
	case types.FieldTypeJSON:
		if _, err := json.Marshal(value); err != nil {
			return nil, invalid(fieldName, t, value)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("%w: field %q has unknown type %q", types.ErrInvalidValue, fieldName, t)
	}
}

func coerceInt(value interface{}, fieldName string, t types.FieldType) (interface{}, error) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		// JSON decoding yields float64 for every number
		f := v.Float()
		if f != math.Trunc(f) {
			return nil, invalid(fieldName, t, value)
		}
		return int64(f), nil
	case reflect.String:
		i, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return nil, invalid(fieldName, t, value)
		}
		return i, nil
	}
	return nil, invalid(fieldName, t, value)
}

func coerceFloat(value interface{}, fieldName string, t types.FieldType) (interface{}, error) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return nil, invalid(fieldName, t, value)
		}
		return f, nil
	}
	return nil, invalid(fieldName, t, value)
}

func coerceTemporal(value interface{}, fieldName string, t types.FieldType, layout string) (interface{}, error) {
	switch x := value.(type) {
	case time.Time:
		return x.Format(layout), nil
	case string:
		parsed, err := ParseTemporal(x, t)
		if err != nil {
			return nil, invalid(fieldName, t, value)
		}
		return parsed.Format(layout), nil
	}
	return nil, invalid(fieldName, t, value)
}

// ParseTemporal parses a date, datetime or time string of the given type.
// Datetimes also accept RFC 3339 and a space separator.
func ParseTemporal(s string, t types.FieldType) (time.Time, error) {
	s = strings.TrimSpace(s)
	var layouts []string
	switch t.Element() {
	case types.FieldTypeDate:
		layouts = []string{DateLayout}
	case types.FieldTypeDateTime:
		layouts = []string{DateTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", DateLayout}
	case types.FieldTypeTime:
		layouts = []string{TimeLayout, "15:04"}
	default:
		return time.Time{}, fmt.Errorf("%w: %q is not a temporal type", types.ErrInvalidValue, t)
	}
	var lastErr error
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func invalid(fieldName string, t types.FieldType, value interface{}) error {
	return fmt.Errorf("%w: field %q of type %s cannot hold %v (%T)", types.ErrInvalidValue, fieldName, t, value, value)
}
