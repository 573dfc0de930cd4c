package query

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/nanotags/internal/validation"
	"github.com/arthur-debert/nanotags/types"
)

// Kind is the dynamic type of a Value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
	KindDateTime
	KindTime
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a literal of the query language or a document value being
// evaluated. Only the member matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
	List  []Value
}

// Null returns the null value
func Null() Value { return Value{Kind: KindNull} }

// String returns a string value
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int returns an integer value
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float returns a floating point value
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Date returns a date value; the time of day is dropped when rendered
func Date(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// DateTime returns a datetime value
func DateTime(t time.Time) Value { return Value{Kind: KindDateTime, Time: t} }

// Time returns a time-of-day value
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// List returns a list value
func List(items ...Value) Value { return Value{Kind: KindList, List: items} }

// Strings returns a list of string values
func Strings(items []string) Value {
	list := make([]Value, len(items))
	for i, s := range items {
		list[i] = String(s)
	}
	return List(list...)
}

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) isNumber() bool { return v.Kind == KindInt || v.Kind == KindFloat }

func (v Value) isTemporal() bool {
	return v.Kind == KindDate || v.Kind == KindDateTime || v.Kind == KindTime
}

func (v Value) asFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Literal renders v in the query language
func (v Value) Literal() string {
	switch v.Kind {
	case KindString:
		return quote(v.Str)
	case KindList:
		items := make([]string, len(v.List))
		for i, item := range v.List {
			items[i] = item.Literal()
		}
		return "[" + strings.Join(items, ",") + "]"
	default:
		return v.Text()
	}
}

// Text is the canonical string form of v, used by LIKE matching
func (v Value) Text() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		return v.Time.Format(validation.DateLayout)
	case KindDateTime:
		return v.Time.Format(validation.DateTimeLayout)
	case KindTime:
		return v.Time.Format(validation.TimeLayout)
	case KindList:
		items := make([]string, len(v.List))
		for i, item := range v.List {
			items[i] = item.Text()
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return ""
	}
}

func (v Value) String() string { return v.Literal() }

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// FromGo converts a Go value to a Value. time.Time becomes a datetime;
// slices become lists.
func FromGo(x interface{}) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case time.Time:
		return DateTime(v), nil
	case []string:
		return Strings(v), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return Null(), err
			}
			items[i] = item
		}
		return List(items...), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromGo(rv.Elem().Interface())
	}
	return Null(), fmt.Errorf("%w: unsupported value %v (%T)", types.ErrInvalidValue, x, x)
}

// FromField converts a stored document value to a Value using the field's
// declared type, so temporal strings become dates and times.
func FromField(raw interface{}, t types.FieldType) Value {
	if raw == nil {
		return Null()
	}
	if t.IsList() {
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return FromField(raw, t.Element())
		}
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromField(rv.Index(i).Interface(), t.Element())
		}
		return List(items...)
	}
	if t.IsTemporal() {
		if s, ok := raw.(string); ok {
			if parsed, err := validation.ParseTemporal(s, t); err == nil {
				return temporal(parsed, t)
			}
		}
		if tm, ok := raw.(time.Time); ok {
			return temporal(tm, t)
		}
	}
	v, err := FromGo(raw)
	if err != nil {
		return String(fmt.Sprintf("%v", raw))
	}
	return v
}

func temporal(t time.Time, ft types.FieldType) Value {
	switch ft.Element() {
	case types.FieldTypeDate:
		return Date(t)
	case types.FieldTypeTime:
		return Time(t)
	default:
		return DateTime(t)
	}
}

// CoerceTo converts string values (and lists of them) to the scalar kind of
// a field type. Values that are already typed, or that do not parse, are
// returned unchanged with an error for the latter.
func (v Value) CoerceTo(t types.FieldType) (Value, error) {
	if v.Kind == KindList {
		items := make([]Value, len(v.List))
		for i, item := range v.List {
			c, err := item.CoerceTo(t)
			if err != nil {
				return v, err
			}
			items[i] = c
		}
		return List(items...), nil
	}
	if v.Kind != KindString {
		return v, nil
	}
	s := strings.TrimSpace(v.Str)
	switch t.Element() {
	case types.FieldTypeInteger:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), nil
		}
	case types.FieldTypeFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), nil
		}
	case types.FieldTypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return Bool(b), nil
		}
	case types.FieldTypeDate, types.FieldTypeDateTime, types.FieldTypeTime:
		if parsed, err := validation.ParseTemporal(s, t); err == nil {
			return temporal(parsed, t), nil
		}
	default:
		return v, nil
	}
	return v, fmt.Errorf("%w: %q is not a valid %s", types.ErrInvalidValue, v.Str, t.Element())
}

// compareValues orders two non-null scalars. ok is false when they are not
// comparable.
func compareValues(a, b Value) (c int, ok bool) {
	switch {
	case a.isNumber() && b.isNumber():
		if a.Kind == KindInt && b.Kind == KindInt {
			return cmpInt(a.Int, b.Int), true
		}
		return cmpFloat(a.asFloat(), b.asFloat())
	case a.isNumber() && b.Kind == KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(b.Str), 64)
		if err != nil {
			return 0, false
		}
		return cmpFloat(a.asFloat(), f)
	case a.Kind == KindString && b.isNumber():
		c, ok := compareValues(b, a)
		return -c, ok
	case a.isTemporal() && b.isTemporal():
		return cmpTime(a, b), true
	case a.isTemporal() && b.Kind == KindString:
		parsed, err := validation.ParseTemporal(b.Str, temporalType(a.Kind))
		if err != nil {
			return 0, false
		}
		return cmpTime(a, temporal(parsed, temporalType(a.Kind))), true
	case a.Kind == KindString && b.isTemporal():
		c, ok := compareValues(b, a)
		return -c, ok
	case a.Kind == KindBool && b.Kind == KindBool:
		if a.Bool == b.Bool {
			return 0, true
		}
		if !a.Bool {
			return -1, true
		}
		return 1, true
	case a.Kind == KindBool && b.Kind == KindString:
		bb, err := strconv.ParseBool(strings.TrimSpace(b.Str))
		if err != nil {
			return 0, false
		}
		return compareValues(a, Bool(bb))
	case a.Kind == KindString && b.Kind == KindBool:
		c, ok := compareValues(b, a)
		return -c, ok
	case a.Kind == KindString && b.Kind == KindString:
		return strings.Compare(a.Str, b.Str), true
	}
	return 0, false
}

func temporalType(k Kind) types.FieldType {
	switch k {
	case KindDate:
		return types.FieldTypeDate
	case KindTime:
		return types.FieldTypeTime
	default:
		return types.FieldTypeDateTime
	}
}

// cmpTime compares dates by day, times by time of day and datetimes fully
func cmpTime(a, b Value) int {
	if a.Kind == KindTime || b.Kind == KindTime {
		return cmpInt(int64(timeOfDay(a.Time)), int64(timeOfDay(b.Time)))
	}
	if a.Kind == KindDate || b.Kind == KindDate {
		ay, am, ad := a.Time.Date()
		by, bm, bd := b.Time.Date()
		return cmpInt(int64(ay*10000+int(am)*100+ad), int64(by*10000+int(bm)*100+bd))
	}
	return a.Time.Compare(b.Time)
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) (int, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, false
	}
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}
