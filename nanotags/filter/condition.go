package filter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/arthur-debert/nanotags/nanotags/query"
	"github.com/arthur-debert/nanotags/types"
)

// Condition is the operator of an advanced search row
type Condition int

const (
	CondEqual Condition = iota
	CondNotEqual
	CondLess
	CondGreater
	CondLessEqual
	CondGreaterEqual
	CondContains
	CondIn
	CondBetween
	CondHasValue
	CondHasNoValue
)

var conditionTokens = [...]string{
	CondEqual:        "==",
	CondNotEqual:     "!=",
	CondLess:         "<",
	CondGreater:      ">",
	CondLessEqual:    "<=",
	CondGreaterEqual: ">=",
	CondContains:     "CONTAINS",
	CondIn:           "IN",
	CondBetween:      "BETWEEN",
	CondHasValue:     "HAS VALUE",
	CondHasNoValue:   "HAS NO VALUE",
}

// Conditions returns every condition in display order
func Conditions() []Condition {
	all := make([]Condition, len(conditionTokens))
	for i := range all {
		all[i] = Condition(i)
	}
	return all
}

// String returns the token stored in saved filters
func (c Condition) String() string {
	if c < 0 || int(c) >= len(conditionTokens) {
		return fmt.Sprintf("Condition(%d)", int(c))
	}
	return conditionTokens[c]
}

// ParseCondition reads a condition token, ignoring case and surrounding
// space
func ParseCondition(token string) (Condition, error) {
	t := strings.Join(strings.Fields(strings.ToUpper(token)), " ")
	for i, name := range conditionTokens {
		if name == t {
			return Condition(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown condition %q", ErrMalformedFilter, token)
}

// operand is the value of a row converted for one target field
type operand struct {
	field    string
	raw      interface{}
	typ      types.FieldType
	hasType  bool
	rowIndex int
}

type renderer func(op operand) (query.Expr, error)

var renderers = [...]renderer{
	CondEqual:        compare(query.OpEq),
	CondNotEqual:     compare(query.OpNe),
	CondLess:         compare(query.OpLt),
	CondGreater:      compare(query.OpGt),
	CondLessEqual:    compare(query.OpLe),
	CondGreaterEqual: compare(query.OpGe),
	CondContains:     renderContains,
	CondIn:           renderIn,
	CondBetween:      renderBetween,
	CondHasValue: func(op operand) (query.Expr, error) {
		return &query.NotNull{Field: op.field}, nil
	},
	CondHasNoValue: func(op operand) (query.Expr, error) {
		return &query.IsNull{Field: op.field}, nil
	},
}

// render compiles the condition for one field
func (c Condition) render(op operand) (query.Expr, error) {
	if c < 0 || int(c) >= len(renderers) {
		return nil, fmt.Errorf("%w: unknown condition %d", ErrMalformedFilter, int(c))
	}
	return renderers[c](op)
}

func compare(o query.Op) renderer {
	return func(op operand) (query.Expr, error) {
		v, err := op.scalar()
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			switch o {
			case query.OpEq:
				return &query.IsNull{Field: op.field}, nil
			case query.OpNe:
				return &query.NotNull{Field: op.field}, nil
			}
			return nil, op.malformed(o.String() + " needs a value")
		}
		return &query.Compare{Field: op.field, Op: o, Value: v}, nil
	}
}

func renderContains(op operand) (query.Expr, error) {
	if isList(op.raw) {
		return nil, op.malformed("CONTAINS takes a single value")
	}
	v, err := query.FromGo(op.raw)
	if err != nil {
		return nil, op.malformed(err.Error())
	}
	return &query.Like{Field: op.field, Pattern: "%" + v.Text() + "%"}, nil
}

func renderIn(op operand) (query.Expr, error) {
	items, err := op.list()
	if err != nil {
		return nil, err
	}
	return &query.In{Field: op.field, Values: items}, nil
}

func renderBetween(op operand) (query.Expr, error) {
	items, err := op.list()
	if err != nil {
		return nil, err
	}
	if len(items) != 2 {
		return nil, op.malformed(fmt.Sprintf("BETWEEN takes 2 values, got %d", len(items)))
	}
	return &query.Between{Field: op.field, Low: items[0], High: items[1]}, nil
}

func (op operand) malformed(msg string) error {
	return fmt.Errorf("%w: row %d, field %q: %s", ErrMalformedFilter, op.rowIndex, op.field, msg)
}

// scalar converts a comparison operand, coercing text to the field type
// when the type is known
func (op operand) scalar() (query.Value, error) {
	v, err := query.FromGo(op.raw)
	if err != nil {
		return query.Null(), op.malformed(err.Error())
	}
	return op.coerce(v), nil
}

// list converts an IN or BETWEEN operand. Text is split on ";", the way
// list values are typed in the search dialog.
func (op operand) list() ([]query.Value, error) {
	raw := op.raw
	if s, ok := raw.(string); ok {
		raw = splitList(s)
	}
	if !isList(raw) {
		return nil, op.malformed(fmt.Sprintf("expected a list, got %T", op.raw))
	}
	v, err := query.FromGo(raw)
	if err != nil {
		return nil, op.malformed(err.Error())
	}
	items := make([]query.Value, len(v.List))
	for i, item := range v.List {
		items[i] = op.coerce(item)
	}
	return items, nil
}

func (op operand) coerce(v query.Value) query.Value {
	if !op.hasType {
		return v
	}
	if c, err := v.CoerceTo(op.typ); err == nil {
		return c
	}
	return v
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ";")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isList(x interface{}) bool {
	if x == nil {
		return false
	}
	k := reflect.TypeOf(x).Kind()
	return k == reflect.Slice || k == reflect.Array
}
