// Package query implements the boolean filter language evaluated by the
// store: an expression tree, its textual rendering, a parser for the
// rendered form and a three-valued evaluator.
//
// Conditions render self-parenthesized, for example
//
//	({PatientName} LIKE "%Anat%")
//	({FileName} IN ["/a.nii","/b.nii"])
//
// and AND/OR groups are parenthesized everywhere except at the root, so the
// grouping a caller builds is exactly the grouping the store evaluates.
package query

import (
	"fmt"
	"strings"
)

// Expr is a node of a filter expression
type Expr interface {
	// Eval evaluates the expression against one document
	Eval(r Resolver) Truth
	// String renders the node, parenthesized
	String() string
}

// Op is a comparison operator
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
)

var opSymbols = [...]string{
	OpEq: "==",
	OpNe: "!=",
	OpLt: "<",
	OpGt: ">",
	OpLe: "<=",
	OpGe: ">=",
}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp returns the operator for a symbol
func ParseOp(symbol string) (Op, bool) {
	for op, s := range opSymbols {
		if s == symbol {
			return Op(op), true
		}
	}
	return 0, false
}

func (o Op) holds(c int) bool {
	switch o {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpGt:
		return c > 0
	case OpLe:
		return c <= 0
	case OpGe:
		return c >= 0
	}
	return false
}

func fieldRef(name string) string {
	return "{" + name + "}"
}

// Compare is ({field} op value)
type Compare struct {
	Field string
	Op    Op
	Value Value
}

func (c *Compare) String() string {
	return "(" + fieldRef(c.Field) + " " + c.Op.String() + " " + c.Value.Literal() + ")"
}

// Like is ({field} LIKE "pattern") with SQL wildcards % and _
type Like struct {
	Field   string
	Pattern string

	matcher *likeMatcher
}

func (l *Like) String() string {
	return "(" + fieldRef(l.Field) + " LIKE " + quote(l.Pattern) + ")"
}

// In is ({field} IN [v1,v2,...])
type In struct {
	Field  string
	Values []Value
}

func (in *In) String() string {
	return "(" + fieldRef(in.Field) + " IN " + List(in.Values...).Literal() + ")"
}

// Between is ({field} BETWEEN [low,high]), bounds included
type Between struct {
	Field string
	Low   Value
	High  Value
}

func (b *Between) String() string {
	return "(" + fieldRef(b.Field) + " BETWEEN " + List(b.Low, b.High).Literal() + ")"
}

// IsNull is ({field} == null)
type IsNull struct {
	Field string
}

func (n *IsNull) String() string {
	return "(" + fieldRef(n.Field) + " == null)"
}

// NotNull is ({field} != null)
type NotNull struct {
	Field string
}

func (n *NotNull) String() string {
	return "(" + fieldRef(n.Field) + " != null)"
}

// Not negates its operand
type Not struct {
	Expr Expr
}

func (n *Not) String() string {
	return "(NOT " + n.Expr.String() + ")"
}

// And is the conjunction of its terms; an empty And is true
type And struct {
	Terms []Expr
}

func (a *And) String() string {
	return group(a.Terms, " AND ", true)
}

// Or is the disjunction of its terms; an empty Or is false
type Or struct {
	Terms []Expr
}

func (o *Or) String() string {
	return group(o.Terms, " OR ", true)
}

func group(terms []Expr, sep string, wrap bool) string {
	if len(terms) == 1 {
		return terms[0].String()
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	joined := strings.Join(parts, sep)
	if wrap && len(terms) > 1 {
		return "(" + joined + ")"
	}
	return joined
}

// AndOf conjoins the non-nil expressions. A single term is returned as is
// and no terms yield nil.
func AndOf(terms ...Expr) Expr {
	kept := compact(terms)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &And{Terms: kept}
}

// OrOf disjoins the non-nil expressions. A single term is returned as is
// and no terms yield nil.
func OrOf(terms ...Expr) Expr {
	kept := compact(terms)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Or{Terms: kept}
}

func compact(terms []Expr) []Expr {
	kept := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return kept
}

// Render returns the textual form of an expression as sent to the store.
// The root group is not parenthesized; a nil expression renders empty,
// which the store treats as matching every document.
func Render(e Expr) string {
	switch n := e.(type) {
	case nil:
		return ""
	case *And:
		return group(n.Terms, " AND ", false)
	case *Or:
		return group(n.Terms, " OR ", false)
	default:
		return e.String()
	}
}

// Fields returns the field names referenced by an expression, in first-seen
// order.
func Fields(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Compare:
			add(n.Field)
		case *Like:
			add(n.Field)
		case *In:
			add(n.Field)
		case *Between:
			add(n.Field)
		case *IsNull:
			add(n.Field)
		case *NotNull:
			add(n.Field)
		case *Not:
			walk(n.Expr)
		case *And:
			for _, t := range n.Terms {
				walk(t)
			}
		case *Or:
			for _, t := range n.Terms {
				walk(t)
			}
		}
	}
	walk(e)
	return names
}
