package query

import (
	"regexp"
	"strings"
	"sync"
)

// Truth is a three-valued logic result. Comparisons involving null are
// Unknown, and only True selects a document, so NOT over a null comparison
// does not select it either.
type Truth int8

// The order False < Unknown < True makes AND a minimum and OR a maximum.
const (
	False Truth = iota
	Unknown
	True
)

func (t Truth) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "unknown"
	}
}

// Not is the Kleene negation
func (t Truth) Not() Truth { return True - t }

func truthOf(b bool) Truth {
	if b {
		return True
	}
	return False
}

// Resolver supplies the value of a field for the document being evaluated.
// Missing fields are null.
type Resolver interface {
	Lookup(field string) Value
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(field string) Value

// Lookup implements Resolver
func (f ResolverFunc) Lookup(field string) Value { return f(field) }

// Matches reports whether e selects the document; a nil expression selects
// everything.
func Matches(e Expr, r Resolver) bool {
	if e == nil {
		return true
	}
	return e.Eval(r) == True
}

// Eval implements Expr
func (c *Compare) Eval(r Resolver) Truth {
	actual := r.Lookup(c.Field)
	if c.Value.IsNull() {
		// {f} == null is IsNull; any other comparison with null is unknown
		switch c.Op {
		case OpEq:
			return truthOf(actual.IsNull())
		case OpNe:
			return truthOf(!actual.IsNull())
		}
		return Unknown
	}
	return compareTruth(actual, c.Op, c.Value)
}

func compareTruth(actual Value, op Op, expected Value) Truth {
	if actual.IsNull() {
		return Unknown
	}
	if actual.Kind == KindList {
		if expected.Kind == KindList {
			if op != OpEq && op != OpNe {
				return False
			}
			return truthOf(listsEqual(actual.List, expected.List) == (op == OpEq))
		}
		return exists(actual.List, func(item Value) Truth {
			return compareTruth(item, op, expected)
		})
	}
	c, ok := compareValues(actual, expected)
	if !ok {
		// Values of different kinds are never equal and never ordered
		return truthOf(op == OpNe)
	}
	return truthOf(op.holds(c))
}

func listsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].IsNull() || b[i].IsNull() {
			if a[i].IsNull() != b[i].IsNull() {
				return false
			}
			continue
		}
		if c, ok := compareValues(a[i], b[i]); !ok || c != 0 {
			return false
		}
	}
	return true
}

// exists is the existential quantifier over list elements, with Kleene OR
func exists(items []Value, fn func(Value) Truth) Truth {
	result := False
	for _, item := range items {
		if t := fn(item); t > result {
			result = t
			if result == True {
				break
			}
		}
	}
	return result
}

// Eval implements Expr
func (l *Like) Eval(r Resolver) Truth {
	actual := r.Lookup(l.Field)
	if actual.IsNull() {
		return Unknown
	}
	m := l.compiled()
	if actual.Kind == KindList {
		return exists(actual.List, func(item Value) Truth {
			if item.IsNull() {
				return Unknown
			}
			return truthOf(m.match(item.Text()))
		})
	}
	return truthOf(m.match(actual.Text()))
}

func (l *Like) compiled() *likeMatcher {
	if l.matcher == nil {
		l.matcher = &likeMatcher{pattern: l.Pattern}
	}
	return l.matcher
}

// likeMatcher compiles a LIKE pattern to a case-insensitive regular
// expression on first use.
type likeMatcher struct {
	pattern string
	once    sync.Once
	re      *regexp.Regexp
}

func (m *likeMatcher) match(s string) bool {
	m.once.Do(func() {
		m.re = regexp.MustCompile(likeToRegexp(m.pattern))
	})
	return m.re.MatchString(s)
}

func likeToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// Eval implements Expr. An empty list matches nothing, null included.
func (in *In) Eval(r Resolver) Truth {
	if len(in.Values) == 0 {
		return False
	}
	actual := r.Lookup(in.Field)
	if actual.IsNull() {
		return Unknown
	}
	member := func(v Value) Truth {
		if v.IsNull() {
			return Unknown
		}
		return exists(in.Values, func(candidate Value) Truth {
			if candidate.IsNull() {
				return Unknown
			}
			return compareTruth(v, OpEq, candidate)
		})
	}
	if actual.Kind == KindList {
		return exists(actual.List, member)
	}
	return member(actual)
}

// Eval implements Expr
func (b *Between) Eval(r Resolver) Truth {
	actual := r.Lookup(b.Field)
	if actual.IsNull() || b.Low.IsNull() || b.High.IsNull() {
		return Unknown
	}
	within := func(v Value) Truth {
		if v.IsNull() {
			return Unknown
		}
		return compareTruth(v, OpGe, b.Low).and(compareTruth(v, OpLe, b.High))
	}
	if actual.Kind == KindList {
		return exists(actual.List, within)
	}
	return within(actual)
}

func (t Truth) and(o Truth) Truth {
	if o < t {
		return o
	}
	return t
}

func (t Truth) or(o Truth) Truth {
	if o > t {
		return o
	}
	return t
}

// Eval implements Expr
func (n *IsNull) Eval(r Resolver) Truth {
	return truthOf(r.Lookup(n.Field).IsNull())
}

// Eval implements Expr
func (n *NotNull) Eval(r Resolver) Truth {
	return truthOf(!r.Lookup(n.Field).IsNull())
}

// Eval implements Expr
func (n *Not) Eval(r Resolver) Truth {
	return n.Expr.Eval(r).Not()
}

// Eval implements Expr
func (a *And) Eval(r Resolver) Truth {
	result := True
	for _, t := range a.Terms {
		result = result.and(t.Eval(r))
		if result == False {
			return False
		}
	}
	return result
}

// Eval implements Expr
func (o *Or) Eval(r Resolver) Truth {
	result := False
	for _, t := range o.Terms {
		result = result.or(t.Eval(r))
		if result == True {
			return True
		}
	}
	return result
}
