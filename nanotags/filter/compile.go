package filter

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotags/nanotags/query"
	"github.com/arthur-debert/nanotags/types"
)

// NotDefined is the rapid search text that selects scans with a missing
// value in any searched tag
const NotDefined = "*Not Defined*"

// Row negation and link tokens
const (
	TokenNot = "NOT"
	TokenAnd = "AND"
	TokenOr  = "OR"
)

// Scope is what the advanced compiler needs besides the rows: the
// candidate scans, the tags an "all fields" row expands to, and the known
// field types used to coerce typed operands.
type Scope struct {
	Scans       []string
	VisibleTags []string
	FieldTypes  map[string]types.FieldType
}

// membership restricts an expression to the candidate scans
func membership(scans []string) query.Expr {
	return &query.In{Field: types.TagFileName, Values: query.Strings(scans).List}
}

func searchable(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag != types.TagHistory {
			out = append(out, tag)
		}
	}
	return out
}

// PrepareFilter compiles a rapid search: any searchable tag containing
// search, among scans. The search text is used as a LIKE pattern body, so
// % and _ act as wildcards.
func PrepareFilter(search string, tags, scans []string) query.Expr {
	var terms []query.Expr
	for _, tag := range searchable(tags) {
		terms = append(terms, &query.Like{Field: tag, Pattern: "%" + search + "%"})
	}
	return query.AndOf(query.OrOf(terms...), membership(scans))
}

// PrepareNotDefinedFilter selects the scans with no value in at least one
// searchable tag
func PrepareNotDefinedFilter(tags, scans []string) query.Expr {
	var terms []query.Expr
	for _, tag := range searchable(tags) {
		terms = append(terms, &query.IsNull{Field: tag})
	}
	return query.AndOf(query.OrOf(terms...), membership(scans))
}

// PrepareFilters compiles an advanced search. fields, conditions, values and
// nots describe one row each; links joins row i to row i+1. Rows are folded
// left to right in the order given. A row with no fields targets every
// visible tag. The result is restricted to scope.Scans.
func PrepareFilters(links []string, fields [][]string, conditions []string, values []interface{}, nots []string, scope Scope) (query.Expr, error) {
	if err := checkShape(links, fields, conditions, values, nots); err != nil {
		return nil, err
	}

	var folded query.Expr
	for i := range conditions {
		row, err := compileRow(i, fields[i], conditions[i], values[i], nots[i], scope)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			folded = row
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(links[i-1])) {
		case TokenAnd:
			folded = &query.And{Terms: []query.Expr{folded, row}}
		case TokenOr:
			folded = &query.Or{Terms: []query.Expr{folded, row}}
		default:
			return nil, fmt.Errorf("%w: unknown link %q before row %d", ErrMalformedFilter, links[i-1], i)
		}
	}
	return query.AndOf(folded, membership(scope.Scans)), nil
}

func checkShape(links []string, fields [][]string, conditions []string, values []interface{}, nots []string) error {
	n := len(conditions)
	if len(fields) != n || len(values) != n || len(nots) != n {
		return fmt.Errorf("%w: %d conditions, %d fields, %d values, %d negations",
			ErrMalformedFilter, n, len(fields), len(values), len(nots))
	}
	want := n - 1
	if n == 0 {
		want = 0
	}
	if len(links) != want {
		return fmt.Errorf("%w: %d rows need %d links, got %d", ErrMalformedFilter, n, want, len(links))
	}
	return nil
}

func compileRow(i int, fields []string, condition string, value interface{}, not string, scope Scope) (query.Expr, error) {
	cond, err := ParseCondition(condition)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", i, err)
	}

	targets := fields
	if len(targets) == 0 {
		targets = searchable(scope.VisibleTags)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: row %d targets all visible tags but none are visible", ErrMalformedFilter, i)
	}

	terms := make([]query.Expr, 0, len(targets))
	for _, field := range targets {
		t, ok := scope.FieldTypes[field]
		term, err := cond.render(operand{field: field, raw: value, typ: t, hasType: ok, rowIndex: i})
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	row := query.OrOf(terms...)

	switch strings.ToUpper(strings.TrimSpace(not)) {
	case "":
		return row, nil
	case TokenNot:
		return &query.Not{Expr: row}, nil
	default:
		return nil, fmt.Errorf("%w: unknown negation %q in row %d", ErrMalformedFilter, not, i)
	}
}
