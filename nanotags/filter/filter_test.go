package filter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arthur-debert/nanotags/nanotags/query"
	"github.com/arthur-debert/nanotags/nanotags/store"
	"github.com/arthur-debert/nanotags/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var allScans = []string{"/a.nii", "/b.nii", "/c.nii", "/d.nii"}

var tags = []string{"FileName", "PatientName", "Exp Type", "Age", "History"}

func fixture(t *testing.T) *store.DB {
	t.Helper()
	db := store.OpenMemory()
	err := db.Write(func(s store.Session) error {
		if err := s.AddCollection(types.CollectionCurrent, types.TagFileName); err != nil {
			return err
		}
		for name, typ := range map[string]types.FieldType{
			"PatientName": types.FieldTypeString,
			"Exp Type":    types.FieldTypeString,
			"Age":         types.FieldTypeInteger,
			"History":     types.FieldTypeString,
		} {
			if err := s.AddField(types.CollectionCurrent, name, typ, ""); err != nil {
				return err
			}
		}
		for _, doc := range []map[string]interface{}{
			{"FileName": "/a.nii", "PatientName": "Alice", "Exp Type": "Anat", "Age": 34, "History": "Anat pipeline"},
			{"FileName": "/b.nii", "PatientName": "Bob", "Exp Type": "FLASH", "Age": 28},
			{"FileName": "/c.nii", "PatientName": "Carol", "Age": 41},
			{"FileName": "/d.nii", "Exp Type": "anatomical"},
		} {
			if err := s.AddDocument(types.CollectionCurrent, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return db
}

func TestPrepareFilter(t *testing.T) {
	t.Run("rapid search", func(t *testing.T) {
		got := query.Render(PrepareFilter("Anat", []string{"PatientName", "Exp Type"}, []string{"/a.nii", "/b.nii"}))
		want := `(({PatientName} LIKE "%Anat%") OR ({Exp Type} LIKE "%Anat%")) AND ({FileName} IN ["/a.nii","/b.nii"])`
		if got != want {
			t.Errorf("got\n  %s\nwant\n  %s", got, want)
		}
	})

	t.Run("history is never searched", func(t *testing.T) {
		got := query.Render(PrepareFilter("x", []string{"History", "Exp Type"}, []string{"/a.nii"}))
		want := `({Exp Type} LIKE "%x%") AND ({FileName} IN ["/a.nii"])`
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("quotes are escaped, wildcards are not", func(t *testing.T) {
		got := query.Render(PrepareFilter(`a"b%_`, []string{"Exp Type"}, nil))
		want := `({Exp Type} LIKE "%a\"b%_%") AND ({FileName} IN [])`
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("no searchable tags", func(t *testing.T) {
		got := query.Render(PrepareFilter("x", []string{"History"}, []string{"/a.nii"}))
		if got != `({FileName} IN ["/a.nii"])` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("not defined", func(t *testing.T) {
		got := query.Render(PrepareNotDefinedFilter([]string{"PatientName", "History", "Exp Type"}, []string{"/a.nii"}))
		want := `(({PatientName} == null) OR ({Exp Type} == null)) AND ({FileName} IN ["/a.nii"])`
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

func TestPrepareFilters(t *testing.T) {
	scope := Scope{
		Scans:       []string{"/a.nii", "/b.nii"},
		VisibleTags: []string{"PatientName", "Exp Type", "History"},
		FieldTypes: map[string]types.FieldType{
			"Age":     types.FieldTypeInteger,
			"AcqDate": types.FieldTypeDate,
			"TE":      types.FieldTypeListFloat,
		},
	}
	const in = ` AND ({FileName} IN ["/a.nii","/b.nii"])`

	tests := []struct {
		name       string
		links      []string
		fields     [][]string
		conditions []string
		values     []interface{}
		nots       []string
		want       string
	}{
		{
			name:       "negated equality",
			fields:     [][]string{{"Exp Type"}},
			conditions: []string{"=="},
			values:     []interface{}{"Anat"},
			nots:       []string{"NOT"},
			want:       `(NOT ({Exp Type} == "Anat"))` + in,
		},
		{
			name:       "typed operand",
			fields:     [][]string{{"Age"}},
			conditions: []string{">="},
			values:     []interface{}{"30"},
			nots:       []string{""},
			want:       `({Age} >= 30)` + in,
		},
		{
			name:       "all visible fields",
			fields:     [][]string{nil},
			conditions: []string{"CONTAINS"},
			values:     []interface{}{"an"},
			nots:       []string{""},
			want:       `(({PatientName} LIKE "%an%") OR ({Exp Type} LIKE "%an%"))` + in,
		},
		{
			name:       "several named fields",
			fields:     [][]string{{"PatientName", "Exp Type"}},
			conditions: []string{"HAS NO VALUE"},
			values:     []interface{}{nil},
			nots:       []string{"NOT"},
			want:       `(NOT (({PatientName} == null) OR ({Exp Type} == null)))` + in,
		},
		{
			name:       "left to right folding",
			links:      []string{"AND", "OR"},
			fields:     [][]string{{"Age"}, {"Exp Type"}, {"PatientName"}},
			conditions: []string{"<", "IN", "has value"},
			values:     []interface{}{"40", "Anat;FLASH", ""},
			nots:       []string{"", "", ""},
			want:       `((({Age} < 40) AND ({Exp Type} IN ["Anat","FLASH"])) OR ({PatientName} != null))` + in,
		},
		{
			name:       "between with typed bounds",
			fields:     [][]string{{"AcqDate"}},
			conditions: []string{"BETWEEN"},
			values:     []interface{}{[]interface{}{"2020-01-01", "2020-12-31"}},
			nots:       []string{""},
			want:       `({AcqDate} BETWEEN [2020-01-01,2020-12-31])` + in,
		},
		{
			name:       "list field element type",
			fields:     [][]string{{"TE"}},
			conditions: []string{"IN"},
			values:     []interface{}{[]string{"2.5", "30"}},
			nots:       []string{""},
			want:       `({TE} IN [2.5,30])` + in,
		},
		{
			name:       "empty IN list",
			fields:     [][]string{{"Exp Type"}},
			conditions: []string{"IN"},
			values:     []interface{}{""},
			nots:       []string{""},
			want:       `({Exp Type} IN [])` + in,
		},
		{
			name:       "equality with null",
			fields:     [][]string{{"Exp Type"}},
			conditions: []string{"!="},
			values:     []interface{}{nil},
			nots:       []string{""},
			want:       `({Exp Type} != null)` + in,
		},
		{
			name:  "no rows",
			want:  `({FileName} IN ["/a.nii","/b.nii"])`,
			links: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := PrepareFilters(tt.links, tt.fields, tt.conditions, tt.values, tt.nots, scope)
			if err != nil {
				t.Fatalf("PrepareFilters() error: %v", err)
			}
			if got := query.Render(expr); got != tt.want {
				t.Errorf("got\n  %s\nwant\n  %s", got, tt.want)
			}
			// the store must accept what the compiler produces
			if _, err := query.Parse(query.Render(expr)); err != nil {
				t.Errorf("compiled expression does not parse: %v", err)
			}
		})
	}
}

func TestPrepareFiltersMalformed(t *testing.T) {
	scope := Scope{Scans: []string{"/a.nii"}}
	tests := []struct {
		name       string
		links      []string
		fields     [][]string
		conditions []string
		values     []interface{}
		nots       []string
	}{
		{"length mismatch", nil, [][]string{{"A"}, {"B"}}, []string{"=="}, []interface{}{"x"}, []string{""}},
		{"missing link", nil, [][]string{{"A"}, {"B"}}, []string{"==", "=="}, []interface{}{"x", "y"}, []string{"", ""}},
		{"unknown link", []string{"XOR"}, [][]string{{"A"}, {"B"}}, []string{"==", "=="}, []interface{}{"x", "y"}, []string{"", ""}},
		{"unknown condition", nil, [][]string{{"A"}}, []string{"~="}, []interface{}{"x"}, []string{""}},
		{"unknown negation", nil, [][]string{{"A"}}, []string{"=="}, []interface{}{"x"}, []string{"NOPE"}},
		{"between arity", nil, [][]string{{"A"}}, []string{"BETWEEN"}, []interface{}{"1;2;3"}, []string{""}},
		{"between scalar", nil, [][]string{{"A"}}, []string{"BETWEEN"}, []interface{}{3}, []string{""}},
		{"contains list", nil, [][]string{{"A"}}, []string{"CONTAINS"}, []interface{}{[]string{"x"}}, []string{""}},
		{"ordering null", nil, [][]string{{"A"}}, []string{"<"}, []interface{}{nil}, []string{""}},
		{"no visible tags", nil, [][]string{{}}, []string{"=="}, []interface{}{"x"}, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PrepareFilters(tt.links, tt.fields, tt.conditions, tt.values, tt.nots, scope)
			if !errors.Is(err, ErrMalformedFilter) {
				t.Errorf("expected ErrMalformedFilter, got %v", err)
			}
		})
	}
}

func TestConditions(t *testing.T) {
	for _, c := range Conditions() {
		parsed, err := ParseCondition(strings.ToLower(c.String()))
		if err != nil || parsed != c {
			t.Errorf("ParseCondition(%q) = %v, %v", c, parsed, err)
		}
	}
	if c, err := ParseCondition("  has   no  value "); err != nil || c != CondHasNoValue {
		t.Errorf("whitespace not normalized: %v, %v", c, err)
	}
}

func TestGenerateFilter(t *testing.T) {
	db := fixture(t)

	tests := []struct {
		name   string
		filter *Filter
		scans  []string
		want   []string
	}{
		{
			name:   "advanced negation",
			filter: New("", []string{"NOT"}, []interface{}{"Anat"}, [][]string{{"Exp Type"}}, nil, []string{"=="}, ""),
			scans:  []string{"/a.nii", "/b.nii"},
			want:   []string{"/b.nii"},
		},
		{
			name:   "rapid search is case insensitive",
			filter: New("", nil, nil, nil, nil, nil, "anat"),
			scans:  allScans,
			want:   []string{"/a.nii", "/d.nii"},
		},
		{
			name:   "history is not searched",
			filter: New("", nil, nil, nil, nil, nil, "pipeline"),
			scans:  allScans,
			want:   nil,
		},
		{
			name:   "rapid then advanced",
			filter: New("", []string{""}, []interface{}{"30"}, [][]string{{"Age"}}, nil, []string{">"}, "a"),
			scans:  allScans,
			want:   []string{"/a.nii", "/c.nii"},
		},
		{
			name:   "not defined",
			filter: New("", nil, nil, nil, nil, nil, NotDefined),
			scans:  allScans,
			want:   []string{"/c.nii", "/d.nii"},
		},
		{
			name:   "scope limits results",
			filter: New("", nil, nil, nil, nil, nil, ""),
			scans:  []string{"/c.nii", "/zzz.nii"},
			want:   []string{"/c.nii"},
		},
		{
			name:   "empty scans",
			filter: New("", nil, nil, nil, nil, nil, ""),
			scans:  nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.GenerateFilter(db, tt.scans, tags)
			if err != nil {
				t.Fatalf("GenerateFilter() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("GenerateFilter() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("malformed filter fails", func(t *testing.T) {
		f := New("broken", []string{""}, nil, [][]string{{"Age"}}, nil, []string{">"}, "")
		if _, err := f.GenerateFilter(db, allScans, tags); !errors.Is(err, ErrMalformedFilter) {
			t.Errorf("expected ErrMalformedFilter, got %v", err)
		}
	})
}

func TestPercentMatchesEveryDefinedScan(t *testing.T) {
	db := fixture(t)
	f := New("", nil, nil, nil, nil, nil, "%")
	got, err := f.GenerateFilter(db, allScans, []string{"PatientName"})
	if err != nil {
		t.Fatal(err)
	}
	// /d.nii has no PatientName
	if diff := cmp.Diff([]string{"/a.nii", "/b.nii", "/c.nii"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestAdvancedSearchNarrows(t *testing.T) {
	db := fixture(t)
	for _, search := range []string{"", "a", "an", "%", "zzz"} {
		base := New("", nil, nil, nil, nil, nil, search)
		all, err := base.GenerateFilter(db, allScans, tags)
		if err != nil {
			t.Fatal(err)
		}
		narrowed := New("", []string{"", ""}, []interface{}{"20;50", "Alice"}, [][]string{{"Age"}, nil}, []string{"OR"}, []string{"BETWEEN", "=="}, search)
		some, err := narrowed.GenerateFilter(db, allScans, tags)
		if err != nil {
			t.Fatal(err)
		}
		inAll := make(map[string]bool)
		for _, k := range all {
			inAll[k] = true
		}
		for _, k := range some {
			if !inAll[k] {
				t.Errorf("search %q: advanced result %s not in rapid result %v", search, k, all)
			}
		}
	}
}

// A row and its negation split the scans that have a value for the field.
// Scans without a value are in neither result.
func TestNegationPartition(t *testing.T) {
	db := fixture(t)
	run := func(not string) []string {
		f := New("", []string{not}, []interface{}{"Anat"}, [][]string{{"Exp Type"}}, nil, []string{"=="}, "")
		got, err := f.GenerateFilter(db, allScans, tags)
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	if diff := cmp.Diff([]string{"/a.nii"}, run("")); diff != "" {
		t.Errorf("bare row (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/b.nii", "/d.nii"}, run("NOT")); diff != "" {
		t.Errorf("negated row (-want +got):\n%s", diff)
	}
}

type recorder struct {
	phases  []string
	results []int
}

func (r *recorder) ObservePhase(phase string, _ time.Duration, results int) {
	r.phases = append(r.phases, phase)
	r.results = append(r.results, results)
}

func TestGenerateFilterObserver(t *testing.T) {
	db := fixture(t)
	rec := &recorder{}
	f := New("", []string{""}, []interface{}{"FLASH"}, [][]string{{"Exp Type"}}, nil, []string{"=="}, "")
	if _, err := f.GenerateFilter(db, allScans, tags, WithObserver(rec)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{PhaseRapid, PhaseAdvanced}, rec.phases); diff != "" {
		t.Errorf("phases (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{4, 1}, rec.results); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
}

func TestJSONFormatRoundTrip(t *testing.T) {
	filters := []*Filter{
		New("anat only", []string{"NOT", ""}, []interface{}{"Anat", []interface{}{"20", "40"}},
			[][]string{{"Exp Type"}, {"Age", "Weight"}}, []string{"AND"}, []string{"==", "BETWEEN"}, "sub-01"),
		New("", []string{}, []interface{}{}, [][]string{}, []string{}, []string{}, ""),
		New("all fields", []string{""}, []interface{}{"x"}, [][]string{nil}, []string{}, []string{"CONTAINS"}, NotDefined),
	}

	for _, f := range filters {
		t.Run(f.Name, func(t *testing.T) {
			m := f.JSONFormat()
			for _, key := range []string{KeyName, KeySearchBar, KeyFields, KeyConditions, KeyValues, KeyLinks, KeyNots} {
				if _, ok := m[key]; !ok {
					t.Errorf("missing key %q", key)
				}
			}

			direct, err := FromJSONFormat(m)
			if err != nil {
				t.Fatalf("FromJSONFormat() error: %v", err)
			}
			if diff := cmp.Diff(f, direct); diff != "" {
				t.Errorf("map round trip (-want +got):\n%s", diff)
			}

			raw, err := json.Marshal(f)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			var decoded Filter
			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if diff := cmp.Diff(f, &decoded, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("JSON round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromJSONFormatErrors(t *testing.T) {
	tests := []map[string]interface{}{
		{KeyName: 3},
		{KeyConditions: "=="},
		{KeyFields: []interface{}{[]interface{}{1}}},
		{KeyValues: "x"},
		{KeyNots: []interface{}{true}},
	}
	for _, m := range tests {
		if _, err := FromJSONFormat(m); err == nil {
			t.Errorf("FromJSONFormat(%v) should fail", m)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := New("", []string{""}, []interface{}{"x"}, [][]string{nil}, nil, []string{"=="}, "")
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	bad := New("", []string{""}, []interface{}{"x"}, [][]string{nil}, nil, []string{"LIKE"}, "")
	if err := bad.Validate(); !errors.Is(err, ErrMalformedFilter) {
		t.Errorf("expected ErrMalformedFilter, got %v", err)
	}
	if ok.Rows() != 1 {
		t.Errorf("Rows() = %d", ok.Rows())
	}
}

func TestEvaluateUsesCallerSession(t *testing.T) {
	db := fixture(t)
	f := New("", []string{""}, []interface{}{"40"}, [][]string{{"Age"}}, nil, []string{">"}, "")
	scans := append(append([]string(nil), allScans...), "/e.nii")

	discard := errors.New("discard")
	err := db.Write(func(s store.Session) error {
		if err := s.AddDocument(types.CollectionCurrent, map[string]interface{}{"FileName": "/e.nii", "Age": 50}); err != nil {
			return err
		}
		got, err := f.Evaluate(s, scans, tags)
		if err != nil {
			return err
		}
		if diff := cmp.Diff([]string{"/c.nii", "/e.nii"}, got); diff != "" {
			t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
		}
		return discard
	})
	if !errors.Is(err, discard) {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := f.GenerateFilter(db, scans, tags)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/c.nii"}, got); diff != "" {
		t.Errorf("GenerateFilter() mismatch (-want +got):\n%s", diff)
	}
}
