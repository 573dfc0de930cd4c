package testutil

import (
	"sort"
	"strings"
	"testing"

	"github.com/arthur-debert/nanotags/nanotags/filter"
	"github.com/arthur-debert/nanotags/nanotags/project"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// AssertScanCount checks the number of scans in a result
func AssertScanCount(t testing.TB, scans []string, want int, context ...string) {
	t.Helper()
	if len(scans) != want {
		t.Errorf("expected %d scans%s, got %d: %v", want, suffix(context), len(scans), scans)
	}
}

// AssertScanExists checks that path is part of a result
func AssertScanExists(t testing.TB, scans []string, path string) {
	t.Helper()
	for _, s := range scans {
		if s == path {
			return
		}
	}
	t.Errorf("expected scan %q in %v", path, scans)
}

// AssertScanNotExists checks that path is not part of a result
func AssertScanNotExists(t testing.TB, scans []string, path string) {
	t.Helper()
	for _, s := range scans {
		if s == path {
			t.Errorf("scan %q should not be in %v", path, scans)
			return
		}
	}
}

// AssertSearchReturns runs f and checks the result, ignoring order
func AssertSearchReturns(t testing.TB, p *project.Project, f *filter.Filter, want ...string) {
	t.Helper()
	got, err := p.Search(f)
	if err != nil {
		t.Fatalf("search %q failed: %v", f.Name, err)
	}
	less := func(a, b string) bool { return a < b }
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(less), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("search %q mismatch (-want +got):\n%s", f.Name, diff)
	}
}

// AssertSearchEmpty checks that f selects no scan
func AssertSearchEmpty(t testing.TB, p *project.Project, f *filter.Filter) {
	t.Helper()
	AssertSearchReturns(t, p, f)
}

// AssertRapidFinds checks the number of scans a rapid search selects
func AssertRapidFinds(t testing.TB, p *project.Project, text string, want int) {
	t.Helper()
	got, err := p.Search(Rapid(text))
	if err != nil {
		t.Fatalf("rapid search %q failed: %v", text, err)
	}
	if len(got) != want {
		t.Errorf("rapid search %q: expected %d scans, got %d: %v", text, want, len(got), got)
	}
}

// AssertPartition checks that a row and its negation split the scans that
// have a value for the row's tags
func AssertPartition(t testing.TB, p *project.Project, positive, negative *filter.Filter, defined []string) {
	t.Helper()
	pos, err := p.Search(positive)
	if err != nil {
		t.Fatal(err)
	}
	neg, err := p.Search(negative)
	if err != nil {
		t.Fatal(err)
	}
	union := append(append([]string{}, pos...), neg...)
	sort.Strings(union)
	want := append([]string{}, defined...)
	sort.Strings(want)
	if diff := cmp.Diff(want, union); diff != "" {
		t.Errorf("%q and %q do not partition the defined scans (-want +got):\n%s", positive.Name, negative.Name, diff)
	}
}

// Rapid builds a filter holding only a rapid search
func Rapid(text string) *filter.Filter {
	return filter.New("rapid", nil, nil, nil, nil, nil, text)
}

// Row builds a single-row advanced filter
func Row(not string, fields []string, condition string, value interface{}) *filter.Filter {
	name := strings.TrimSpace(not + " " + strings.Join(fields, ",") + " " + condition)
	return filter.New(name, []string{not}, []interface{}{value}, [][]string{fields}, nil, []string{condition}, "")
}

func suffix(context []string) string {
	if len(context) == 0 {
		return ""
	}
	return " " + strings.Join(context, " ")
}
