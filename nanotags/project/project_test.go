package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/nanotags/nanotags/filter"
	"github.com/arthur-debert/nanotags/nanotags/store"
	"github.com/arthur-debert/nanotags/types"
	"github.com/google/go-cmp/cmp"
)

func newTestProject(t *testing.T, opts ...Option) *Project {
	t.Helper()
	p, err := Create(filepath.Join(t.TempDir(), "study"), "study", opts...)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func seedScans(t *testing.T, p *Project) {
	t.Helper()
	if err := p.AddTag("Name", types.FieldTypeString, "Subject name", types.NewFieldAttributes(true, types.OriginUser)); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTag("Age", types.FieldTypeInteger, "Subject age", types.NewFieldAttributes(true, types.OriginUser)); err != nil {
		t.Fatal(err)
	}
	scans := []struct {
		path   string
		values map[string]interface{}
	}{
		{"data/raw/alice_anat.nii", map[string]interface{}{"Name": "Alice", TagType: "Scan", "Age": 34}},
		{"data/raw/bob_flash.nii", map[string]interface{}{"Name": "Bob", TagType: "Scan", "Age": 28}},
		{"data/raw/carol_notes.txt", map[string]interface{}{"Name": "Carol", TagType: "Text"}},
	}
	for _, s := range scans {
		if err := p.AddScan(s.path, s.values); err != nil {
			t.Fatalf("AddScan(%s) error: %v", s.path, err)
		}
	}
}

func TestCreate(t *testing.T) {
	p := newTestProject(t)

	for _, name := range []string{propertiesFile, filepath.Join(databaseDir, databaseFile), filtersDir} {
		if _, err := os.Stat(filepath.Join(p.Dir(), name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	props := p.Properties()
	if props.Name != "study" || props.SortedTag != types.TagFileName || props.SortOrder != SortAscending {
		t.Errorf("unexpected properties: %+v", props)
	}
	if props.DateCreated.IsZero() {
		t.Error("DateCreated not set")
	}

	shown, err := p.ShownTags()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{types.TagFileName, TagChecksum, TagType, TagExpType}
	if diff := cmp.Diff(want, shown); diff != "" {
		t.Errorf("ShownTags() mismatch (-want +got):\n%s", diff)
	}

	history, err := p.Tag(types.TagHistory)
	if err != nil {
		t.Fatal(err)
	}
	if history == nil || history.Type != types.FieldTypeListString {
		t.Fatalf("History tag = %+v", history)
	}
	if history.Attributes == nil || history.Attributes.Visibility || history.Attributes.Origin != types.OriginBuiltin {
		t.Errorf("History attributes = %+v", history.Attributes)
	}

	err = p.Read(func(s store.Session) error {
		if !s.HasCollection(types.CollectionInitial) {
			t.Error("initial collection missing")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateExisting(t *testing.T) {
	p := newTestProject(t)
	if _, err := Create(p.Dir(), "again"); !errors.Is(err, ErrProjectExists) {
		t.Errorf("Create() on existing project error = %v, want ErrProjectExists", err)
	}
}

func TestOpen(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotProject) {
		t.Errorf("Open() on empty dir error = %v, want ErrNotProject", err)
	}

	dir := filepath.Join(t.TempDir(), "study")
	p, err := Create(dir, "study")
	if err != nil {
		t.Fatal(err)
	}
	seedScans(t, p)
	if err := p.SetSort("Age", SortDescending); err != nil {
		t.Fatal(err)
	}
	created := p.Properties().DateCreated
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer reopened.Close()

	props := reopened.Properties()
	if props.SortedTag != "Age" || props.SortOrder != SortDescending {
		t.Errorf("sort not persisted: %+v", props)
	}
	if !props.DateCreated.Equal(created) {
		t.Errorf("DateCreated = %v, want %v", props.DateCreated, created)
	}

	scans, err := reopened.Scans()
	if err != nil {
		t.Fatal(err)
	}
	if len(scans) != 3 {
		t.Errorf("Scans() = %v, want 3 scans", scans)
	}
	doc, err := reopened.Scan("data/raw/alice_anat.nii")
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Get("Age"); got != int64(34) {
		t.Errorf("Age after reload = %#v, want int64(34)", got)
	}
}

func TestAddScan(t *testing.T) {
	p := newTestProject(t)
	seedScans(t, p)

	if err := p.AddScan("data/raw/alice_anat.nii", nil); !errors.Is(err, types.ErrDocumentExists) {
		t.Errorf("duplicate AddScan() error = %v, want ErrDocumentExists", err)
	}
	if err := p.AddScan("data/raw/dave.nii", map[string]interface{}{"Age": "old"}); !errors.Is(err, types.ErrInvalidValue) {
		t.Errorf("AddScan() with bad value error = %v, want ErrInvalidValue", err)
	}

	err := p.Read(func(s store.Session) error {
		for _, c := range scanCollections {
			doc := s.GetDocument(c, "data/raw/bob_flash.nii")
			if doc == nil {
				t.Errorf("scan missing from %s", c)
				continue
			}
			if doc.Get("Name") != "Bob" {
				t.Errorf("%s Name = %v", c, doc.Get("Name"))
			}
		}
		if s.GetDocument(types.CollectionCurrent, "data/raw/dave.nii") != nil {
			t.Error("failed AddScan left a document behind")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAddTagDefault(t *testing.T) {
	p := newTestProject(t)
	seedScans(t, p)

	attrs := types.NewFieldAttributes(true, types.OriginUser).WithDefault("Undefined")
	if err := p.AddTag("Site", types.FieldTypeString, "Acquisition site", attrs); err != nil {
		t.Fatal(err)
	}
	if err := p.AddScan("data/raw/dave.nii", map[string]interface{}{"Name": "Dave"}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddScan("data/raw/erin.nii", map[string]interface{}{"Site": "Paris"}); err != nil {
		t.Fatal(err)
	}

	for path, want := range map[string]string{
		"data/raw/alice_anat.nii": "Undefined",
		"data/raw/dave.nii":       "Undefined",
		"data/raw/erin.nii":       "Paris",
	} {
		doc, err := p.Scan(path)
		if err != nil {
			t.Fatal(err)
		}
		if got := doc.Get("Site"); got != want {
			t.Errorf("%s Site = %v, want %q", path, got, want)
		}
	}

	if err := p.AddTag("Site", types.FieldTypeString, "", attrs); !errors.Is(err, types.ErrFieldExists) {
		t.Errorf("duplicate AddTag() error = %v, want ErrFieldExists", err)
	}
}

func TestRemoveTag(t *testing.T) {
	p := newTestProject(t)
	seedScans(t, p)

	if err := p.RemoveTag("Age"); err != nil {
		t.Fatalf("RemoveTag() error: %v", err)
	}
	tag, err := p.Tag("Age")
	if err != nil {
		t.Fatal(err)
	}
	if tag != nil {
		t.Errorf("Age still declared: %+v", tag)
	}
	shown, _ := p.ShownTags()
	for _, name := range shown {
		if name == "Age" {
			t.Error("removed tag still shown")
		}
	}

	if err := p.RemoveTag(TagChecksum); !errors.Is(err, types.ErrInvalidName) {
		t.Errorf("RemoveTag(builtin) error = %v, want ErrInvalidName", err)
	}
}

func TestSetTagAttributes(t *testing.T) {
	p := newTestProject(t)
	seedScans(t, p)

	attrs := types.NewFieldAttributes(false, types.OriginUser).WithUnit(types.UnitMM).WithDefault("0")
	if err := p.SetTagAttributes(TagChecksum, attrs); err != nil {
		t.Fatalf("SetTagAttributes() error: %v", err)
	}
	tag, err := p.Tag(TagChecksum)
	if err != nil {
		t.Fatal(err)
	}
	got := tag.Attributes
	if got == nil || got.Visibility || got.Unit != types.UnitMM || got.DefaultValue == nil || *got.DefaultValue != "0" {
		t.Errorf("attributes = %+v", got)
	}
	if got.Origin != types.OriginBuiltin {
		t.Errorf("origin changed to %v", got.Origin)
	}
	shown, _ := p.ShownTags()
	for _, name := range shown {
		if name == TagChecksum {
			t.Error("hidden tag still shown")
		}
	}

	if err := p.SetTagAttributes("Missing", attrs); !errors.Is(err, types.ErrFieldNotFound) {
		t.Errorf("SetTagAttributes(Missing) error = %v, want ErrFieldNotFound", err)
	}
}

func TestSetShownTags(t *testing.T) {
	p := newTestProject(t)
	seedScans(t, p)

	if err := p.SetShownTags([]string{types.TagFileName, "Name"}); err != nil {
		t.Fatal(err)
	}
	shown, err := p.ShownTags()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{types.TagFileName, "Name"}, shown); diff != "" {
		t.Errorf("ShownTags() mismatch (-want +got):\n%s", diff)
	}
}

type recorder struct {
	phases []string
}

func (r *recorder) ObservePhase(phase string, _ time.Duration, _ int) {
	r.phases = append(r.phases, phase)
}

func TestSearch(t *testing.T) {
	rec := &recorder{}
	p := newTestProject(t, WithObserver(rec))
	seedScans(t, p)

	tests := []struct {
		name   string
		filter *filter.Filter
		want   []string
	}{
		{
			name:   "rapid search on a visible tag",
			filter: filter.New("f", nil, nil, nil, nil, nil, "alice"),
			want:   []string{"data/raw/alice_anat.nii"},
		},
		{
			name:   "empty search returns every scan",
			filter: filter.New("f", nil, nil, nil, nil, nil, ""),
			want:   []string{"data/raw/alice_anat.nii", "data/raw/bob_flash.nii", "data/raw/carol_notes.txt"},
		},
		{
			name:   "not defined search",
			filter: filter.New("f", nil, nil, nil, nil, nil, filter.NotDefined),
			want:   []string{"data/raw/alice_anat.nii", "data/raw/bob_flash.nii", "data/raw/carol_notes.txt"},
		},
		{
			name: "advanced search",
			filter: filter.New("f",
				[]string{"", "NOT"},
				[]interface{}{"Scan", "28"},
				[][]string{{TagType}, {"Age"}},
				[]string{"AND"},
				[]string{"==", "=="},
				""),
			want: []string{"data/raw/alice_anat.nii"},
		},
		{
			name: "rapid and advanced combined",
			filter: filter.New("f",
				[]string{""},
				[]interface{}{"30"},
				[][]string{{"Age"}},
				nil,
				[]string{"<"},
				"raw"),
			want: []string{"data/raw/bob_flash.nii"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Search(tt.filter)
			if err != nil {
				t.Fatalf("Search() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if len(rec.phases) != 2*len(tests) {
		t.Errorf("observer saw %d phases, want %d", len(rec.phases), 2*len(tests))
	}
}

func TestFilters(t *testing.T) {
	p := newTestProject(t)
	seedScans(t, p)

	names, err := p.Filters()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("new project has filters: %v", names)
	}

	young := filter.New("young", []string{""}, []interface{}{"30"}, [][]string{{"Age"}}, nil, []string{"<"}, "")
	scans := filter.New("scans", []string{""}, []interface{}{"Scan"}, [][]string{{TagType}}, nil, []string{"=="}, "")
	for _, f := range []*filter.Filter{young, scans} {
		if err := p.SaveFilter(f); err != nil {
			t.Fatalf("SaveFilter(%s) error: %v", f.Name, err)
		}
	}

	names, err = p.Filters()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"scans", "young"}, names); diff != "" {
		t.Errorf("Filters() mismatch (-want +got):\n%s", diff)
	}

	loaded, err := p.Filter("young")
	if err != nil {
		t.Fatalf("Filter() error: %v", err)
	}
	got, err := p.Search(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"data/raw/bob_flash.nii"}, got); diff != "" {
		t.Errorf("Search(saved filter) mismatch (-want +got):\n%s", diff)
	}

	if err := p.DeleteFilter("young"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Filter("young"); !errors.Is(err, ErrFilterNotFound) {
		t.Errorf("Filter() after delete error = %v, want ErrFilterNotFound", err)
	}
	if err := p.DeleteFilter("young"); !errors.Is(err, ErrFilterNotFound) {
		t.Errorf("second DeleteFilter() error = %v, want ErrFilterNotFound", err)
	}
}

func TestSaveFilterRejects(t *testing.T) {
	p := newTestProject(t)

	for _, name := range []string{"", "  ", "../escape", `a\b`, ".."} {
		f := filter.New(name, nil, nil, nil, nil, nil, "")
		if err := p.SaveFilter(f); !errors.Is(err, ErrFilterName) {
			t.Errorf("SaveFilter(%q) error = %v, want ErrFilterName", name, err)
		}
	}

	bad := filter.New("bad", []string{""}, []interface{}{"x"}, [][]string{{"Name"}}, nil, []string{"~="}, "")
	if err := p.SaveFilter(bad); !errors.Is(err, filter.ErrMalformedFilter) {
		t.Errorf("SaveFilter(malformed) error = %v, want ErrMalformedFilter", err)
	}
}
