package testutil

import (
	_ "embed"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/nanotags/nanotags/project"
	"github.com/arthur-debert/nanotags/types"
)

//go:embed testdata/study.json
var studyJSON []byte

// StudyData gives typed access to the scans of the fixture study
type StudyData struct {
	// Subject 01, two sessions
	AliceT1   string // anat, Age 34, EchoTime [2.3]
	AliceBold string // func, Protocol mentions "anat" but is hidden

	// Subject 02
	BobT1    string // anat, Age 28
	BobFlash string // anat, multi-echo [5 10 15]

	// Subject 03, no Weight
	CarolDWI string // dwi, Age 41
	CarolT2  string // anat, EchoTime [80 120]

	// Subject 04, no Age, Weight or EchoTime; quote in the name
	DanT1 string

	// Not a scan: only Type is set
	ProtocolNotes string

	// All scan paths in insertion order
	All []string

	// Scan paths by fixture id
	ByID map[string]string
}

type fixtureTag struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Visible     bool   `json:"visible"`
	Unit        string `json:"unit"`
}

type fixtureScan struct {
	ID     string                 `json:"id"`
	Path   string                 `json:"path"`
	Values map[string]interface{} `json:"values"`
}

type fixtureData struct {
	Name  string        `json:"name"`
	Tags  []fixtureTag  `json:"tags"`
	Scans []fixtureScan `json:"scans"`
}

// LoadStudy creates a project in a temporary directory and fills it with
// the fixture study. The project is closed when the test ends.
func LoadStudy(t testing.TB, opts ...project.Option) (*project.Project, *StudyData) {
	t.Helper()

	var fixture fixtureData
	if err := json.Unmarshal(studyJSON, &fixture); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	p, err := project.Create(filepath.Join(t.TempDir(), fixture.Name), fixture.Name, opts...)
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	for _, tag := range fixture.Tags {
		fieldType, err := types.ParseFieldType(tag.Type)
		if err != nil {
			t.Fatalf("tag %s: %v", tag.Name, err)
		}
		unit, err := types.ParseUnit(tag.Unit)
		if err != nil {
			t.Fatalf("tag %s: %v", tag.Name, err)
		}
		attrs := types.NewFieldAttributes(tag.Visible, types.OriginUser).WithUnit(unit)
		if err := p.AddTag(tag.Name, fieldType, tag.Description, attrs); err != nil {
			t.Fatalf("failed to add tag %s: %v", tag.Name, err)
		}
	}

	study := &StudyData{ByID: make(map[string]string, len(fixture.Scans))}
	for _, scan := range fixture.Scans {
		if err := p.AddScan(scan.Path, scan.Values); err != nil {
			t.Fatalf("failed to add scan %s: %v", scan.ID, err)
		}
		study.All = append(study.All, scan.Path)
		study.ByID[scan.ID] = scan.Path

		switch scan.ID {
		case "alice-t1":
			study.AliceT1 = scan.Path
		case "alice-bold":
			study.AliceBold = scan.Path
		case "bob-t1":
			study.BobT1 = scan.Path
		case "bob-flash":
			study.BobFlash = scan.Path
		case "carol-dwi":
			study.CarolDWI = scan.Path
		case "carol-t2":
			study.CarolT2 = scan.Path
		case "dan-t1":
			study.DanT1 = scan.Path
		case "protocol-notes":
			study.ProtocolNotes = scan.Path
		}
	}
	return p, study
}

// Subject returns the scans of a subject, by PatientName prefix
func (s *StudyData) Subject(name string) []string {
	switch name {
	case "Alice":
		return []string{s.AliceT1, s.AliceBold}
	case "Bob":
		return []string{s.BobT1, s.BobFlash}
	case "Carol":
		return []string{s.CarolDWI, s.CarolT2}
	case "Dan":
		return []string{s.DanT1}
	}
	return nil
}
