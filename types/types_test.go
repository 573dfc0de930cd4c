package types

import (
	"errors"
	"testing"
)

func TestParseFieldType(t *testing.T) {
	tests := []struct {
		in      string
		want    FieldType
		wantErr bool
	}{
		{"string", FieldTypeString, false},
		{" INT ", FieldTypeInteger, false},
		{"list_date", FieldTypeListDate, false},
		{"list_list_int", "", true},
		{"complex", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFieldType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFieldType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidValue) {
			t.Errorf("ParseFieldType(%q) error %v does not wrap ErrInvalidValue", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFieldType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFieldTypeProperties(t *testing.T) {
	if len(FieldTypes()) != 16 {
		t.Errorf("FieldTypes() has %d entries, want 16", len(FieldTypes()))
	}
	for _, ft := range FieldTypes() {
		if !ft.Valid() {
			t.Errorf("%s is not valid", ft)
		}
		if ListOf(ft).Element() != ft.Element() {
			t.Errorf("ListOf(%s).Element() = %s", ft, ListOf(ft).Element())
		}
	}

	if !FieldTypeListFloat.IsNumeric() || !FieldTypeListFloat.IsList() {
		t.Error("list_float should be a numeric list")
	}
	if FieldTypeString.IsNumeric() || FieldTypeString.IsTemporal() {
		t.Error("string is neither numeric nor temporal")
	}
	if !FieldTypeTime.IsTemporal() || FieldTypeTime.IsList() {
		t.Error("time should be a temporal scalar")
	}
	if ListOf(FieldTypeListInteger) != FieldTypeListInteger {
		t.Error("ListOf should not nest lists")
	}
}

func TestOriginText(t *testing.T) {
	for _, o := range []Origin{OriginBuiltin, OriginUser} {
		text, err := o.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Origin
		if err := back.UnmarshalText(text); err != nil || back != o {
			t.Errorf("origin %v did not survive text form %q: %v", o, text, err)
		}
	}
	if _, err := Origin(7).MarshalText(); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("MarshalText(7) error = %v", err)
	}
	if _, err := ParseOrigin("system"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ParseOrigin(system) error = %v", err)
	}
}

func TestParseUnit(t *testing.T) {
	tests := map[string]Unit{
		"":         UnitNone,
		"none":     UnitNone,
		"mm":       UnitMM,
		"MS":       UnitMS,
		"Hz/pixel": UnitHzPerPixel,
		"degree":   UnitDegree,
		"mhz":      UnitMHz,
	}
	for in, want := range tests {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Errorf("ParseUnit(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseUnit("furlong"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ParseUnit(furlong) error = %v", err)
	}
	for _, u := range Units() {
		back, err := ParseUnit(u.String())
		if err != nil || back != u {
			t.Errorf("unit %v did not survive its name %q", u, u.String())
		}
	}
}

func TestFieldAttributesBuilders(t *testing.T) {
	base := NewFieldAttributes(true, OriginUser)
	withDefault := base.WithDefault("Undefined").WithUnit(UnitMM)

	if base.DefaultValue != nil || base.Unit != UnitNone {
		t.Error("builders modified the receiver")
	}
	if withDefault.DefaultValue == nil || *withDefault.DefaultValue != "Undefined" || withDefault.Unit != UnitMM {
		t.Errorf("unexpected attributes %+v", withDefault)
	}
}

func TestAttributesKey(t *testing.T) {
	key := AttributesKey(CollectionCurrent, "Exp Type")
	if key != "current|Exp Type" {
		t.Errorf("AttributesKey() = %q", key)
	}
	c, f, ok := SplitAttributesKey(key)
	if !ok || c != CollectionCurrent || f != "Exp Type" {
		t.Errorf("SplitAttributesKey(%q) = %q, %q, %v", key, c, f, ok)
	}
	if _, _, ok := SplitAttributesKey("nokey"); ok {
		t.Error("key without separator should not split")
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"FileName", "Exp Type", "Hz/pixel"} {
		if err := ValidateName("field", name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", "  ", "a|b", "{x}", "x}"} {
		if err := ValidateName("field", name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestDocumentGet(t *testing.T) {
	var nilDoc *Document
	if nilDoc.Get("x") != nil {
		t.Error("nil document should read as null")
	}
	doc := &Document{Key: "a", Values: map[string]interface{}{"Age": int64(3)}}
	if doc.Get("Age") != int64(3) || doc.Get("Missing") != nil {
		t.Errorf("unexpected values from %+v", doc)
	}
}
