package types

import (
	"fmt"
	"strings"
)

// Origin tells whether a field was declared by the system or by a user.
type Origin int

const (
	OriginBuiltin Origin = iota
	OriginUser
)

// String returns the persisted form of the origin
func (o Origin) String() string {
	switch o {
	case OriginBuiltin:
		return "builtin"
	case OriginUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseOrigin parses the persisted form of an origin
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "builtin":
		return OriginBuiltin, nil
	case "user":
		return OriginUser, nil
	default:
		return 0, fmt.Errorf("%w: unknown origin %q", ErrInvalidValue, s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (o Origin) MarshalText() ([]byte, error) {
	if o != OriginBuiltin && o != OriginUser {
		return nil, fmt.Errorf("%w: origin %d", ErrInvalidValue, int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (o *Origin) UnmarshalText(text []byte) error {
	parsed, err := ParseOrigin(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Unit is the physical unit attached to a field's values.
// UnitNone is persisted as null.
type Unit int

const (
	UnitNone Unit = iota
	UnitMM
	UnitMS
	UnitHzPerPixel
	UnitDegree
	UnitMHz
)

var unitNames = map[Unit]string{
	UnitMM:         "mm",
	UnitMS:         "ms",
	UnitHzPerPixel: "Hz/pixel",
	UnitDegree:     "degree",
	UnitMHz:        "MHz",
}

// Units returns all units other than UnitNone, in declaration order.
func Units() []Unit {
	return []Unit{UnitMM, UnitMS, UnitHzPerPixel, UnitDegree, UnitMHz}
}

func (u Unit) String() string {
	if u == UnitNone {
		return "none"
	}
	if name, ok := unitNames[u]; ok {
		return name
	}
	return "unknown"
}

// ParseUnit accepts the persisted unit names; "" and "none" map to UnitNone.
func ParseUnit(s string) (Unit, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return UnitNone, nil
	}
	for u, name := range unitNames {
		if strings.EqualFold(name, s) {
			return u, nil
		}
	}
	return UnitNone, fmt.Errorf("%w: unknown unit %q", ErrInvalidValue, s)
}

// FieldAttributes is the metadata kept for every field of a collection.
type FieldAttributes struct {
	Visibility   bool
	Origin       Origin
	Unit         Unit
	DefaultValue *string
}

// NewFieldAttributes returns attributes with no unit and no default value.
func NewFieldAttributes(visible bool, origin Origin) FieldAttributes {
	return FieldAttributes{Visibility: visible, Origin: origin}
}

// WithDefault returns a copy of a carrying the given default value.
func (a FieldAttributes) WithDefault(value string) FieldAttributes {
	a.DefaultValue = &value
	return a
}

// WithUnit returns a copy of a carrying the given unit.
func (a FieldAttributes) WithUnit(u Unit) FieldAttributes {
	a.Unit = u
	return a
}
