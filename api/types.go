// Package api holds the shared value model for the facet engine: attribute
// keys, dynamically typed property values, and fragment locations. These are
// the only types that cross between the internal packages and consumers.
package api

import (
	"strconv"
)

// ParentCategory is the reserved attribute category whose edges point at an
// entity's parent. The display name of a parent edge is always empty.
const ParentCategory = "__parent__"

// AttrKey identifies one attribute definition by its (category, display name)
// pair. Two distinct pairs can stringify to the same external key; keeping
// the pair as the map key means they never collide inside the engine.
type AttrKey struct {
	Category string
	Name     string
}

// ParentKey is the reserved edge carrying an entity's parent pointer.
var ParentKey = AttrKey{Category: ParentCategory}

// String renders the external "{category}_{displayName}" form. Presentation
// use only — internal maps key on the AttrKey itself.
func (k AttrKey) String() string {
	return k.Category + "_" + k.Name
}

// IsParent reports whether this key is the reserved parent pointer.
func (k AttrKey) IsParent() bool {
	return k.Category == ParentCategory && k.Name == ""
}

// ValueKind tags the inferred type of a property value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindReal
)

// Value is a closed tagged union for a property value. The attribute store
// keeps values as opaque text; the concrete type is inferred when read, so
// only one of the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Str  string
	Num  int64
	Real float64
}

// Null is the explicit absent-value marker.
var Null = Value{Kind: KindNull}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue wraps an integer.
func IntValue(n int64) Value { return Value{Kind: KindInt, Num: n} }

// RealValue wraps a float.
func RealValue(f float64) Value { return Value{Kind: KindReal, Real: f} }

// Parse infers the concrete type of a raw textual value: integer first, then
// real, otherwise string. Empty text is a string, not null — null only comes
// from a missing value row.
func Parse(raw string) Value {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return IntValue(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return RealValue(f)
	}
	return StringValue(raw)
}

// IsNull reports whether the value is the absent marker.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsInt returns the value as an integer where that is lossless. Used for
// parent pointers, which are entity ids stored as text.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Num, true
	case KindString:
		n, err := strconv.ParseInt(v.Str, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// String renders the textual form of the value. Null renders empty.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Num, 10)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	default:
		return ""
	}
}

// Interface returns the natural Go representation (nil, string, int64 or
// float64) for JSON encoding at the presentation boundary.
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Num
	case KindReal:
		return v.Real
	default:
		return nil
	}
}

// Location is the decoded spatial placement of one entity: the fragment
// translation plus an axis-aligned bounding box. All coordinates are float32,
// matching the wire format's precision.
type Location struct {
	X, Y, Z          float32
	MinX, MinY, MinZ float32
	MaxX, MaxY, MaxZ float32
}
