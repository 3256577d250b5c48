package models

// Value is a cache entry tagged with its shape. Only the field matching Shape
// is meaningful; set members are carried in Items.
type Value struct {
	Shape  Shape
	Scalar any
	Map    map[string]any
	Items  []any
}

// ScalarValue wraps a single value.
func ScalarValue(v any) Value {
	return Value{Shape: ShapeScalar, Scalar: v}
}

// MapValue wraps hash fields.
func MapValue(m map[string]any) Value {
	return Value{Shape: ShapeMap, Map: m}
}

// ListValue wraps ordered list items.
func ListValue(items []any) Value {
	return Value{Shape: ShapeList, Items: items}
}

// SetValue wraps set members.
func SetValue(members []any) Value {
	return Value{Shape: ShapeSet, Items: members}
}
