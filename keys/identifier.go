// Package keys provides identifier extraction, serialization, and
// store-key construction for resources keyed by a single primary field
// or by an ordered set of composite key fields.
package keys

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a tagged identifier: either a single primitive value (simple)
// or an ordered mapping of key fields to primitive values (composite).
// The tag is explicit so callers never have to probe the shape of the
// underlying value.
type ID struct {
	simple    any
	composite map[string]any
}

// Simple wraps a single primitive value as an identifier.
func Simple(value any) ID {
	return ID{simple: value}
}

// Composite wraps a field-to-primitive mapping as an identifier.
func Composite(values map[string]any) ID {
	return ID{composite: values}
}

// IsComposite reports whether the identifier carries composite key values.
func (id ID) IsComposite() bool {
	return id.composite != nil
}

// Value returns the primitive value of a simple identifier.
func (id ID) Value() any {
	return id.simple
}

// Field returns the primitive value for a composite key field.
func (id ID) Field(name string) (any, bool) {
	v, ok := id.composite[name]
	return v, ok
}

// NewID converts a caller-supplied identifier value into a tagged ID.
// With no key fields the value is taken as-is. With key fields the value
// must be a map carrying every declared field; nested reference objects
// are unwrapped to their primitive id.
func NewID(value any, keyFields []string) (ID, error) {
	if len(keyFields) == 0 {
		return Simple(value), nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return ID{}, fmt.Errorf("composite identifier must be a map of key fields, got %T", value)
	}

	values := make(map[string]any, len(keyFields))
	for _, field := range keyFields {
		raw, ok := m[field]
		if !ok {
			return ID{}, fmt.Errorf("composite identifier missing key field %q", field)
		}
		prim, err := primitiveForField(field, raw)
		if err != nil {
			return ID{}, err
		}
		values[field] = prim
	}
	return Composite(values), nil
}

// ExtractPrimitive unwraps one level of reference-object nesting: a map
// carrying an "id" entry yields that id, anything else passes through
// unchanged.
func ExtractPrimitive(v any) any {
	if m, ok := v.(map[string]any); ok {
		if id, ok := m["id"]; ok {
			return id
		}
	}
	return v
}

// EntityID extracts the identifier from an entity. Without key fields it
// is the entity's "id" value; with key fields it is a composite ID built
// from each declared field, unwrapping reference objects. A reference
// object without an id, or a missing key field, is a type violation and
// returns an error rather than a partial identifier.
func EntityID(entity map[string]any, keyFields []string) (ID, error) {
	if len(keyFields) == 0 {
		v, ok := entity["id"]
		if !ok {
			return ID{}, fmt.Errorf("entity has no id field")
		}
		return Simple(v), nil
	}

	values := make(map[string]any, len(keyFields))
	for _, field := range keyFields {
		raw, ok := entity[field]
		if !ok {
			return ID{}, fmt.Errorf("entity missing key field %q", field)
		}
		prim, err := primitiveForField(field, raw)
		if err != nil {
			return ID{}, err
		}
		values[field] = prim
	}
	return Composite(values), nil
}

// Serialize renders an identifier as a stable string. Simple identifiers
// stringify directly. Composite identifiers serialize as a JSON object
// whose keys appear in declared key-field order, so two semantically
// equal identifiers always serialize identically regardless of how the
// source map was built.
func Serialize(id ID, keyFields []string) (string, error) {
	if !id.IsComposite() {
		return PrimitiveString(id.simple), nil
	}

	buf := []byte{'{'}
	for i, field := range keyFields {
		v, ok := id.composite[field]
		if !ok {
			return "", fmt.Errorf("identifier missing key field %q", field)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		name, err := json.Marshal(field)
		if err != nil {
			return "", err
		}
		val, err := json.Marshal(ExtractPrimitive(v))
		if err != nil {
			return "", fmt.Errorf("serializing key field %q: %w", field, err)
		}
		buf = append(buf, name...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return string(buf), nil
}

// StoreKey converts an identifier into the key shape the local store
// indexes on: composite identifiers become an ordered slice of primitive
// values matching the compound index order, simple identifiers pass
// through unchanged.
func StoreKey(id ID, keyFields []string) (any, error) {
	if !id.IsComposite() {
		return id.simple, nil
	}

	parts := make([]any, 0, len(keyFields))
	for _, field := range keyFields {
		v, ok := id.composite[field]
		if !ok {
			return nil, fmt.Errorf("identifier missing key field %q", field)
		}
		parts = append(parts, ExtractPrimitive(v))
	}
	return parts, nil
}

// PrimitiveString coerces a primitive value to its canonical string
// form. JSON numbers arrive as float64; integral values render without
// a fractional part so "5" and 5 compare equal after coercion.
func PrimitiveString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// primitiveForField unwraps a key field value to its primitive,
// rejecting reference objects that lack an id.
func primitiveForField(field string, raw any) (any, error) {
	if m, ok := raw.(map[string]any); ok {
		id, ok := m["id"]
		if !ok {
			return nil, fmt.Errorf("key field %q is a reference object without an id", field)
		}
		return id, nil
	}
	return raw, nil
}
