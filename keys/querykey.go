package keys

import (
	"encoding/json"
	"sort"
)

// QueryKey is a hierarchical cache key. Any prefix of a key is itself a
// valid key, so invalidating a short prefix reaches every key beneath it.
type QueryKey []string

// HasPrefix reports whether k starts with the given prefix.
func (k QueryKey) HasPrefix(prefix QueryKey) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// Overlaps reports whether one key is a prefix of the other, in either
// direction. An invalidation event for a key reaches every subscriber
// whose prefix overlaps it.
func (k QueryKey) Overlaps(other QueryKey) bool {
	return k.HasPrefix(other) || other.HasPrefix(k)
}

// Encode renders the key as a single stable string suitable for use as
// a map key.
func (k QueryKey) Encode() string {
	b, _ := json.Marshal([]string(k))
	return string(b)
}

// Factory builds the query keys for one resource.
type Factory struct {
	resource  string
	keyFields []string
}

// NewFactory creates a query key factory bound to a resource name and
// its declared key fields.
func NewFactory(resource string, keyFields []string) *Factory {
	return &Factory{resource: resource, keyFields: keyFields}
}

// All is the top-level key for the resource; every list and detail key
// shares this prefix.
func (f *Factory) All() QueryKey {
	return QueryKey{f.resource}
}

// Lists is the prefix shared by every list key for the resource.
func (f *Factory) Lists() QueryKey {
	return QueryKey{f.resource, "list"}
}

// List is the key for a list query with the given parameters. Nil or
// empty parameters collapse to the Lists prefix.
func (f *Factory) List(params map[string]any) QueryKey {
	if len(params) == 0 {
		return f.Lists()
	}
	return QueryKey{f.resource, "list", SerializeParams(params)}
}

// Detail is the key for a single entity, addressed by its serialized
// identifier.
func (f *Factory) Detail(id ID) (QueryKey, error) {
	s, err := Serialize(id, f.keyFields)
	if err != nil {
		return nil, err
	}
	return QueryKey{f.resource, "detail", s}, nil
}

// DetailSerialized is Detail for an identifier that is already in
// serialized form.
func (f *Factory) DetailSerialized(id string) QueryKey {
	return QueryKey{f.resource, "detail", id}
}

// SerializeParams renders list parameters as a stable string: keys are
// sorted and nil values dropped, so two equal parameter sets always
// produce the same key element.
func SerializeParams(params map[string]any) string {
	names := make([]string, 0, len(params))
	for name, v := range params {
		if v == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	buf := []byte{'{'}
	for i, name := range names {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, _ := json.Marshal(name)
		v, err := json.Marshal(params[name])
		if err != nil {
			v = []byte(`null`)
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	buf = append(buf, '}')
	return string(buf)
}
