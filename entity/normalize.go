package entity

import "github.com/resyncdb/resync/keys"

// Normalize produces the storage form of an entity: for each declared
// key field, a nested reference object is replaced by its primitive id
// so the local store can index it. Non-key fields are never touched,
// and the input is never mutated. With no key fields configured this is
// a no-op.
func Normalize(e Entity, keyFields []string) Entity {
	if len(keyFields) == 0 || e == nil {
		return e
	}

	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	for _, field := range keyFields {
		if v, ok := out[field]; ok {
			out[field] = keys.ExtractPrimitive(v)
		}
	}
	return out
}

// NormalizeMany maps Normalize over a sequence, preserving order.
func NormalizeMany(list []Entity, keyFields []string) []Entity {
	if len(keyFields) == 0 || list == nil {
		return list
	}
	out := make([]Entity, len(list))
	for i, e := range list {
		out[i] = Normalize(e, keyFields)
	}
	return out
}
