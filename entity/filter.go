package entity

import (
	"reflect"

	"github.com/resyncdb/resync/keys"
)

// transportParams are list parameters that shape the transport request
// rather than filter records, and are never matched against fields.
var transportParams = map[string]struct{}{
	"sort":   {},
	"order":  {},
	"fields": {},
}

// MatchesFilter reports whether a record satisfies every provided list
// parameter. Nil-valued and transport-level parameters are ignored;
// array-valued parameters are membership tests; reference-object fields
// compare by their id. All comparisons are string-coerced, so "5"
// matches 5 and "true" matches true. An empty parameter set matches
// every record.
func MatchesFilter(e Entity, params map[string]any) bool {
	for name, want := range params {
		if want == nil {
			continue
		}
		if _, exempt := transportParams[name]; exempt {
			continue
		}

		got := fieldValue(e, name)
		if isSlice(want) {
			if !memberOf(got, want) {
				return false
			}
			continue
		}
		if keys.PrimitiveString(got) != keys.PrimitiveString(want) {
			return false
		}
	}
	return true
}

// FilterEntities returns the records matching params, preserving their
// relative order. A nil parameter set returns the input unchanged;
// inputs are never mutated.
func FilterEntities(list []Entity, params map[string]any) []Entity {
	if params == nil {
		return list
	}

	defined := make(map[string]any, len(params))
	for name, v := range params {
		if v != nil {
			defined[name] = v
		}
	}
	if len(defined) == 0 {
		return list
	}

	out := make([]Entity, 0, len(list))
	for _, e := range list {
		if MatchesFilter(e, defined) {
			out = append(out, e)
		}
	}
	return out
}

// fieldValue resolves a record field for matching, comparing reference
// objects by their id rather than by the object itself.
func fieldValue(e Entity, name string) any {
	return keys.ExtractPrimitive(e[name])
}

func isSlice(v any) bool {
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// memberOf tests string-coerced membership of got in the slice want.
func memberOf(got any, want any) bool {
	gs := keys.PrimitiveString(got)
	rv := reflect.ValueOf(want)
	for i := 0; i < rv.Len(); i++ {
		if keys.PrimitiveString(rv.Index(i).Interface()) == gs {
			return true
		}
	}
	return false
}
