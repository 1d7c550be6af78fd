package resource

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/resyncdb/resync/keys"
)

// BuildIDURL joins the base URL with the identifier's path segments:
// one segment per key field in declared order for composite keys, a
// single segment for simple keys.
func BuildIDURL(baseURL string, id keys.ID, keyFields []string) (string, error) {
	base := strings.TrimRight(baseURL, "/")

	if !id.IsComposite() {
		return base + "/" + url.PathEscape(keys.PrimitiveString(id.Value())), nil
	}

	segments := make([]string, 0, len(keyFields))
	for _, field := range keyFields {
		v, ok := id.Field(field)
		if !ok {
			return "", fmt.Errorf("identifier missing key field %q", field)
		}
		segments = append(segments, url.PathEscape(keys.PrimitiveString(keys.ExtractPrimitive(v))))
	}
	return base + "/" + strings.Join(segments, "/"), nil
}

// BuildURL serializes list parameters onto a path. Scalars and booleans
// become ordinary encoded query parameters. Array values are joined
// with commas into a single parameter appended manually, not repeated
// keys; the existing backend expects this exact encoding. Pathname,
// pre-existing query parameters, and fragment are preserved.
func BuildURL(path string, params map[string]any) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}

	names := make([]string, 0, len(params))
	for name, v := range params {
		if v != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	q := u.Query()
	var arrayParams []string
	for _, name := range names {
		v := params[name]
		if items, ok := sliceValues(v); ok {
			encoded := make([]string, len(items))
			for i, item := range items {
				encoded[i] = url.QueryEscape(keys.PrimitiveString(item))
			}
			arrayParams = append(arrayParams,
				url.QueryEscape(name)+"="+strings.Join(encoded, ","))
			continue
		}
		q.Set(name, keys.PrimitiveString(v))
	}

	rawQuery := q.Encode()
	for _, p := range arrayParams {
		if rawQuery != "" {
			rawQuery += "&"
		}
		rawQuery += p
	}
	u.RawQuery = rawQuery
	return u.String(), nil
}

// sliceValues generalizes over the slice types list parameters arrive
// as.
func sliceValues(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
