package store

import (
	"fmt"
	"strings"
)

// Fragment renders the schema fragment for a table's key declaration:
// composite keys use the bracketed, plus-joined compound index syntax
// in declared order ("[spaceId+tagName]"), simple keys are the literal
// key field name.
func Fragment(keyFields []string) string {
	if len(keyFields) == 0 {
		return "id"
	}
	return "[" + strings.Join(keyFields, "+") + "]"
}

// ParseFragment parses a schema fragment back into its ordered key
// fields.
func ParseFragment(fragment string) ([]string, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, fmt.Errorf("empty schema fragment")
	}

	if strings.HasPrefix(fragment, "[") {
		if !strings.HasSuffix(fragment, "]") {
			return nil, fmt.Errorf("unterminated compound key fragment %q", fragment)
		}
		inner := fragment[1 : len(fragment)-1]
		fields := strings.Split(inner, "+")
		for i, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" {
				return nil, fmt.Errorf("empty field in compound key fragment %q", fragment)
			}
			fields[i] = f
		}
		return fields, nil
	}

	return []string{fragment}, nil
}
