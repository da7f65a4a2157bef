package schemas

import (
	"fmt"
	"strings"
)

// Record is a single entity returned by the remote service. The payloads are
// schema-driven and loosely typed, so we keep them as a field-name -> value
// mapping and make presence checks explicit at every read site.
type Record map[string]any

// Has reports whether the field is present on the record, even if its value
// is empty.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns the field rendered as a trimmed string. Absent fields and
// nil values come back as the empty string, which callers treat the same as
// "not set" (the service pads unset parent pointers with blanks).
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
