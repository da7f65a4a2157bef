package force

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Lscheinman/odata/internal/odata"
)

// chunk splits items into groups of at most n. The service rejects filter
// expressions past a few dozen OR terms, so bulk reads go out in batches.
func chunk(items []string, n int) [][]string {
	if n <= 0 {
		n = len(items)
	}
	var out [][]string
	for i := 0; i < len(items); i += n {
		end := i + n
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// orFilter builds "field eq 'v1' or field eq 'v2' ..." with escaped literals.
func orFilter(field string, values []string) string {
	terms := make([]string, 0, len(values))
	for _, v := range values {
		terms = append(terms, fmt.Sprintf("%s eq '%s'", field, odata.EscapeLiteral(v)))
	}
	return strings.Join(terms, " or ")
}

// normalizeIDs trims, dedupes and sorts identifiers, dropping empties.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if t := strings.TrimSpace(id); t != "" {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
