package force

import (
	"sort"

	"github.com/Lscheinman/odata/api/schemas"
	"go.uber.org/zap"
)

// Index is a request-scoped identifier -> record mapping over one flat record
// set. Duplicate identifiers are resolved last-write-wins: paged reads are
// known to re-emit records, so a later page simply replaces the earlier copy.
type Index struct {
	idField string
	byID    map[string]schemas.Record

	// Dropped counts records that carried no identifier. They are excluded
	// from the index but never lost silently.
	Dropped int
}

// BuildIndex indexes the records by their natural identifier in one pass.
func BuildIndex(records []schemas.Record, idField string, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Index{
		idField: idField,
		byID:    make(map[string]schemas.Record, len(records)),
	}
	for _, rec := range records {
		id := rec.String(idField)
		if id == "" {
			idx.Dropped++
			continue
		}
		idx.byID[id] = rec
	}
	if idx.Dropped > 0 {
		logger.Named("index").Warn("Records without identifier excluded from index",
			zap.String("id_field", idField),
			zap.Int("dropped", idx.Dropped))
	}
	return idx
}

// Lookup returns the record for an identifier.
func (i *Index) Lookup(id string) (schemas.Record, bool) {
	rec, ok := i.byID[id]
	return rec, ok
}

// Len returns the number of indexed records.
func (i *Index) Len() int { return len(i.byID) }

// IDs returns all indexed identifiers, sorted.
func (i *Index) IDs() []string {
	ids := make([]string, 0, len(i.byID))
	for id := range i.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
