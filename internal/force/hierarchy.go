package force

import (
	"sort"

	"github.com/Lscheinman/odata/api/schemas"
	"github.com/Lscheinman/odata/internal/odata"
	"go.uber.org/zap"
)

// Hierarchy builds rooted trees and ancestor paths over a flat record set.
// The records are self referential through several independent parent-pointer
// fields; every call names the one field that defines the hierarchy being
// built, so no relationship semantics are baked in here.
type Hierarchy struct {
	idField string
	log     *zap.Logger
}

// NewHierarchy creates a builder keyed on the given identifier field.
func NewHierarchy(idField string, logger *zap.Logger) *Hierarchy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hierarchy{idField: idField, log: logger.Named("hierarchy")}
}

// TreeStats is the accounting a BuildTree call hands back alongside the tree.
// Cycle skips are reported here rather than raised: a cyclic parent pointer
// below the root is bad data, but the rest of the tree is still usable.
type TreeStats struct {
	Nodes           int
	MaxDepthReached int
	SkippedCycles   int
	CycleIDs        []string
	DroppedRecords  int
}

// BuildTree constructs the tree rooted at rootID following parentField, to at
// most maxDepth levels below the root (0 = root only). Nodes beyond the depth
// bound are omitted. No identifier is visited twice within one call, so
// cyclic or duplicated parent pointers cannot loop the traversal.
func (h *Hierarchy) BuildTree(records []schemas.Record, rootID, parentField string, maxDepth int) (*schemas.TreeNode, *TreeStats, error) {
	idx := BuildIndex(records, h.idField, h.log)
	stats := &TreeStats{DroppedRecords: idx.Dropped}

	rootRec, ok := idx.Lookup(rootID)
	if !ok {
		return nil, nil, &odata.NotFoundError{Resource: "record", Key: rootID}
	}

	// Group children by the parent value of the chosen field. Only indexed
	// records participate; order by ID for deterministic output.
	children := make(map[string][]string)
	for _, id := range idx.IDs() {
		rec, _ := idx.Lookup(id)
		if parent := rec.String(parentField); parent != "" {
			children[parent] = append(children[parent], id)
		}
	}
	for parent := range children {
		sort.Strings(children[parent])
	}

	root := &schemas.TreeNode{ID: rootID, Record: rootRec, Depth: 0}
	visited := map[string]struct{}{rootID: {}}
	stats.Nodes = 1

	var expand func(n *schemas.TreeNode)
	expand = func(n *schemas.TreeNode) {
		if n.Depth >= maxDepth {
			return
		}
		for _, childID := range children[n.ID] {
			if _, seen := visited[childID]; seen {
				stats.SkippedCycles++
				stats.CycleIDs = append(stats.CycleIDs, childID)
				continue
			}
			visited[childID] = struct{}{}

			rec, _ := idx.Lookup(childID)
			child := &schemas.TreeNode{ID: childID, Record: rec, Depth: n.Depth + 1}
			n.Children = append(n.Children, child)
			stats.Nodes++
			if child.Depth > stats.MaxDepthReached {
				stats.MaxDepthReached = child.Depth
			}
			expand(child)
		}
	}
	expand(root)

	if stats.SkippedCycles > 0 {
		h.log.Warn("Cyclic parent pointers skipped during tree build",
			zap.String("root", rootID),
			zap.String("parent_field", parentField),
			zap.Int("skipped", stats.SkippedCycles),
			zap.Strings("ids", stats.CycleIDs))
	}
	return root, stats, nil
}

// Path walks parent pointers upward from nodeID and returns the ancestors,
// nearest first. The walk stops at a missing or empty parent pointer, or at a
// parent referenced but absent from the record set. A cycle on the ancestor
// chain is corrupt source data and surfaces as *odata.AmbiguousHierarchyError
// instead of being silently truncated.
func (h *Hierarchy) Path(records []schemas.Record, nodeID, parentField string) ([]schemas.Record, error) {
	idx := BuildIndex(records, h.idField, h.log)

	cur, ok := idx.Lookup(nodeID)
	if !ok {
		return nil, &odata.NotFoundError{Resource: "record", Key: nodeID}
	}

	visited := map[string]struct{}{nodeID: {}}
	chain := []string{nodeID}
	var path []schemas.Record

	for {
		parent := cur.String(parentField)
		if parent == "" {
			return path, nil
		}
		if _, seen := visited[parent]; seen {
			return nil, &odata.AmbiguousHierarchyError{
				NodeID:      nodeID,
				ParentField: parentField,
				Cycle:       append(chain, parent),
			}
		}
		rec, ok := idx.Lookup(parent)
		if !ok {
			// Pointer leads outside the record set; nothing left to walk.
			return path, nil
		}
		visited[parent] = struct{}{}
		chain = append(chain, parent)
		path = append(path, rec)
		cur = rec
	}
}
