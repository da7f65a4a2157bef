package force

import (
	"sort"

	"github.com/Lscheinman/odata/api/schemas"
	"github.com/Lscheinman/odata/internal/odata"
	"go.uber.org/zap"
)

// GraphBuilder assembles directed multigraphs from the parent pointers of a
// flat record set, one tagged edge per relationship type.
type GraphBuilder struct {
	idField string
	log     *zap.Logger
}

// NewGraphBuilder creates a builder keyed on the given identifier field.
func NewGraphBuilder(idField string, logger *zap.Logger) *GraphBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphBuilder{idField: idField, log: logger.Named("graphbuilder")}
}

// Build emits one child->parent edge per record and relationship type whose
// parent field is present and non-empty. relFields maps relationship type ->
// parent field. Parents referenced from outside the record set still get a
// node, just without a record attached.
func (b *GraphBuilder) Build(records []schemas.Record, relFields map[string]string) *schemas.Graph {
	idx := BuildIndex(records, b.idField, b.log)

	g := &schemas.Graph{}
	nodeSeen := make(map[string]struct{}, idx.Len())
	for _, id := range idx.IDs() {
		rec, _ := idx.Lookup(id)
		g.Nodes = append(g.Nodes, schemas.GraphNode{ID: id, Record: rec})
		nodeSeen[id] = struct{}{}
	}

	// Stable iteration over relationship types keeps edge dedupe and output
	// independent of map order.
	relTypes := make([]string, 0, len(relFields))
	for rel := range relFields {
		relTypes = append(relTypes, rel)
	}
	sort.Strings(relTypes)

	edgeSeen := make(map[schemas.GraphEdge]struct{})
	for _, id := range idx.IDs() {
		rec, _ := idx.Lookup(id)
		for _, rel := range relTypes {
			parent := rec.String(relFields[rel])
			if parent == "" {
				continue
			}
			edge := schemas.GraphEdge{Source: id, Target: parent, Rel: rel}
			if _, dup := edgeSeen[edge]; dup {
				continue
			}
			edgeSeen[edge] = struct{}{}
			g.Edges = append(g.Edges, edge)

			if _, ok := nodeSeen[parent]; !ok {
				nodeSeen[parent] = struct{}{}
				g.Nodes = append(g.Nodes, schemas.GraphNode{ID: parent})
			}
		}
	}

	g.Sort()
	b.log.Debug("Graph built",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("rel_types", len(relTypes)))
	return g
}

// Subgraph extracts the neighborhood of centerID within radius hops. Edges
// are treated as undirected for reachability; the induced edges keep their
// original direction. The visited set makes the expansion safe on cyclic
// graphs.
func (b *GraphBuilder) Subgraph(g *schemas.Graph, centerID string, radius int) (*schemas.Graph, error) {
	if _, ok := g.Node(centerID); !ok {
		return nil, &odata.NotFoundError{Resource: "node", Key: centerID}
	}

	neighbors := make(map[string][]string)
	for _, e := range g.Edges {
		neighbors[e.Source] = append(neighbors[e.Source], e.Target)
		neighbors[e.Target] = append(neighbors[e.Target], e.Source)
	}

	visited := map[string]struct{}{centerID: {}}
	frontier := []string{centerID}
	for hop := 0; hop < radius && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, n := range neighbors[id] {
				if _, seen := visited[n]; !seen {
					visited[n] = struct{}{}
					next = append(next, n)
				}
			}
		}
		frontier = next
	}

	sub := &schemas.Graph{}
	for _, n := range g.Nodes {
		if _, ok := visited[n.ID]; ok {
			sub.Nodes = append(sub.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		_, srcIn := visited[e.Source]
		_, dstIn := visited[e.Target]
		if srcIn && dstIn {
			sub.Edges = append(sub.Edges, e)
		}
	}
	sub.Sort()
	return sub, nil
}

// FilterEdgesByRel keeps only edges tagged with one of the given relationship
// types.
func FilterEdgesByRel(edges []schemas.GraphEdge, relTypes []string) []schemas.GraphEdge {
	allowed := make(map[string]struct{}, len(relTypes))
	for _, r := range relTypes {
		allowed[r] = struct{}{}
	}
	var out []schemas.GraphEdge
	for _, e := range edges {
		if _, ok := allowed[e.Rel]; ok {
			out = append(out, e)
		}
	}
	return out
}
