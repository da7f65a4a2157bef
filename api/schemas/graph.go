package schemas

import "sort"

// -- Core Graph Models --
// These types represent the relationship network between organizational
// records. The graph is a directed multigraph: the same pair of nodes may be
// connected by several edges, one per relationship type.

// GraphNode wraps a record identifier together with the record it was built
// from. Nodes referenced only as a parent of some record carry a nil Record.
type GraphNode struct {
	ID     string `json:"id"`
	Record Record `json:"record,omitempty"`
}

// GraphEdge is a directed, relationship-tagged edge. Edges point child ->
// parent, mirroring the parent-pointer semantics of the source records.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Rel    string `json:"rel"`
}

// Graph holds the nodes and edges of one build. Both slices are kept sorted
// so repeated builds over the same records produce identical output.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Node returns the node with the given ID, if present.
func (g *Graph) Node(id string) (GraphNode, bool) {
	i := sort.Search(len(g.Nodes), func(i int) bool { return g.Nodes[i].ID >= id })
	if i < len(g.Nodes) && g.Nodes[i].ID == id {
		return g.Nodes[i], true
	}
	return GraphNode{}, false
}

// Sort orders nodes by ID and edges by (source, target, rel). Builders call
// this once after construction; Node relies on the node ordering.
func (g *Graph) Sort() {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		a, b := g.Edges[i], g.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Rel < b.Rel
	})
}
