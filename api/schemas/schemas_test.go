package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	t.Parallel()

	record := Record{
		"Name":    "  1st Battalion ",
		"Parent":  nil,
		"Count":   float64(12),
		"Blank":   "",
		"Percent": 85.5,
	}

	t.Run("should report presence independently of the value", func(t *testing.T) {
		t.Parallel()
		assert.True(t, record.Has("Parent"))
		assert.True(t, record.Has("Blank"))
		assert.False(t, record.Has("Missing"))
	})

	t.Run("should render trimmed strings", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "1st Battalion", record.String("Name"))
		assert.Equal(t, "12", record.String("Count"))
		assert.Equal(t, "85.5", record.String("Percent"))
	})

	t.Run("should render absent and nil values as empty", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, record.String("Parent"))
		assert.Empty(t, record.String("Missing"))
	})
}

func TestGraph(t *testing.T) {
	t.Parallel()

	t.Run("should sort nodes and edges deterministically", func(t *testing.T) {
		t.Parallel()
		g := &Graph{
			Nodes: []GraphNode{{ID: "C"}, {ID: "A"}, {ID: "B"}},
			Edges: []GraphEdge{
				{Source: "B", Target: "A", Rel: "x"},
				{Source: "A", Target: "C", Rel: "y"},
				{Source: "A", Target: "B", Rel: "z"},
				{Source: "A", Target: "B", Rel: "a"},
			},
		}
		g.Sort()

		assert.Equal(t, "A", g.Nodes[0].ID)
		assert.Equal(t, "C", g.Nodes[2].ID)
		assert.Equal(t, GraphEdge{Source: "A", Target: "B", Rel: "a"}, g.Edges[0])
		assert.Equal(t, GraphEdge{Source: "B", Target: "A", Rel: "x"}, g.Edges[3])
	})

	t.Run("should find nodes after sorting", func(t *testing.T) {
		t.Parallel()
		g := &Graph{Nodes: []GraphNode{{ID: "B"}, {ID: "A"}}}
		g.Sort()

		node, ok := g.Node("B")
		require.True(t, ok)
		assert.Equal(t, "B", node.ID)

		_, ok = g.Node("Z")
		assert.False(t, ok)
	})
}

func TestTreeNode(t *testing.T) {
	t.Parallel()

	tree := &TreeNode{ID: "A", Children: []*TreeNode{
		{ID: "B", Depth: 1, Children: []*TreeNode{{ID: "D", Depth: 2}}},
		{ID: "C", Depth: 1},
	}}

	t.Run("should walk depth first in child order", func(t *testing.T) {
		t.Parallel()
		var order []string
		tree.Walk(func(n *TreeNode) { order = append(order, n.ID) })
		assert.Equal(t, []string{"A", "B", "D", "C"}, order)
	})

	t.Run("should count all nodes", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 4, tree.Count())
	})

	t.Run("should tolerate a nil receiver in Walk", func(t *testing.T) {
		t.Parallel()
		var nilTree *TreeNode
		nilTree.Walk(func(*TreeNode) { t.Error("must not be visited") })
	})
}

func TestReadinessSnapshot(t *testing.T) {
	t.Parallel()

	overall := 72
	assert.False(t, ReadinessSnapshot{Overall: &overall}.Unavailable())
	assert.True(t, ReadinessSnapshot{Status: StatusUnknown}.Unavailable())
}
