package schemas

// TreeNode is one node of a rooted hierarchy. Children are ordered by ID
// ascending so a tree built twice from the same records renders identically.
type TreeNode struct {
	ID       string      `json:"id"`
	Record   Record      `json:"record,omitempty"`
	Depth    int         `json:"depth"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Walk visits the node and all descendants depth-first in child order.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *TreeNode) Count() int {
	total := 0
	n.Walk(func(*TreeNode) { total++ })
	return total
}
