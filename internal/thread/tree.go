package thread

import "github.com/noah-isme/discussion-api/internal/models"

// Node is an entry together with its direct replies.
type Node struct {
	Entry    *models.DiscussionEntry
	Children []*Node
}

// BuildTree links entries through their parent pointers in O(n). Sibling order follows
// input order, so callers pass entries sorted by creation. Entries that cannot be reached
// from a root (missing parent or cyclic chain) are returned as orphans.
func BuildTree(entries []models.DiscussionEntry) (roots []*Node, orphans []*models.DiscussionEntry) {
	nodes := make(map[string]*Node, len(entries))
	for i := range entries {
		nodes[entries[i].ID] = &Node{Entry: &entries[i]}
	}

	for i := range entries {
		node := nodes[entries[i].ID]
		if entries[i].ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*entries[i].ParentID]
		if !ok {
			orphans = append(orphans, node.Entry)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	reached := 0
	Walk(roots, func(*Node, int) bool {
		reached++
		return true
	})
	if reached+len(orphans) == len(entries) {
		return roots, orphans
	}

	// the remainder hangs off a cycle; report every unreached entry
	seen := make(map[string]struct{}, reached)
	Walk(roots, func(n *Node, _ int) bool {
		seen[n.Entry.ID] = struct{}{}
		return true
	})
	for _, orphan := range orphans {
		seen[orphan.ID] = struct{}{}
	}
	for i := range entries {
		if _, ok := seen[entries[i].ID]; !ok {
			orphans = append(orphans, nodes[entries[i].ID].Entry)
		}
	}
	return roots, orphans
}

// Walk visits nodes in pre-order with their position in the tree (roots at 0).
// Returning false from fn skips the node's replies.
func Walk(roots []*Node, fn func(n *Node, level int) bool) {
	type frame struct {
		node  *Node
		level int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.node, top.level) {
			continue
		}
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: top.node.Children[i], level: top.level + 1})
		}
	}
}

// Flatten returns entries in display order: each entry followed by its replies.
func Flatten(roots []*Node) []*models.DiscussionEntry {
	var out []*models.DiscussionEntry
	Walk(roots, func(n *Node, _ int) bool {
		out = append(out, n.Entry)
		return true
	})
	return out
}
