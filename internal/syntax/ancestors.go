// File: internal/syntax/ancestors.go
package syntax

import (
	"iter"

	sitter "github.com/smacker/go-tree-sitter"
)

// Ancestors yields node's parents from nearest to farthest, stopping after
// maxHops steps or at the tree root, whichever comes first. The sequence is
// lazy and restartable; guard and suppression checks rely on the bound to
// stay O(depth) on pathological trees.
func Ancestors(node *sitter.Node, maxHops int) iter.Seq[*sitter.Node] {
	return func(yield func(*sitter.Node) bool) {
		if node == nil {
			return
		}
		current := node.Parent()
		for hops := 0; current != nil && hops < maxHops; hops++ {
			if !yield(current) {
				return
			}
			current = current.Parent()
		}
	}
}

// EnclosingFunction returns the nearest function ancestor within maxHops, or
// nil when the node sits at top level.
func EnclosingFunction(node *sitter.Node, maxHops int) *sitter.Node {
	for anc := range Ancestors(node, maxHops) {
		if anc.Type() == "program" {
			return nil
		}
		if IsFunctionBoundary(anc) {
			return anc
		}
	}
	return nil
}

// Walk recursively visits the subtree rooted at node in depth-first order.
// Returning false from visit prunes that node's children.
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil || node.IsNull() {
		return
	}
	if !visit(node) {
		return
	}

	cursor := sitter.NewTreeCursor(node)
	defer cursor.Close()

	if cursor.GoToFirstChild() {
		for {
			Walk(cursor.CurrentNode(), visit)
			if !cursor.GoToNextSibling() {
				break
			}
		}
	}
}
