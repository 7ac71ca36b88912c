package parser

import (
	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
	"github.com/grindlemire/go-tui/tree"
)

// reuseSource serves clean subtrees of the previous version during a
// reparse. The tree it holds has already been position-adjusted for the
// edits, so node spans are in new-source coordinates.
type reuseSource struct {
	old    *tree.Tree
	damage []text.Span
}

func (r *reuseSource) damaged(span text.Span) bool {
	for _, d := range r.damage {
		if span.Intersects(d) || d.Contains(span.Start) {
			return true
		}
	}
	return false
}

// candidate returns the largest reusable subtree starting exactly at off,
// given the parser's current state. A subtree is reusable when an edit did
// not touch it, it contains no errors, and it was originally parsed from
// the same automaton state, which makes the parser's treatment of it
// identical.
func (r *reuseSource) candidate(off text.ByteOffset, state grammar.StateID) (tree.Node, bool) {
	n := r.old.Root()
	for !n.IsNull() {
		span := n.Span()
		if span.Start == off &&
			!span.IsEmpty() &&
			n.ChildCount() > 0 &&
			!n.IsExtra() &&
			!n.Flags().Has(tree.FlagChanged) &&
			!n.HasError() &&
			!r.damaged(span) &&
			n.State() == state {
			return n, true
		}
		var next tree.Node
		for i := 0; i < n.ChildCount(); i++ {
			c := n.Child(i)
			cs := c.Span()
			if cs.Contains(off) {
				next = c
				break
			}
		}
		n = next
	}
	return tree.Node{}, false
}
