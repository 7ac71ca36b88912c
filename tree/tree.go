// Package tree stores syntax trees as persistent values. A tree version
// never changes once built: edits and reparses produce new versions that
// share unchanged subtrees with their predecessors through a common
// append-only node store. Handles are cheap and positions are computed on
// the way down, so holding a Node does not pin per-node absolute offsets.
package tree

import (
	"fmt"
	"strings"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

// Tree is one immutable version of a syntax tree.
type Tree struct {
	table *grammar.Table
	store *nodeStore
	root  NodeID
	src   []byte
}

// Table returns the grammar the tree was parsed with.
func (t *Tree) Table() *grammar.Table {
	return t.table
}

// Root returns the root node.
func (t *Tree) Root() Node {
	return Node{tree: t, id: t.root, start: 0}
}

// Source returns the source snapshot the tree describes. Callers must not
// modify it.
func (t *Tree) Source() []byte {
	return t.src
}

// WithSource returns a view of the same tree version over a different
// source snapshot. Positions are not adjusted; the snapshot must match the
// tree's coordinates.
func (t *Tree) WithSource(src []byte) *Tree {
	return &Tree{table: t.table, store: t.store, root: t.root, src: src}
}

// Len returns the byte length of the source the tree covers.
func (t *Tree) Len() text.ByteOffset {
	return t.Root().Len()
}

// NodeCount returns the number of nodes reachable from the root.
func (t *Tree) NodeCount() int {
	count := 1
	for cur := t.Walk(); cur.Next(); {
		count++
	}
	return count
}

// Sexp renders the tree as an s-expression over named nodes, the
// conventional debugging format for syntax trees.
func (t *Tree) Sexp() string {
	var sb strings.Builder
	writeSexp(&sb, t.Root())
	return sb.String()
}

func writeSexp(sb *strings.Builder, n Node) {
	d := n.data()
	if n.IsLeaf() {
		switch {
		case d.flags.Has(FlagMissing):
			fmt.Fprintf(sb, "(MISSING %s)", n.Kind())
		case d.symbol == grammar.SymbolError:
			sb.WriteString("(ERROR)")
		case n.IsNamed():
			fmt.Fprintf(sb, "(%s)", n.Kind())
		default:
			fmt.Fprintf(sb, "%q", string(n.Text()))
		}
		return
	}
	named := n.IsNamed()
	if named {
		sb.WriteByte('(')
		sb.WriteString(n.Kind())
	}
	for i := 0; i < n.ChildCount(); i++ {
		if named || i > 0 {
			sb.WriteByte(' ')
		}
		writeSexp(sb, n.Child(i))
	}
	if named {
		sb.WriteByte(')')
	}
}

// Walk returns a depth-first cursor positioned at the root.
func (t *Tree) Walk() *Cursor {
	return &Cursor{
		tree:  t,
		stack: []cursorFrame{{id: t.root, start: 0, childIdx: -1}},
	}
}

type cursorFrame struct {
	id       NodeID
	start    text.ByteOffset
	childIdx int // index of this node in its parent, -1 at the root
}

// Cursor walks a tree depth first without allocating per step.
type Cursor struct {
	tree  *Tree
	stack []cursorFrame
}

// Node returns the node the cursor is on.
func (c *Cursor) Node() Node {
	top := c.stack[len(c.stack)-1]
	return Node{tree: c.tree, id: top.id, start: top.start}
}

// GotoFirstChild descends to the first child. It returns false on leaves.
func (c *Cursor) GotoFirstChild() bool {
	n := c.Node()
	if n.ChildCount() == 0 {
		return false
	}
	child := n.Child(0)
	c.stack = append(c.stack, cursorFrame{id: child.id, start: child.start, childIdx: 0})
	return true
}

// GotoNextSibling moves to the next sibling. It returns false on last
// children and at the root.
func (c *Cursor) GotoNextSibling() bool {
	if len(c.stack) < 2 {
		return false
	}
	top := c.stack[len(c.stack)-1]
	parent := c.stack[len(c.stack)-2]
	parentNode := Node{tree: c.tree, id: parent.id, start: parent.start}
	next := top.childIdx + 1
	if next >= parentNode.ChildCount() {
		return false
	}
	sibling := parentNode.Child(next)
	c.stack[len(c.stack)-1] = cursorFrame{id: sibling.id, start: sibling.start, childIdx: next}
	return true
}

// Next advances to the following node in preorder. It returns false once
// the walk is exhausted.
func (c *Cursor) Next() bool {
	if c.GotoFirstChild() {
		return true
	}
	for {
		if c.GotoNextSibling() {
			return true
		}
		if !c.GotoParent() {
			return false
		}
	}
}

// GotoParent ascends one level. It returns false at the root.
func (c *Cursor) GotoParent() bool {
	if len(c.stack) < 2 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

// ChangedRanges returns the byte ranges of newTree that differ structurally
// from old, merged and sorted. Subtrees shared between the versions compare
// equal by node identity without being visited.
func ChangedRanges(old, newTree *Tree) []text.Span {
	var out []text.Span
	diffNodes(old.Root(), newTree.Root(), &out)
	return mergeSpans(out)
}

func diffNodes(a, b Node, out *[]text.Span) {
	// Forked stores keep shared nodes at the same ID with identical
	// content, so matching identity means matching subtrees.
	if a.id == b.id && a.start == b.start {
		return
	}
	if a.IsNull() || b.IsNull() {
		if !b.IsNull() {
			*out = append(*out, b.Span())
		}
		return
	}
	if a.Symbol() != b.Symbol() || a.IsLeaf() != b.IsLeaf() {
		*out = append(*out, b.Span())
		return
	}
	if b.IsLeaf() {
		if a.Len() != b.Len() {
			*out = append(*out, b.Span())
		}
		return
	}
	// Pair children positionally; structural drift past the shorter list is
	// all changed.
	na, nb := a.ChildCount(), b.ChildCount()
	n := na
	if nb < n {
		n = nb
	}
	for i := 0; i < n; i++ {
		diffNodes(a.Child(i), b.Child(i), out)
	}
	for i := n; i < nb; i++ {
		*out = append(*out, b.Child(i).Span())
	}
}

func mergeSpans(spans []text.Span) []text.Span {
	if len(spans) == 0 {
		return nil
	}
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
