package tree

import (
	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

// NodeFlags carry per-node metadata bits.
type NodeFlags uint8

// NodeFlags values.
const (
	// FlagError marks a node covering input the grammar rejected.
	FlagError NodeFlags = 1 << iota
	// FlagMissing marks a zero-width terminal fabricated during recovery.
	FlagMissing
	// FlagExtra marks a terminal attached outside grammar positions.
	FlagExtra
	// FlagExternal marks a terminal produced by an external scanner.
	FlagExternal
	// FlagChanged marks nodes an edit touched; reuse skips them.
	FlagChanged
	// FlagHasError marks nodes whose subtree contains an error or missing
	// node.
	FlagHasError
)

// Has reports whether all bits in mask are set.
func (f NodeFlags) Has(mask NodeFlags) bool {
	return f&mask == mask
}

// Node is a handle on one syntax node. The zero Node is null; check IsNull
// before use. Handles stay cheap: a tree pointer, an ID, and the node's
// absolute start offset.
type Node struct {
	tree  *Tree
	id    NodeID
	start text.ByteOffset
}

// IsNull reports whether the handle refers to no node.
func (n Node) IsNull() bool {
	return n.id == NilNode
}

// ID returns the node's identity within its tree version. Nodes shared
// between versions keep their ID.
func (n Node) ID() NodeID {
	return n.id
}

func (n Node) data() *nodeData {
	return n.tree.store.get(n.id)
}

// Symbol returns the grammar symbol of the node.
func (n Node) Symbol() grammar.Symbol {
	return n.data().symbol
}

// Kind returns the display name of the node's symbol.
func (n Node) Kind() string {
	return n.tree.table.SymbolName(n.data().symbol)
}

// Span returns the byte range the node covers.
func (n Node) Span() text.Span {
	return text.Span{Start: n.start, End: n.start + n.data().size}
}

// Len returns the byte length of the node.
func (n Node) Len() text.ByteOffset {
	return n.data().size
}

// Flags returns the node's metadata bits.
func (n Node) Flags() NodeFlags {
	return n.data().flags
}

// IsError reports whether the node itself is an error node.
func (n Node) IsError() bool {
	return n.data().flags.Has(FlagError)
}

// IsMissing reports whether the node was fabricated during recovery.
func (n Node) IsMissing() bool {
	return n.data().flags.Has(FlagMissing)
}

// IsExtra reports whether the node sits outside grammar positions.
func (n Node) IsExtra() bool {
	return n.data().flags.Has(FlagExtra)
}

// HasError reports whether the node's subtree contains any error or missing
// node.
func (n Node) HasError() bool {
	return n.data().flags&(FlagError|FlagMissing|FlagHasError) != 0
}

// IsNamed reports whether the node appears in name-based traversals. Hidden
// grammar symbols and error nodes without a symbol are unnamed.
func (n Node) IsNamed() bool {
	d := n.data()
	if d.symbol == grammar.SymbolError {
		return true
	}
	return !n.tree.table.IsHidden(d.symbol)
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return len(n.data().children) == 0
}

// State returns the parse state recorded when the node was built. Subtree
// reuse requires the state to match.
func (n Node) State() grammar.StateID {
	return n.data().state
}

// Production returns the production index that built an interior node.
func (n Node) Production() uint16 {
	return n.data().production
}

// ChildCount returns the number of children, extras included.
func (n Node) ChildCount() int {
	return len(n.data().children)
}

// Child returns the i-th child, or a null node when out of range.
func (n Node) Child(i int) Node {
	children := n.data().children
	if i < 0 || i >= len(children) {
		return Node{}
	}
	ref := children[i]
	return Node{tree: n.tree, id: ref.id, start: n.start + ref.offset}
}

// NamedChild returns the i-th named child, descending through hidden nodes
// is not performed; hidden and extra children are skipped.
func (n Node) NamedChild(i int) Node {
	count := 0
	for c := 0; c < n.ChildCount(); c++ {
		child := n.Child(c)
		if !child.IsNamed() || child.IsExtra() {
			continue
		}
		if count == i {
			return child
		}
		count++
	}
	return Node{}
}

// NamedChildCount returns the number of named, non-extra children.
func (n Node) NamedChildCount() int {
	count := 0
	for c := 0; c < n.ChildCount(); c++ {
		child := n.Child(c)
		if child.IsNamed() && !child.IsExtra() {
			count++
		}
	}
	return count
}

// ChildAt returns the deepest named descendant covering the offset, or the
// node itself when no child covers it.
func (n Node) ChildAt(off text.ByteOffset) Node {
	cur := n
	for {
		next := Node{}
		for i := 0; i < cur.ChildCount(); i++ {
			child := cur.Child(i)
			if child.Span().Contains(off) {
				next = child
				break
			}
		}
		if next.IsNull() {
			return cur
		}
		cur = next
	}
}

// Parent returns the node's parent, or a null node for the root. Parents are
// found by walking from the root, so repeated calls from deep nodes cost
// proportional to depth.
func (n Node) Parent() Node {
	if n.id == n.tree.root {
		return Node{}
	}
	cur := Node{tree: n.tree, id: n.tree.root, start: 0}
	for {
		var next Node
		for i := 0; i < cur.ChildCount(); i++ {
			child := cur.Child(i)
			if child.id == n.id && child.start == n.start {
				return cur
			}
			span := child.Span()
			if span.Contains(n.start) || span.Start == n.start && span.IsEmpty() {
				if next.IsNull() {
					next = child
				}
			}
		}
		if next.IsNull() {
			return Node{}
		}
		cur = next
	}
}

// Text returns the source bytes the node covers.
func (n Node) Text() []byte {
	span := n.Span()
	if int(span.End) > len(n.tree.src) {
		return nil
	}
	return n.tree.src[span.Start:span.End]
}
