package tree

import (
	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

// Builder constructs tree versions. NewBuilderFrom shares the previous
// version's node store, so subtrees carried over from it cost nothing.
type Builder struct {
	table *grammar.Table
	store *nodeStore
}

// NewBuilder returns a builder with a fresh node store.
func NewBuilder(table *grammar.Table) *Builder {
	return &Builder{table: table, store: newNodeStore()}
}

// NewBuilderFrom returns a builder whose store is forked from an existing
// tree. Node IDs from that tree remain valid and may be used as children of
// new nodes.
func NewBuilderFrom(t *Tree) *Builder {
	return &Builder{table: t.table, store: t.store.fork()}
}

// Leaf appends a terminal node.
func (b *Builder) Leaf(sym grammar.Symbol, size text.ByteOffset, state grammar.StateID, flags NodeFlags) NodeID {
	return b.store.add(nodeData{
		symbol: sym,
		flags:  flags,
		size:   size,
		state:  state,
	})
}

// Child places a node at an absolute start offset while its parent is being
// assembled.
type Child struct {
	ID    NodeID
	Start text.ByteOffset
}

// Interior appends a nonterminal node over the given children. Children
// must be ordered by start offset; the node spans from the first child's
// start to the last child's end. Error and missing descendants propagate
// into the new node's flags.
func (b *Builder) Interior(sym grammar.Symbol, production uint16, state grammar.StateID, flags NodeFlags, children []Child) NodeID {
	d := nodeData{
		symbol:     sym,
		flags:      flags,
		state:      state,
		production: production,
	}
	if len(children) > 0 {
		base := children[0].Start
		last := children[len(children)-1]
		d.size = last.Start + b.store.get(last.ID).size - base
		d.children = make([]childRef, len(children))
		for i, c := range children {
			d.children[i] = childRef{id: c.ID, offset: c.Start - base}
			cf := b.store.get(c.ID).flags
			if cf&(FlagError|FlagMissing|FlagHasError) != 0 {
				d.flags |= FlagHasError
			}
		}
	}
	return b.store.add(d)
}

// Root finalizes main as the document root: the returned node spans
// [0, length) regardless of where its tokens start and end, and any
// leading or trailing extras are adopted as children. When nothing needs
// adjusting, main is returned as is.
func (b *Builder) Root(main NodeID, mainStart text.ByteOffset, before, after []Child, length text.ByteOffset) NodeID {
	d := b.store.get(main)
	if len(before) == 0 && len(after) == 0 && mainStart == 0 && d.size == length {
		return main
	}
	nd := nodeData{
		symbol:     d.symbol,
		flags:      d.flags,
		state:      d.state,
		production: d.production,
		size:       length,
	}
	adopt := func(c Child) {
		nd.children = append(nd.children, childRef{id: c.ID, offset: c.Start})
		if b.store.get(c.ID).flags&(FlagError|FlagMissing|FlagHasError) != 0 {
			nd.flags |= FlagHasError
		}
	}
	for _, c := range before {
		adopt(c)
	}
	for _, ref := range d.children {
		nd.children = append(nd.children, childRef{id: ref.id, offset: ref.offset + mainStart})
	}
	for _, c := range after {
		adopt(c)
	}
	return b.store.add(nd)
}

// Finish seals the version with the given root and source snapshot.
func (b *Builder) Finish(root NodeID, src []byte) *Tree {
	return &Tree{table: b.table, store: b.store, root: root, src: src}
}
