package tree

import (
	"fmt"

	"github.com/segmentio/encoding/json"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

// serializeVersion is the wire format version for serialized trees.
const serializeVersion = 1

type wireTree struct {
	Version int        `json:"version"`
	Grammar string     `json:"grammar"`
	Nodes   []wireNode `json:"nodes"`
	Source  []byte     `json:"source"`
}

// wireNode is one node in preorder. Children count how many of the
// following records belong to this node.
type wireNode struct {
	Symbol     grammar.Symbol  `json:"sym"`
	Flags      NodeFlags       `json:"flags,omitempty"`
	Size       text.ByteOffset `json:"size"`
	State      grammar.StateID `json:"state,omitempty"`
	Production uint16          `json:"prod,omitempty"`
	Children   []text.ByteOffset `json:"children,omitempty"` // relative child offsets
}

// Serialize renders the tree for offline storage. Deserialize restores it
// against the same grammar.
func (t *Tree) Serialize() ([]byte, error) {
	w := wireTree{
		Version: serializeVersion,
		Grammar: t.table.Name,
		Source:  t.src,
	}
	var walk func(id NodeID)
	walk = func(id NodeID) {
		d := t.store.get(id)
		wn := wireNode{
			Symbol:     d.symbol,
			Flags:      d.flags &^ FlagChanged,
			Size:       d.size,
			State:      d.state,
			Production: d.production,
		}
		for _, ref := range d.children {
			wn.Children = append(wn.Children, ref.offset)
		}
		w.Nodes = append(w.Nodes, wn)
		for _, ref := range d.children {
			walk(ref.id)
		}
	}
	walk(t.root)
	return json.Marshal(w)
}

// Deserialize restores a serialized tree. The grammar must match the one the
// tree was parsed with; symbol references are validated against it.
func Deserialize(data []byte, table *grammar.Table) (*Tree, error) {
	var w wireTree
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if w.Version != serializeVersion {
		return nil, fmt.Errorf("unsupported tree format version %d", w.Version)
	}
	if w.Grammar != table.Name {
		return nil, fmt.Errorf("tree was parsed with grammar %q, not %q", w.Grammar, table.Name)
	}
	if len(w.Nodes) == 0 {
		return nil, fmt.Errorf("serialized tree has no nodes")
	}

	b := NewBuilder(table)
	pos := 0
	var restore func() (NodeID, error)
	restore = func() (NodeID, error) {
		if pos >= len(w.Nodes) {
			return NilNode, fmt.Errorf("serialized tree truncated at node %d", pos)
		}
		wn := w.Nodes[pos]
		pos++
		if wn.Symbol != grammar.SymbolError && int(wn.Symbol) >= table.NumSymbols() {
			return NilNode, fmt.Errorf("node %d references unknown symbol %d", pos-1, wn.Symbol)
		}
		if wn.Size < 0 {
			return NilNode, fmt.Errorf("node %d has negative size", pos-1)
		}
		if len(wn.Children) == 0 {
			return b.store.add(nodeData{
				symbol:     wn.Symbol,
				flags:      wn.Flags,
				size:       wn.Size,
				state:      wn.State,
				production: wn.Production,
			}), nil
		}
		children := make([]childRef, len(wn.Children))
		for i, off := range wn.Children {
			id, err := restore()
			if err != nil {
				return NilNode, err
			}
			if off < 0 || off > wn.Size {
				return NilNode, fmt.Errorf("node %d child %d offset out of range", pos-1, i)
			}
			children[i] = childRef{id: id, offset: off}
		}
		return b.store.add(nodeData{
			symbol:     wn.Symbol,
			flags:      wn.Flags,
			size:       wn.Size,
			state:      wn.State,
			production: wn.Production,
			children:   children,
		}), nil
	}
	root, err := restore()
	if err != nil {
		return nil, err
	}
	if pos != len(w.Nodes) {
		return nil, fmt.Errorf("serialized tree has %d trailing nodes", len(w.Nodes)-pos)
	}
	return b.Finish(root, w.Source), nil
}
