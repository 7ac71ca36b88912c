package tree

import (
	"fmt"

	"github.com/grindlemire/go-tui/text"
)

// InputEdit describes one source change: the bytes in [Start, OldEnd) were
// replaced by new bytes ending at NewEnd.
type InputEdit struct {
	Start  text.ByteOffset
	OldEnd text.ByteOffset
	NewEnd text.ByteOffset
}

// Delta returns the byte-length change of the edit.
func (e InputEdit) Delta() text.ByteOffset {
	return e.NewEnd - e.OldEnd
}

// Validate checks the edit against the length of the source it applies to.
func (e InputEdit) Validate(srcLen text.ByteOffset) error {
	switch {
	case e.Start < 0 || e.OldEnd < e.Start || e.NewEnd < e.Start:
		return &InvalidEditError{Edit: e, Reason: "offsets out of order"}
	case e.OldEnd > srcLen:
		return &InvalidEditError{Edit: e, Reason: fmt.Sprintf("old end past source length %d", srcLen)}
	}
	return nil
}

// InvalidEditError reports an edit inconsistent with the tree's source.
type InvalidEditError struct {
	Edit   InputEdit
	Reason string
}

func (e *InvalidEditError) Error() string {
	return fmt.Sprintf("invalid edit [%d,%d)->%d: %s", e.Edit.Start, e.Edit.OldEnd, e.Edit.NewEnd, e.Reason)
}

// Edit returns a new tree version with node positions adjusted for the
// source change and every touched node marked changed. The receiver is not
// modified. The new version's source is set to newSrc, which must reflect
// the edit.
func (t *Tree) Edit(edit InputEdit, newSrc []byte) (*Tree, error) {
	if err := edit.Validate(t.Len()); err != nil {
		return nil, err
	}
	store := t.store.fork()
	e := &editor{store: store, edit: edit}
	root := e.adjust(t.root, 0)
	return &Tree{table: t.table, store: store, root: root, src: newSrc}, nil
}

type editor struct {
	store *nodeStore
	edit  InputEdit
}

// adjust rewrites the path of nodes overlapping the edited range and
// returns the node's new ID. Nodes strictly before the edit are returned
// unchanged. Nodes at or past the edit's old end are returned unchanged
// too: their shift is absorbed by the parent's child offsets.
func (e *editor) adjust(id NodeID, start text.ByteOffset) NodeID {
	d := e.store.get(id)
	end := start + d.size

	if end < e.edit.Start {
		return id
	}

	updated := nodeData{
		symbol:     d.symbol,
		flags:      d.flags | FlagChanged,
		state:      d.state,
		production: d.production,
	}
	newEnd := end
	if end >= e.edit.OldEnd {
		newEnd = end + e.edit.Delta()
	} else if newEnd > e.edit.NewEnd {
		// The node's tail fell inside the deleted range.
		newEnd = e.edit.NewEnd
	}
	if newEnd < start {
		newEnd = start
	}
	updated.size = newEnd - start

	if len(d.children) > 0 {
		updated.children = make([]childRef, len(d.children))
		for i, ref := range d.children {
			childStart := start + ref.offset
			if childStart >= e.edit.OldEnd {
				newOffset := ref.offset + e.edit.Delta()
				if newOffset < 0 {
					newOffset = 0
				}
				updated.children[i] = childRef{id: ref.id, offset: newOffset}
				continue
			}
			updated.children[i] = childRef{id: e.adjust(ref.id, childStart), offset: ref.offset}
		}
	}
	return e.store.add(updated)
}
