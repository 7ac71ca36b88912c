package tree

import (
	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

// NodeID identifies a node inside a store. IDs are 1-based; 0 is the null
// node.
type NodeID uint32

// NilNode is the null node ID.
const NilNode NodeID = 0

// chunkSize is the number of nodes per storage chunk. Full chunks are
// immutable and shared between tree versions.
const chunkSize = 1024

// childRef points at a child node. Offset is relative to the parent's start,
// so shifting a subtree rewrites only the path above it.
type childRef struct {
	id     NodeID
	offset text.ByteOffset
}

// nodeData is the stored representation of one node. Entries are never
// mutated after append; new tree versions append adjusted copies instead.
type nodeData struct {
	symbol     grammar.Symbol
	flags      NodeFlags
	size       text.ByteOffset
	state      grammar.StateID
	production uint16
	children   []childRef
}

// nodeStore is an append-only arena. fork shares all full chunks with the
// parent store and copies only the partial tail, so versions diverge without
// disturbing each other.
type nodeStore struct {
	full [][]nodeData
	tail []nodeData
}

func newNodeStore() *nodeStore {
	return &nodeStore{tail: make([]nodeData, 0, chunkSize)}
}

func (s *nodeStore) fork() *nodeStore {
	tail := make([]nodeData, len(s.tail), chunkSize)
	copy(tail, s.tail)
	return &nodeStore{
		full: append([][]nodeData(nil), s.full...),
		tail: tail,
	}
}

func (s *nodeStore) len() int {
	return len(s.full)*chunkSize + len(s.tail)
}

func (s *nodeStore) add(n nodeData) NodeID {
	if len(s.tail) == chunkSize {
		s.full = append(s.full, s.tail)
		s.tail = make([]nodeData, 0, chunkSize)
	}
	s.tail = append(s.tail, n)
	return NodeID(s.len())
}

func (s *nodeStore) get(id NodeID) *nodeData {
	i := int(id) - 1
	c := i / chunkSize
	if c < len(s.full) {
		return &s.full[c][i%chunkSize]
	}
	return &s.tail[i%chunkSize]
}
