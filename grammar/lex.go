package grammar

// LexTransition maps an inclusive rune range to a DFA state. Next is an index
// into Table.LexStates.
type LexTransition struct {
	Lo, Hi rune
	Next   int32
}

// LexState is one state in the lexical DFA. Accepts lists the terminals this
// state recognizes, highest priority first; the lexer picks the first accept
// that is valid in the current parse state.
type LexState struct {
	Accepts     []Symbol
	Transitions []LexTransition
}

// Step returns the DFA state reached from s on rune r, or -1 when no
// transition matches.
func (s *LexState) Step(r rune) int32 {
	for _, tr := range s.Transitions {
		if r >= tr.Lo && r <= tr.Hi {
			return tr.Next
		}
	}
	return -1
}

// SymbolSet is a bitset over symbol IDs.
type SymbolSet []uint64

// NewSymbolSet returns an empty set sized for n symbols.
func NewSymbolSet(n int) SymbolSet {
	return make(SymbolSet, (n+63)/64)
}

// Add inserts sym into the set.
func (s SymbolSet) Add(sym Symbol) {
	i := int(sym) / 64
	if i < len(s) {
		s[i] |= 1 << (uint(sym) % 64)
	}
}

// Has reports whether sym is in the set.
func (s SymbolSet) Has(sym Symbol) bool {
	i := int(sym) / 64
	if i >= len(s) {
		return false
	}
	return s[i]&(1<<(uint(sym)%64)) != 0
}

// IntersectsAny reports whether any of syms is in the set.
func (s SymbolSet) IntersectsAny(syms []Symbol) bool {
	for _, sym := range syms {
		if s.Has(sym) {
			return true
		}
	}
	return false
}

// Words exposes the raw bitset words, low symbols first. The slice is shared
// with the set.
func (s SymbolSet) Words() []uint64 {
	return s
}
