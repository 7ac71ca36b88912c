// Package grammar defines the compiled, immutable grammar tables consumed by
// the lexer and parser: symbol metadata, shift/reduce action tables, the
// lexical DFA, and external-token declarations.
//
// Tables are produced offline (see grammar/build) and loaded once per
// language. After Finalize succeeds a Table is read-only and safe for any
// number of concurrent parses.
package grammar

import "fmt"

// Symbol is a grammar symbol ID. Terminals occupy [0, TerminalCount);
// nonterminals follow.
type Symbol uint16

const (
	// SymbolEOF is the end-of-input terminal, always symbol 0.
	SymbolEOF Symbol = 0
	// SymbolError is the reserved symbol for error nodes produced by recovery.
	SymbolError Symbol = 0xFFFF
)

// StateID is a parse state index.
type StateID uint16

// ActionType identifies the kind of parse action.
type ActionType uint8

// Action kinds stored in the parse table.
const (
	ActionNone ActionType = iota
	ActionShift
	ActionReduce
	ActionAccept
)

// Action is a single parse-table action. For shifts (and gotos, which are
// shifts on nonterminals) State is the target state; for reduces Production
// identifies the rule.
type Action struct {
	Type       ActionType
	State      StateID
	Production uint16
}

// Production describes one rule: the nonterminal it reduces to and how many
// stack entries its right-hand side consumes.
type Production struct {
	LHS   Symbol
	Arity uint16
}

// SymbolFlags carry per-symbol metadata bits.
type SymbolFlags uint8

// SymbolFlags values.
const (
	// FlagTerminal marks leaf symbols produced by the lexer.
	FlagTerminal SymbolFlags = 1 << iota
	// FlagHidden marks symbols that are structural only and not part of the
	// visible node kinds of a language.
	FlagHidden
	// FlagExtra marks terminals that may appear anywhere (comments); the
	// parser attaches them to the tree without consuming grammar positions.
	FlagExtra
	// FlagExternal marks terminals recognized by an external scanner rather
	// than the built-in DFA.
	FlagExternal
	// FlagSkip marks terminals discarded by the lexer (whitespace).
	FlagSkip
)

// Has reports whether all bits in mask are set.
func (f SymbolFlags) Has(mask SymbolFlags) bool {
	return f&mask == mask
}

// SymbolInfo is the symbol-table entry for one symbol ID.
type SymbolInfo struct {
	Name  string
	Flags SymbolFlags
}

// Table is a compiled grammar. All fields are fixed after Finalize; see the
// package comment for the immutability contract.
type Table struct {
	// Name identifies the language (diagnostics only).
	Name string

	// Symbols maps IDs to metadata. Terminals come first; Symbols[0] is EOF.
	Symbols       []SymbolInfo
	TerminalCount int

	Productions []Production

	// Actions is the dense parse table: Actions[state][symbol] indexes into
	// Entries. Index 0 is the "no action" sentinel.
	Actions [][]uint16
	Entries []Action

	// LexStates is the lexical DFA; state 0 is the start state.
	LexStates []LexState

	// Recovery lists synchronization terminals considered during error
	// recovery (statement terminators, closing brackets).
	Recovery []Symbol

	StartState StateID

	valid     []SymbolSet
	externals []Symbol
	eofValid  []bool
}

// NumStates returns the number of parse states.
func (t *Table) NumStates() int {
	return len(t.Actions)
}

// NumSymbols returns the number of symbols, terminals and nonterminals.
func (t *Table) NumSymbols() int {
	return len(t.Symbols)
}

// Action returns the action for (state, symbol) and whether one exists.
func (t *Table) Action(state StateID, sym Symbol) (Action, bool) {
	if int(state) >= len(t.Actions) || int(sym) >= len(t.Symbols) {
		return Action{}, false
	}
	idx := t.Actions[state][sym]
	if idx == 0 {
		return Action{}, false
	}
	return t.Entries[idx], true
}

// SymbolName returns the display name for a symbol ID.
func (t *Table) SymbolName(sym Symbol) string {
	if sym == SymbolError {
		return "ERROR"
	}
	if int(sym) >= len(t.Symbols) {
		return fmt.Sprintf("symbol(%d)", sym)
	}
	return t.Symbols[sym].Name
}

// SymbolByName resolves a symbol name to its ID.
func (t *Table) SymbolByName(name string) (Symbol, bool) {
	for i, info := range t.Symbols {
		if info.Name == name {
			return Symbol(i), true
		}
	}
	return 0, false
}

// IsTerminal reports whether sym is a terminal.
func (t *Table) IsTerminal(sym Symbol) bool {
	return sym != SymbolError && int(sym) < t.TerminalCount
}

// IsHidden reports whether sym is a hidden symbol.
func (t *Table) IsHidden(sym Symbol) bool {
	return t.hasFlag(sym, FlagHidden)
}

// IsExtra reports whether sym is an extra terminal.
func (t *Table) IsExtra(sym Symbol) bool {
	return t.hasFlag(sym, FlagExtra)
}

// IsExternal reports whether sym is recognized by an external scanner.
func (t *Table) IsExternal(sym Symbol) bool {
	return t.hasFlag(sym, FlagExternal)
}

// IsSkip reports whether sym is discarded by the lexer.
func (t *Table) IsSkip(sym Symbol) bool {
	return t.hasFlag(sym, FlagSkip)
}

func (t *Table) hasFlag(sym Symbol, flag SymbolFlags) bool {
	if int(sym) >= len(t.Symbols) {
		return false
	}
	return t.Symbols[sym].Flags.Has(flag)
}

// ValidTokens returns the set of terminals with an action in state. The
// returned set is shared and must not be modified.
func (t *Table) ValidTokens(state StateID) SymbolSet {
	if int(state) >= len(t.valid) {
		return nil
	}
	return t.valid[state]
}

// EOFValid reports whether EOF has an action in state.
func (t *Table) EOFValid(state StateID) bool {
	if int(state) >= len(t.eofValid) {
		return false
	}
	return t.eofValid[state]
}

// ExternalTokens returns the terminals flagged external, in ID order.
func (t *Table) ExternalTokens() []Symbol {
	return t.externals
}

// IsRecovery reports whether sym is a recovery synchronization terminal.
func (t *Table) IsRecovery(sym Symbol) bool {
	for _, r := range t.Recovery {
		if r == sym {
			return true
		}
	}
	return false
}
