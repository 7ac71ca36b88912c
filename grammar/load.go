package grammar

import (
	"fmt"
)

// MalformedGrammarError reports an internally inconsistent grammar table.
// It is fatal: a table that fails validation cannot be used.
type MalformedGrammarError struct {
	Detail string
}

func (e *MalformedGrammarError) Error() string {
	return "malformed grammar: " + e.Detail
}

func malformed(format string, args ...any) error {
	return &MalformedGrammarError{Detail: fmt.Sprintf(format, args...)}
}

// Finalize validates every cross-reference in the table and computes derived
// lookup structures. It must be called exactly once, before first use; Load
// calls it on decoded tables.
func (t *Table) Finalize() error {
	if err := t.validate(); err != nil {
		return err
	}

	t.valid = make([]SymbolSet, len(t.Actions))
	t.eofValid = make([]bool, len(t.Actions))
	for state, row := range t.Actions {
		set := NewSymbolSet(t.TerminalCount)
		for sym := 0; sym < t.TerminalCount; sym++ {
			if row[sym] != 0 {
				set.Add(Symbol(sym))
			}
		}
		// Extras are acceptable everywhere.
		for sym := 0; sym < t.TerminalCount; sym++ {
			if t.Symbols[sym].Flags.Has(FlagExtra) {
				set.Add(Symbol(sym))
			}
		}
		t.valid[state] = set
		t.eofValid[state] = row[SymbolEOF] != 0
	}

	t.externals = nil
	for sym := 0; sym < t.TerminalCount; sym++ {
		if t.Symbols[sym].Flags.Has(FlagExternal) {
			t.externals = append(t.externals, Symbol(sym))
		}
	}
	return nil
}

func (t *Table) validate() error {
	if len(t.Symbols) == 0 {
		return malformed("empty symbol table")
	}
	if t.TerminalCount < 1 || t.TerminalCount > len(t.Symbols) {
		return malformed("terminal count %d out of range (symbols=%d)", t.TerminalCount, len(t.Symbols))
	}
	if len(t.Symbols) >= int(SymbolError) {
		return malformed("symbol table too large: %d", len(t.Symbols))
	}
	if !t.Symbols[SymbolEOF].Flags.Has(FlagTerminal) {
		return malformed("symbol 0 must be the EOF terminal")
	}
	for i, info := range t.Symbols {
		isTerm := info.Flags.Has(FlagTerminal)
		if isTerm != (i < t.TerminalCount) {
			return malformed("symbol %d (%q) terminal flag disagrees with ID range", i, info.Name)
		}
		if !isTerm && info.Flags&(FlagExtra|FlagExternal|FlagSkip) != 0 {
			return malformed("nonterminal %d (%q) carries terminal-only flags", i, info.Name)
		}
	}

	if len(t.Actions) == 0 {
		return malformed("no parse states")
	}
	if int(t.StartState) >= len(t.Actions) {
		return malformed("start state %d out of range (states=%d)", t.StartState, len(t.Actions))
	}
	if len(t.Entries) == 0 || t.Entries[0].Type != ActionNone {
		return malformed("entry 0 must be the no-action sentinel")
	}
	for state, row := range t.Actions {
		if len(row) != len(t.Symbols) {
			return malformed("state %d row has %d cells, want %d", state, len(row), len(t.Symbols))
		}
		for sym, idx := range row {
			if int(idx) >= len(t.Entries) {
				return malformed("state %d symbol %d action index %d out of range", state, sym, idx)
			}
		}
	}
	for i, e := range t.Entries {
		switch e.Type {
		case ActionNone:
			if i != 0 {
				return malformed("entry %d has no action type", i)
			}
		case ActionShift:
			if int(e.State) >= len(t.Actions) {
				return malformed("entry %d shifts to unknown state %d", i, e.State)
			}
		case ActionReduce:
			if int(e.Production) >= len(t.Productions) {
				return malformed("entry %d reduces by unknown production %d", i, e.Production)
			}
		case ActionAccept:
		default:
			return malformed("entry %d has unknown action type %d", i, e.Type)
		}
	}
	for i, p := range t.Productions {
		if int(p.LHS) >= len(t.Symbols) {
			return malformed("production %d has unknown LHS %d", i, p.LHS)
		}
		if t.Symbols[p.LHS].Flags.Has(FlagTerminal) {
			return malformed("production %d reduces to terminal %q", i, t.Symbols[p.LHS].Name)
		}
	}

	for i, ls := range t.LexStates {
		for j, tr := range ls.Transitions {
			if tr.Lo > tr.Hi {
				return malformed("lex state %d transition %d has inverted range", i, j)
			}
			if tr.Next < 0 || int(tr.Next) >= len(t.LexStates) {
				return malformed("lex state %d transition %d targets unknown state %d", i, j, tr.Next)
			}
		}
		for _, acc := range ls.Accepts {
			if int(acc) >= t.TerminalCount {
				return malformed("lex state %d accepts non-terminal symbol %d", i, acc)
			}
		}
	}

	for _, r := range t.Recovery {
		if int(r) >= t.TerminalCount {
			return malformed("recovery symbol %d is not a terminal", r)
		}
	}
	return nil
}
