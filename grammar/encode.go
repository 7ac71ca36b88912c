package grammar

import (
	"github.com/segmentio/encoding/json"
)

// FormatVersion is the wire format version for serialized grammar tables.
// Load rejects tables written by a different version.
const FormatVersion = 1

type wireTable struct {
	Version       int          `json:"version"`
	Name          string       `json:"name"`
	Symbols       []wireSymbol `json:"symbols"`
	TerminalCount int          `json:"terminal_count"`
	Productions   []Production `json:"productions"`
	Actions       [][]uint16   `json:"actions"`
	Entries       []wireAction `json:"entries"`
	LexStates     []wireLex    `json:"lex_states"`
	Recovery      []Symbol     `json:"recovery,omitempty"`
	StartState    StateID      `json:"start_state"`
}

type wireSymbol struct {
	Name  string      `json:"name"`
	Flags SymbolFlags `json:"flags"`
}

type wireAction struct {
	Type       ActionType `json:"t"`
	State      StateID    `json:"s,omitempty"`
	Production uint16     `json:"p,omitempty"`
}

type wireLex struct {
	Accepts     []Symbol  `json:"accepts,omitempty"`
	Transitions []wireTra `json:"transitions,omitempty"`
}

type wireTra struct {
	Lo   rune  `json:"lo"`
	Hi   rune  `json:"hi"`
	Next int32 `json:"next"`
}

// Encode serializes the table for offline storage. The result round-trips
// through Load.
func (t *Table) Encode() ([]byte, error) {
	w := wireTable{
		Version:       FormatVersion,
		Name:          t.Name,
		TerminalCount: t.TerminalCount,
		Productions:   t.Productions,
		Actions:       t.Actions,
		Recovery:      t.Recovery,
		StartState:    t.StartState,
	}
	for _, s := range t.Symbols {
		w.Symbols = append(w.Symbols, wireSymbol{Name: s.Name, Flags: s.Flags})
	}
	for _, e := range t.Entries {
		w.Entries = append(w.Entries, wireAction{Type: e.Type, State: e.State, Production: e.Production})
	}
	for _, ls := range t.LexStates {
		wl := wireLex{Accepts: ls.Accepts}
		for _, tr := range ls.Transitions {
			wl.Transitions = append(wl.Transitions, wireTra{Lo: tr.Lo, Hi: tr.Hi, Next: tr.Next})
		}
		w.LexStates = append(w.LexStates, wl)
	}
	return json.Marshal(w)
}

// Load decodes and validates a serialized grammar table. The returned table
// is immutable and safe for concurrent use by any number of parsers.
func Load(data []byte) (*Table, error) {
	var w wireTable
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &MalformedGrammarError{Detail: "decode: " + err.Error()}
	}
	if w.Version != FormatVersion {
		return nil, malformed("unsupported format version %d, want %d", w.Version, FormatVersion)
	}
	t := &Table{
		Name:          w.Name,
		TerminalCount: w.TerminalCount,
		Productions:   w.Productions,
		Actions:       w.Actions,
		Recovery:      w.Recovery,
		StartState:    w.StartState,
	}
	for _, s := range w.Symbols {
		t.Symbols = append(t.Symbols, SymbolInfo{Name: s.Name, Flags: s.Flags})
	}
	for _, e := range w.Entries {
		t.Entries = append(t.Entries, Action{Type: e.Type, State: e.State, Production: e.Production})
	}
	for _, wl := range w.LexStates {
		ls := LexState{Accepts: wl.Accepts}
		for _, tr := range wl.Transitions {
			ls.Transitions = append(ls.Transitions, LexTransition{Lo: tr.Lo, Hi: tr.Hi, Next: tr.Next})
		}
		t.LexStates = append(t.LexStates, ls)
	}
	if err := t.Finalize(); err != nil {
		return nil, err
	}
	return t, nil
}
