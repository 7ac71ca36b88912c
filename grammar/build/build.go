// Package build assembles grammar tables from declarative token and rule
// definitions. A Builder collects terminals (as lexical patterns or external
// scanner hooks), productions, and precedence declarations, then Build
// compiles the lexical DFA and the SLR(1) parse table. Conflicts that
// precedence does not resolve fail the build.
package build

import (
	"fmt"

	"github.com/grindlemire/go-tui/grammar"
)

// Assoc is the associativity of one precedence level.
type Assoc uint8

// Assoc values.
const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
)

type tokenDef struct {
	name  string
	pat   Pattern // nil for external tokens
	flags grammar.SymbolFlags
	prio  int
}

type ruleDef struct {
	lhs     string
	rhs     []string
	precTok string
}

// Builder accumulates a grammar definition. Methods record errors instead of
// returning them; Build reports the first one.
type Builder struct {
	name     string
	tokens   []tokenDef
	tokenIdx map[string]int
	rules    []ruleDef
	start    string
	prec     map[string]int
	assoc    map[string]Assoc
	precNext int
	recover  []string
	hidden   map[string]bool
	err      error
}

// New returns a Builder for a language with the given name.
func New(name string) *Builder {
	return &Builder{
		name:     name,
		tokenIdx: map[string]int{},
		prec:     map[string]int{},
		assoc:    map[string]Assoc{},
		precNext: 1,
		hidden:   map[string]bool{},
	}
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

func (b *Builder) addToken(name string, pat Pattern, flags grammar.SymbolFlags, prio int) {
	if _, dup := b.tokenIdx[name]; dup {
		b.fail("token %q declared twice", name)
		return
	}
	b.tokenIdx[name] = len(b.tokens)
	b.tokens = append(b.tokens, tokenDef{name: name, pat: pat, flags: flags | grammar.FlagTerminal, prio: prio})
}

// Token declares a terminal matched by the lexical pattern.
func (b *Builder) Token(name string, pat Pattern) {
	b.addToken(name, pat, 0, 0)
}

// Keyword declares a literal terminal that outranks overlapping tokens:
// where a keyword and an identifier match the same text, the keyword wins.
func (b *Builder) Keyword(name, literal string) {
	b.addToken(name, Lit(literal), 0, 1)
}

// External declares a terminal produced by an external scanner instead of
// the lexical DFA.
func (b *Builder) External(name string) {
	b.addToken(name, nil, grammar.FlagExternal, 0)
}

// Skip declares a terminal the lexer discards, such as whitespace.
func (b *Builder) Skip(name string, pat Pattern) {
	b.addToken(name, pat, grammar.FlagSkip|grammar.FlagHidden, 0)
}

// Extra declares a terminal that may appear between any two tokens, such as
// comments. Extras are attached to the tree but take no grammar positions.
func (b *Builder) Extra(name string, pat Pattern) {
	b.addToken(name, pat, grammar.FlagExtra, 0)
}

// Rule adds one production for the nonterminal lhs. Call repeatedly with the
// same lhs to declare alternatives; an empty rhs declares an epsilon rule.
func (b *Builder) Rule(lhs string, rhs ...string) {
	b.rules = append(b.rules, ruleDef{lhs: lhs, rhs: rhs})
}

// RulePrec is Rule with an explicit precedence: the production resolves
// shift/reduce conflicts using the precedence of the named token.
func (b *Builder) RulePrec(lhs, precToken string, rhs ...string) {
	b.rules = append(b.rules, ruleDef{lhs: lhs, rhs: rhs, precTok: precToken})
}

// Precedence declares one precedence level for the named tokens. Later calls
// declare higher levels.
func (b *Builder) Precedence(assoc Assoc, tokens ...string) {
	level := b.precNext
	b.precNext++
	for _, tok := range tokens {
		if _, dup := b.prec[tok]; dup {
			b.fail("token %q assigned two precedence levels", tok)
			return
		}
		b.prec[tok] = level
		b.assoc[tok] = assoc
	}
}

// Recover names the terminals error recovery may synchronize on.
func (b *Builder) Recover(tokens ...string) {
	b.recover = append(b.recover, tokens...)
}

// Hidden marks a symbol as structural only. Hidden nodes keep their place
// in the tree but are skipped by name-based traversals; hidden terminals
// render as their text, the way punctuation usually should.
func (b *Builder) Hidden(name string) {
	b.hidden[name] = true
}

// Start names the root nonterminal.
func (b *Builder) Start(name string) {
	b.start = name
}

// Build compiles the grammar into an immutable table. It fails on undefined
// references, lexical problems, and parse-table conflicts.
func (b *Builder) Build() (*grammar.Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.start == "" {
		return nil, fmt.Errorf("no start rule declared")
	}
	if len(b.rules) == 0 {
		return nil, fmt.Errorf("no rules declared")
	}

	// Assign symbol IDs: EOF, declared terminals, then nonterminals in order
	// of first definition.
	symbols := []grammar.SymbolInfo{{Name: "eof", Flags: grammar.FlagTerminal | grammar.FlagHidden}}
	symIdx := map[string]grammar.Symbol{}
	for _, tok := range b.tokens {
		flags := tok.flags
		if b.hidden[tok.name] {
			flags |= grammar.FlagHidden
		}
		symIdx[tok.name] = grammar.Symbol(len(symbols))
		symbols = append(symbols, grammar.SymbolInfo{Name: tok.name, Flags: flags})
	}
	nTerm := len(symbols)
	for _, r := range b.rules {
		if _, ok := symIdx[r.lhs]; ok {
			if grammar.Symbol(nTerm) > symIdx[r.lhs] {
				return nil, fmt.Errorf("rule %q collides with a token name", r.lhs)
			}
			continue
		}
		flags := grammar.SymbolFlags(0)
		if b.hidden[r.lhs] {
			flags |= grammar.FlagHidden
		}
		symIdx[r.lhs] = grammar.Symbol(len(symbols))
		symbols = append(symbols, grammar.SymbolInfo{Name: r.lhs, Flags: flags})
	}

	startSym, ok := symIdx[b.start]
	if !ok || int(startSym) < nTerm {
		return nil, fmt.Errorf("start rule %q is not a defined nonterminal", b.start)
	}

	// Augmented start production first, then the declared rules in order.
	gen := &tableGen{
		symbols:  symbols,
		nTerm:    nTerm,
		termPrec: make([]int, nTerm),
		termAssc: make([]Assoc, nTerm),
	}
	augmented := grammar.Symbol(len(symbols))
	gen.symbols = append(gen.symbols, grammar.SymbolInfo{Name: "$start", Flags: grammar.FlagHidden})
	gen.prods = append(gen.prods, slrProd{lhs: augmented, rhs: []grammar.Symbol{startSym}})
	for _, r := range b.rules {
		rhs := make([]grammar.Symbol, 0, len(r.rhs))
		for _, ref := range r.rhs {
			sym, ok := symIdx[ref]
			if !ok {
				return nil, fmt.Errorf("rule %q references undefined symbol %q", r.lhs, ref)
			}
			if int(sym) < nTerm {
				tok := b.tokens[sym-1]
				if tok.flags.Has(grammar.FlagSkip) {
					return nil, fmt.Errorf("rule %q references skipped token %q", r.lhs, ref)
				}
				if tok.flags.Has(grammar.FlagExtra) {
					return nil, fmt.Errorf("rule %q references extra token %q", r.lhs, ref)
				}
			}
			rhs = append(rhs, sym)
		}
		prec := 0
		if r.precTok != "" {
			sym, ok := symIdx[r.precTok]
			if !ok || int(sym) >= nTerm {
				return nil, fmt.Errorf("rule %q names unknown precedence token %q", r.lhs, r.precTok)
			}
			prec = b.prec[r.precTok]
			if prec == 0 {
				return nil, fmt.Errorf("rule %q names precedence token %q with no declared level", r.lhs, r.precTok)
			}
		} else {
			// Default: the rightmost terminal with a declared level.
			for i := len(rhs) - 1; i >= 0; i-- {
				if int(rhs[i]) < nTerm {
					if p, ok := b.prec[symbols[rhs[i]].Name]; ok {
						prec = p
					}
					break
				}
			}
		}
		gen.prods = append(gen.prods, slrProd{lhs: symIdx[r.lhs], rhs: rhs, prec: prec})
	}
	for name, level := range b.prec {
		sym, ok := symIdx[name]
		if !ok || int(sym) >= nTerm {
			return nil, fmt.Errorf("precedence declared for unknown token %q", name)
		}
		gen.termPrec[sym] = level
		gen.termAssc[sym] = b.assoc[name]
	}

	if err := gen.run(); err != nil {
		return nil, err
	}

	lexStates, err := b.buildLexer(symIdx)
	if err != nil {
		return nil, err
	}

	var recovery []grammar.Symbol
	for _, name := range b.recover {
		sym, ok := symIdx[name]
		if !ok || int(sym) >= nTerm {
			return nil, fmt.Errorf("recovery names unknown token %q", name)
		}
		recovery = append(recovery, sym)
	}

	productions := make([]grammar.Production, 0, len(gen.prods)-1)
	for _, p := range gen.prods[1:] {
		productions = append(productions, grammar.Production{LHS: p.lhs, Arity: uint16(len(p.rhs))})
	}

	tbl := &grammar.Table{
		Name:          b.name,
		Symbols:       gen.symbols,
		TerminalCount: nTerm,
		Productions:   productions,
		Actions:       gen.actions,
		Entries:       gen.entries,
		LexStates:     lexStates,
		Recovery:      recovery,
		StartState:    0,
	}
	if err := tbl.Finalize(); err != nil {
		return nil, err
	}
	return tbl, nil
}

func (b *Builder) buildLexer(symIdx map[string]grammar.Symbol) ([]grammar.LexState, error) {
	nb := &nfaBuilder{}
	globalStart := nb.newState()
	var accepts []lexAccept
	for _, tok := range b.tokens {
		if tok.pat == nil {
			continue
		}
		f := tok.pat.compile(nb)
		tag := len(accepts)
		accepts = append(accepts, lexAccept{sym: symIdx[tok.name], prio: tok.prio})
		nb.states[f.end].accept = tag + 1
		nb.addEps(globalStart, f.start)
	}
	states, err := buildLexDFA(nb, globalStart, accepts)
	if err != nil {
		return nil, err
	}
	if len(states) > 0 && len(states[0].Accepts) > 0 {
		return nil, fmt.Errorf("token %q matches the empty string",
			symbolNameFor(b, states[0].Accepts[0]))
	}
	return states, nil
}

func symbolNameFor(b *Builder, sym grammar.Symbol) string {
	for _, tok := range b.tokens {
		if grammar.Symbol(b.tokenIdx[tok.name]+1) == sym {
			return tok.name
		}
	}
	return "?"
}
