package build

import (
	"errors"
	"fmt"
	"sort"

	"github.com/grindlemire/go-tui/grammar"
)

// ConflictError reports an ambiguity in the parse table that precedence
// declarations did not resolve. The grammar must be changed; conflicted
// tables are never emitted.
type ConflictError struct {
	Kind   string // "shift/reduce" or "reduce/reduce"
	State  int
	Symbol string
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict in state %d on %q: %s", e.Kind, e.State, e.Symbol, e.Detail)
}

type slrProd struct {
	lhs  grammar.Symbol
	rhs  []grammar.Symbol
	prec int // precedence level, 0 = undeclared
}

type slrItem struct {
	prod, dot int
}

type tableGen struct {
	prods    []slrProd // prods[0] is the augmented start production
	symbols  []grammar.SymbolInfo
	nTerm    int
	termPrec []int   // per-terminal precedence level, 0 = undeclared
	termAssc []Assoc

	nullable []bool
	first    [][]bool // first[nonterm][terminal]
	follow   [][]bool

	states  [][]slrItem // closed item sets
	gotos   []map[grammar.Symbol]int
	actions [][]uint16
	entries []grammar.Action
	eIndex  map[grammar.Action]uint16

	conflicts []error
}

func (g *tableGen) isTerm(sym grammar.Symbol) bool {
	return int(sym) < g.nTerm
}

func (g *tableGen) run() error {
	g.computeNullableFirst()
	g.computeFollow()
	g.buildStates()
	g.emitActions()
	return errors.Join(g.conflicts...)
}

func (g *tableGen) computeNullableFirst() {
	n := len(g.symbols)
	g.nullable = make([]bool, n)
	g.first = make([][]bool, n)
	for i := range g.first {
		g.first[i] = make([]bool, g.nTerm)
	}
	for changed := true; changed; {
		changed = false
		for _, p := range g.prods {
			allNullable := true
			for _, sym := range p.rhs {
				if g.isTerm(sym) {
					if !g.first[p.lhs][sym] {
						g.first[p.lhs][sym] = true
						changed = true
					}
					allNullable = false
					break
				}
				for t := 0; t < g.nTerm; t++ {
					if g.first[sym][t] && !g.first[p.lhs][t] {
						g.first[p.lhs][t] = true
						changed = true
					}
				}
				if !g.nullable[sym] {
					allNullable = false
					break
				}
			}
			if allNullable && !g.nullable[p.lhs] {
				g.nullable[p.lhs] = true
				changed = true
			}
		}
	}
}

func (g *tableGen) computeFollow() {
	n := len(g.symbols)
	g.follow = make([][]bool, n)
	for i := range g.follow {
		g.follow[i] = make([]bool, g.nTerm)
	}
	g.follow[g.prods[0].rhs[0]][grammar.SymbolEOF] = true
	for changed := true; changed; {
		changed = false
		for _, p := range g.prods {
			for i, sym := range p.rhs {
				if g.isTerm(sym) {
					continue
				}
				tail := p.rhs[i+1:]
				tailNullable := true
				for _, t := range tail {
					if g.isTerm(t) {
						if !g.follow[sym][t] {
							g.follow[sym][t] = true
							changed = true
						}
						tailNullable = false
						break
					}
					for a := 0; a < g.nTerm; a++ {
						if g.first[t][a] && !g.follow[sym][a] {
							g.follow[sym][a] = true
							changed = true
						}
					}
					if !g.nullable[t] {
						tailNullable = false
						break
					}
				}
				if tailNullable {
					for a := 0; a < g.nTerm; a++ {
						if g.follow[p.lhs][a] && !g.follow[sym][a] {
							g.follow[sym][a] = true
							changed = true
						}
					}
				}
			}
		}
	}
}

func (g *tableGen) closure(items []slrItem) []slrItem {
	set := map[slrItem]bool{}
	var out []slrItem
	var add func(it slrItem)
	add = func(it slrItem) {
		if set[it] {
			return
		}
		set[it] = true
		out = append(out, it)
		p := g.prods[it.prod]
		if it.dot >= len(p.rhs) {
			return
		}
		next := p.rhs[it.dot]
		if g.isTerm(next) {
			return
		}
		for pi, pp := range g.prods {
			if pp.lhs == next {
				add(slrItem{prod: pi, dot: 0})
			}
		}
	}
	for _, it := range items {
		add(it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].prod != out[j].prod {
			return out[i].prod < out[j].prod
		}
		return out[i].dot < out[j].dot
	})
	return out
}

func itemsKey(items []slrItem) string {
	return fmt.Sprint(items)
}

func (g *tableGen) buildStates() {
	index := map[string]int{}
	intern := func(items []slrItem) int {
		closed := g.closure(items)
		key := itemsKey(closed)
		if id, ok := index[key]; ok {
			return id
		}
		id := len(g.states)
		index[key] = id
		g.states = append(g.states, closed)
		g.gotos = append(g.gotos, nil)
		return id
	}

	intern([]slrItem{{prod: 0, dot: 0}})
	for si := 0; si < len(g.states); si++ {
		// Group items by the symbol after the dot.
		moves := map[grammar.Symbol][]slrItem{}
		var order []grammar.Symbol
		for _, it := range g.states[si] {
			p := g.prods[it.prod]
			if it.dot >= len(p.rhs) {
				continue
			}
			sym := p.rhs[it.dot]
			if _, ok := moves[sym]; !ok {
				order = append(order, sym)
			}
			moves[sym] = append(moves[sym], slrItem{prod: it.prod, dot: it.dot + 1})
		}
		gt := make(map[grammar.Symbol]int, len(moves))
		for _, sym := range order {
			gt[sym] = intern(moves[sym])
		}
		g.gotos[si] = gt
	}
}

func (g *tableGen) entry(a grammar.Action) uint16 {
	if idx, ok := g.eIndex[a]; ok {
		return idx
	}
	idx := uint16(len(g.entries))
	g.entries = append(g.entries, a)
	g.eIndex[a] = idx
	return idx
}

func (g *tableGen) emitActions() {
	g.entries = []grammar.Action{{}}
	g.eIndex = map[grammar.Action]uint16{{}: 0}
	g.actions = make([][]uint16, len(g.states))

	for si := range g.states {
		row := make([]uint16, len(g.symbols))
		for sym := range g.symbols {
			if target, ok := g.gotos[si][grammar.Symbol(sym)]; ok {
				row[sym] = g.entry(grammar.Action{Type: grammar.ActionShift, State: grammar.StateID(target)})
			}
		}
		for _, it := range g.states[si] {
			p := g.prods[it.prod]
			if it.dot < len(p.rhs) {
				continue
			}
			if it.prod == 0 {
				row[grammar.SymbolEOF] = g.entry(grammar.Action{Type: grammar.ActionAccept})
				continue
			}
			red := g.entry(grammar.Action{
				Type: grammar.ActionReduce,
				// The augmented production is not emitted, so table indices
				// are shifted down by one.
				Production: uint16(it.prod - 1),
			})
			for a := 0; a < g.nTerm; a++ {
				if !g.follow[p.lhs][a] {
					continue
				}
				row[a] = g.resolve(si, grammar.Symbol(a), row[a], red, it.prod)
			}
		}
		g.actions[si] = row
	}
}

// resolve picks the action for a cell that a reduce wants to occupy,
// applying yacc-style precedence rules against any existing shift.
func (g *tableGen) resolve(state int, sym grammar.Symbol, existing, reduce uint16, prodIdx int) uint16 {
	if existing == 0 {
		return reduce
	}
	old := g.entries[existing]
	if old.Type == grammar.ActionReduce || old.Type == grammar.ActionAccept {
		if existing == reduce {
			return existing
		}
		g.conflicts = append(g.conflicts, &ConflictError{
			Kind:   "reduce/reduce",
			State:  state,
			Symbol: g.symbols[sym].Name,
			Detail: "two productions complete on the same lookahead",
		})
		return existing
	}

	prodPrec := g.prods[prodIdx].prec
	tokPrec := g.termPrec[sym]
	if prodPrec == 0 || tokPrec == 0 {
		g.conflicts = append(g.conflicts, &ConflictError{
			Kind:   "shift/reduce",
			State:  state,
			Symbol: g.symbols[sym].Name,
			Detail: "no precedence declared for either side",
		})
		return existing
	}
	switch {
	case prodPrec > tokPrec:
		return reduce
	case prodPrec < tokPrec:
		return existing
	}
	switch g.termAssc[sym] {
	case AssocLeft:
		return reduce
	case AssocRight:
		return existing
	default:
		// Nonassociative: the cell becomes a parse error.
		return 0
	}
}
