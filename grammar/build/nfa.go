package build

import (
	"fmt"
	"slices"
	"sort"

	"github.com/grindlemire/go-tui/grammar"
)

// fragment is a compiled sub-automaton with a single entry and exit state.
type fragment struct {
	start, end int
}

type nfaEdge struct {
	lo, hi rune
	to     int
}

type nfaState struct {
	eps    []int
	edges  []nfaEdge
	accept int // token declaration index + 1, 0 when not accepting
}

type nfaBuilder struct {
	states []nfaState
}

func (nb *nfaBuilder) newState() int {
	nb.states = append(nb.states, nfaState{})
	return len(nb.states) - 1
}

func (nb *nfaBuilder) addEps(from, to int) {
	nb.states[from].eps = append(nb.states[from].eps, to)
}

func (nb *nfaBuilder) addEdge(from int, lo, hi rune, to int) {
	nb.states[from].edges = append(nb.states[from].edges, nfaEdge{lo: lo, hi: hi, to: to})
}

// eclose expands a state set with everything reachable over epsilon edges.
// The result is sorted and deduplicated.
func (nb *nfaBuilder) eclose(set []int) []int {
	seen := make(map[int]bool, len(set))
	stack := append([]int(nil), set...)
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[s] {
			continue
		}
		seen[s] = true
		stack = append(stack, nb.states[s].eps...)
	}
	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// buildLexDFA compiles the token patterns into a single DFA via subset
// construction. accepts[i] carries the accepting terminal and its priority
// for NFA tag i+1.
func buildLexDFA(nb *nfaBuilder, start int, accepts []lexAccept) ([]grammar.LexState, error) {
	type pending struct {
		set []int
		id  int
	}

	index := map[string]int{}
	var dfa []grammar.LexState
	var queue []pending

	intern := func(set []int) int {
		key := fmt.Sprint(set)
		if id, ok := index[key]; ok {
			return id
		}
		id := len(dfa)
		index[key] = id
		dfa = append(dfa, grammar.LexState{})
		queue = append(queue, pending{set: set, id: id})
		return id
	}

	intern(nb.eclose([]int{start}))

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// Accepting tags present in the set, best priority first.
		var tags []int
		for _, s := range cur.set {
			if a := nb.states[s].accept; a != 0 {
				tags = append(tags, a-1)
			}
		}
		slices.SortFunc(tags, func(a, b int) int {
			if accepts[a].prio != accepts[b].prio {
				return accepts[b].prio - accepts[a].prio
			}
			return a - b
		})
		tags = slices.Compact(tags)
		var accSyms []grammar.Symbol
		for _, tag := range tags {
			accSyms = append(accSyms, accepts[tag].sym)
		}
		dfa[cur.id].Accepts = accSyms

		// Partition the alphabet at every edge boundary, then move across
		// each disjoint interval.
		var bounds []rune
		for _, s := range cur.set {
			for _, e := range nb.states[s].edges {
				bounds = append(bounds, e.lo, e.hi+1)
			}
		}
		if len(bounds) == 0 {
			continue
		}
		slices.Sort(bounds)
		bounds = slices.Compact(bounds)

		var trans []grammar.LexTransition
		for i := 0; i+1 < len(bounds); i++ {
			lo, hi := bounds[i], bounds[i+1]-1
			var moved []int
			for _, s := range cur.set {
				for _, e := range nb.states[s].edges {
					if e.lo <= lo && hi <= e.hi {
						moved = append(moved, e.to)
					}
				}
			}
			if len(moved) == 0 {
				continue
			}
			next := intern(nb.eclose(moved))
			if int32(next) < 0 {
				return nil, fmt.Errorf("lexical automaton too large")
			}
			// Extend the previous transition when contiguous with the same
			// target.
			if n := len(trans); n > 0 && trans[n-1].Hi+1 == lo && trans[n-1].Next == int32(next) {
				trans[n-1].Hi = hi
				continue
			}
			trans = append(trans, grammar.LexTransition{Lo: lo, Hi: hi, Next: int32(next)})
		}
		dfa[cur.id].Transitions = trans
	}
	return dfa, nil
}

type lexAccept struct {
	sym  grammar.Symbol
	prio int
}
