package parser

import (
	"context"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/lexer"
	"github.com/grindlemire/go-tui/text"
	"github.com/grindlemire/go-tui/tree"
)

// ctxCheckEvery is how many loop iterations pass between context checks.
const ctxCheckEvery = 1024

// simulateCap bounds the state-stack simulation used to validate recovery
// insertions.
const simulateCap = 64

// stackEntry is one parse stack slot. Extra entries carry comments and
// lexical errors; they do not participate in reductions or state changes.
type stackEntry struct {
	state grammar.StateID
	node  tree.NodeID
	sym   grammar.Symbol
	start text.ByteOffset
	extra bool
}

type run struct {
	p     *Parser
	table *grammar.Table
	b     *tree.Builder
	lx    *lexer.Lexer
	reuse *reuseSource
	src   []byte
	stack []stackEntry
	steps int

	allValid grammar.SymbolSet
}

func (p *Parser) parse(ctx context.Context, src []byte, b *tree.Builder, reuse *reuseSource) (*tree.Tree, error) {
	p.stats = Stats{}
	r := &run{
		p:     p,
		table: p.table,
		b:     b,
		lx:    lexer.New(p.table, src),
		reuse: reuse,
		src:   src,
		stack: []stackEntry{{state: p.table.StartState}},
	}
	for _, s := range p.scanners {
		r.lx.AddScanner(s)
	}

	var pending *lexer.Token
	for iter := 0; ; iter++ {
		if iter%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		state := r.top().state

		var tok lexer.Token
		if pending != nil {
			tok, pending = *pending, nil
		} else {
			tok = r.lx.Next(r.table.ValidTokens(state))
			p.stats.TokensLexed++
		}

		switch {
		case tok.Flags.Has(lexer.FlagError):
			// Bytes nothing matched in this state may still scan as a
			// synchronization token; otherwise they ride the stack as error
			// leaves.
			if salvaged := r.salvageSync(tok); salvaged != nil {
				pending = salvaged
				break
			}
			r.pushExtra(tok, tree.FlagError)

		case tok.Flags.Has(lexer.FlagExtra):
			flags := tree.FlagExtra
			if tok.Flags.Has(lexer.FlagExternal) {
				flags |= tree.FlagExternal
			}
			r.pushExtra(tok, flags)

		case tok.IsEOF():
			if root, done := r.finishAtEOF(tok); done {
				return r.b.Finish(root, src), nil
			}
			pending = r.recover(tok)

		default:
			if !r.resolveReductions(tok) {
				pending = r.recover(tok)
				break
			}
			// With the lookahead's reductions applied, the stack state is
			// the one a previously parsed subtree starting at this token
			// would have been pushed from. Splice it in when one is clean;
			// the token is dropped, it is the subtree's first token.
			if spliced := r.spliceReuse(tok); spliced {
				continue
			}
			r.shift(tok)
		}

		if r.steps > r.p.opts.MaxRecoverySteps {
			return r.b.Finish(r.abandon(), src), nil
		}
	}
}

func (r *run) top() *stackEntry {
	return &r.stack[len(r.stack)-1]
}

func (r *run) push(e stackEntry) {
	r.stack = append(r.stack, e)
}

func (r *run) pushExtra(tok lexer.Token, flags tree.NodeFlags) {
	state := r.top().state
	id := r.b.Leaf(tok.Symbol, tok.Span.Len(), state, flags)
	r.push(stackEntry{state: state, node: id, sym: tok.Symbol, start: tok.Span.Start, extra: true})
}

// resolveReductions applies the reduce actions tok's lookahead triggers
// until the state can shift tok. It returns false when the state has no
// action for tok.
func (r *run) resolveReductions(tok lexer.Token) bool {
	for {
		state := r.top().state
		act, ok := r.table.Action(state, tok.Symbol)
		if !ok {
			return false
		}
		switch act.Type {
		case grammar.ActionShift:
			return true
		case grammar.ActionReduce:
			if !r.reduce(act.Production, tok.Span.Start) {
				return false
			}
		default:
			return false
		}
	}
}

// shift pushes tok as a leaf.
func (r *run) shift(tok lexer.Token) {
	state := r.top().state
	act, ok := r.table.Action(state, tok.Symbol)
	if !ok || act.Type != grammar.ActionShift {
		return
	}
	var flags tree.NodeFlags
	if tok.Flags.Has(lexer.FlagExternal) {
		flags |= tree.FlagExternal
	}
	id := r.b.Leaf(tok.Symbol, tok.Span.Len(), state, flags)
	r.push(stackEntry{state: act.State, node: id, sym: tok.Symbol, start: tok.Span.Start})
}

// spliceReuse pushes a clean subtree of the previous version when one
// starts exactly at tok and was parsed from the same state.
func (r *run) spliceReuse(tok lexer.Token) bool {
	if r.reuse == nil {
		return false
	}
	state := r.top().state
	n, ok := r.reuse.candidate(tok.Span.Start, state)
	if !ok {
		return false
	}
	act, found := r.table.Action(state, n.Symbol())
	if !found || act.Type != grammar.ActionShift {
		return false
	}
	r.push(stackEntry{
		state: act.State,
		node:  n.ID(),
		sym:   n.Symbol(),
		start: n.Span().Start,
	})
	r.lx.SetPos(n.Span().End)
	r.p.stats.NodesReused++
	return true
}

// reduce pops one production's children, builds the node, and pushes it at
// the goto state. Extras interleaved with the children are folded into the
// node; extras before the first child or after the last stay on the stack
// for the enclosing reduction, so a node spans exactly its first through
// last grammar child. Empty productions build a zero-width node at the
// lookahead position.
func (r *run) reduce(prodIdx uint16, at text.ByteOffset) bool {
	prod := r.table.Productions[prodIdx]
	arity := int(prod.Arity)

	cut := len(r.stack)
	realSeen := 0
	for cut > 1 && realSeen < arity {
		cut--
		if !r.stack[cut].extra {
			realSeen++
		}
	}
	if realSeen < arity {
		return false
	}

	end := len(r.stack)
	for end > cut && r.stack[end-1].extra {
		end--
	}
	trailing := append([]stackEntry(nil), r.stack[end:]...)

	popped := r.stack[cut:end]
	children := make([]tree.Child, len(popped))
	for i, e := range popped {
		children[i] = tree.Child{ID: e.node, Start: e.start}
	}
	start := at
	if len(popped) > 0 {
		start = popped[0].start
	}

	baseState := r.stack[cut-1].state
	act, ok := r.table.Action(baseState, prod.LHS)
	if !ok || act.Type != grammar.ActionShift {
		return false
	}
	id := r.b.Interior(prod.LHS, prodIdx, baseState, 0, children)
	r.stack = r.stack[:cut]
	r.push(stackEntry{state: act.State, node: id, sym: prod.LHS, start: start})
	// Extra entries mirror the state of the real entry below them.
	for _, e := range trailing {
		e.state = act.State
		r.push(e)
	}
	return true
}

// finishAtEOF runs the final reductions and returns the padded root on
// accept. When EOF is not acceptable it reports done=false so recovery can
// run.
func (r *run) finishAtEOF(tok lexer.Token) (tree.NodeID, bool) {
	for {
		state := r.top().state
		act, ok := r.table.Action(state, grammar.SymbolEOF)
		if !ok {
			return tree.NilNode, false
		}
		switch act.Type {
		case grammar.ActionAccept:
			return r.acceptRoot(), true
		case grammar.ActionReduce:
			if !r.reduce(act.Production, tok.Span.Start) {
				return tree.NilNode, false
			}
		default:
			return tree.NilNode, false
		}
	}
}

// acceptRoot finalizes the accepted node as the document root: stray extras
// still on the stack become its children and the span is padded to cover
// the whole source, whitespace included.
func (r *run) acceptRoot() tree.NodeID {
	var before, after []tree.Child
	main := stackEntry{}
	seen := false
	for _, e := range r.stack[1:] {
		switch {
		case !e.extra:
			main, seen = e, true
		case !seen:
			before = append(before, tree.Child{ID: e.node, Start: e.start})
		default:
			after = append(after, tree.Child{ID: e.node, Start: e.start})
		}
	}
	if !seen {
		return r.wrapStackError()
	}
	return r.b.Root(main.node, main.start, before, after, text.ByteOffset(len(r.src)))
}

// recover handles a token the current state rejects. It returns the token
// to retry, or nil when the token was consumed. Every attempt spends one
// recovery step; the caller enforces the budget.
func (r *run) recover(tok lexer.Token) *lexer.Token {
	r.steps++
	r.p.stats.RecoverySteps++

	// Synchronization: pop to a state that accepts the token, wrapping the
	// popped suffix into an error node.
	if r.table.IsRecovery(tok.Symbol) && r.popToSync(tok.Symbol) {
		return &tok
	}

	if r.insertMissing(tok) {
		return &tok
	}

	if tok.IsEOF() {
		// Nothing completes the input: spend the remaining budget so the
		// caller wraps everything into an error root.
		r.steps = r.p.opts.MaxRecoverySteps + 1
		return nil
	}

	// Skip the token into the tree wrapped in an error node.
	r.skipToken(tok)
	return nil
}

// skipToken drops a rejected token onto the stack wrapped in an error node,
// keeping the skipped content visible in the structure.
func (r *run) skipToken(tok lexer.Token) {
	state := r.top().state
	var flags tree.NodeFlags
	if tok.Flags.Has(lexer.FlagExternal) {
		flags |= tree.FlagExternal
	}
	leaf := r.b.Leaf(tok.Symbol, tok.Span.Len(), state, flags)
	id := r.b.Interior(grammar.SymbolError, 0, state, tree.FlagError,
		[]tree.Child{{ID: leaf, Start: tok.Span.Start}})
	r.push(stackEntry{state: state, node: id, sym: grammar.SymbolError, start: tok.Span.Start, extra: true})
}

// salvageSync relexes a rejected byte against every terminal. When it scans
// as a recovery synchronization token and the stack can pop to a state that
// accepts it, the popped suffix becomes an error node and the token is
// retried.
func (r *run) salvageSync(tok lexer.Token) *lexer.Token {
	if len(r.table.Recovery) == 0 {
		return nil
	}
	r.lx.SetPos(tok.Span.Start)
	full := r.lx.Next(r.allTerminals())
	if full.Flags.Has(lexer.FlagError) || full.IsEOF() || !r.table.IsRecovery(full.Symbol) {
		r.lx.SetPos(tok.Span.End)
		return nil
	}
	r.steps++
	r.p.stats.RecoverySteps++
	if !r.popToSync(full.Symbol) {
		r.lx.SetPos(tok.Span.End)
		return nil
	}
	return &full
}

func (r *run) allTerminals() grammar.SymbolSet {
	if r.allValid == nil {
		r.allValid = grammar.NewSymbolSet(r.table.TerminalCount)
		for sym := 1; sym < r.table.TerminalCount; sym++ {
			r.allValid.Add(grammar.Symbol(sym))
		}
	}
	return r.allValid
}

// popToSync pops stack entries until a state with an action for sym,
// wrapping them into an error node pushed as an extra.
func (r *run) popToSync(sym grammar.Symbol) bool {
	for cut := len(r.stack) - 1; cut >= 1; cut-- {
		if _, ok := r.table.Action(r.stack[cut-1].state, sym); !ok {
			continue
		}
		popped := r.stack[cut:]
		children := make([]tree.Child, len(popped))
		for i, e := range popped {
			children[i] = tree.Child{ID: e.node, Start: e.start}
		}
		start := popped[0].start
		state := r.stack[cut-1].state
		id := r.b.Interior(grammar.SymbolError, 0, state, tree.FlagError, children)
		r.stack = r.stack[:cut]
		r.push(stackEntry{state: state, node: id, sym: grammar.SymbolError, start: start, extra: true})
		return true
	}
	return false
}

// insertMissing fabricates one zero-width terminal when a simulation shows
// it lets the real token make progress.
func (r *run) insertMissing(tok lexer.Token) bool {
	state := r.top().state
	valid := r.table.ValidTokens(state)
	for sym := grammar.Symbol(1); int(sym) < r.table.TerminalCount; sym++ {
		if !valid.Has(sym) || r.table.IsExtra(sym) || r.table.IsSkip(sym) || r.table.IsExternal(sym) {
			continue
		}
		if !r.simulate(sym, tok.Symbol) {
			continue
		}
		// Apply the insertion for real: reduce until sym shifts.
		for {
			st := r.top().state
			act, ok := r.table.Action(st, sym)
			if !ok {
				return false
			}
			if act.Type == grammar.ActionShift {
				id := r.b.Leaf(sym, 0, st, tree.FlagMissing)
				r.push(stackEntry{state: act.State, node: id, sym: sym, start: tok.Span.Start})
				return true
			}
			if act.Type != grammar.ActionReduce || !r.reduce(act.Production, tok.Span.Start) {
				return false
			}
		}
	}
	return false
}

// simulate runs the automaton over states only: insert sym, then check the
// lookahead has an action. No nodes are built.
func (r *run) simulate(sym, lookahead grammar.Symbol) bool {
	states := make([]grammar.StateID, 0, len(r.stack))
	for _, e := range r.stack {
		if !e.extra {
			states = append(states, e.state)
		}
	}
	apply := func(s grammar.Symbol, shiftOnly bool) bool {
		for i := 0; i < simulateCap; i++ {
			act, ok := r.table.Action(states[len(states)-1], s)
			if !ok {
				return false
			}
			switch act.Type {
			case grammar.ActionShift:
				states = append(states, act.State)
				return true
			case grammar.ActionAccept:
				return !shiftOnly
			case grammar.ActionReduce:
				prod := r.table.Productions[act.Production]
				if int(prod.Arity) >= len(states) {
					return false
				}
				states = states[:len(states)-int(prod.Arity)]
				gotoAct, ok := r.table.Action(states[len(states)-1], prod.LHS)
				if !ok || gotoAct.Type != grammar.ActionShift {
					return false
				}
				states = append(states, gotoAct.State)
			default:
				return false
			}
		}
		return false
	}
	if !apply(sym, true) {
		return false
	}
	// The lookahead only needs to make progress, not shift: a reduce with a
	// working goto is enough, recovery will run again if it stalls later.
	act, ok := r.table.Action(states[len(states)-1], lookahead)
	if !ok {
		return false
	}
	if act.Type == grammar.ActionReduce {
		prod := r.table.Productions[act.Production]
		if int(prod.Arity) >= len(states) {
			return false
		}
		base := states[len(states)-1-int(prod.Arity)]
		gotoAct, ok := r.table.Action(base, prod.LHS)
		return ok && gotoAct.Type == grammar.ActionShift
	}
	return true
}

// wrapStackError folds every stack entry into one error root covering the
// whole source.
func (r *run) wrapStackError() tree.NodeID {
	entries := r.stack[1:]
	children := make([]tree.Child, len(entries))
	for i, e := range entries {
		children[i] = tree.Child{ID: e.node, Start: e.start}
	}
	start := text.ByteOffset(0)
	if len(children) > 0 {
		start = children[0].Start
	}
	id := r.b.Interior(grammar.SymbolError, 0, r.table.StartState, tree.FlagError, children)
	r.stack = r.stack[:1]
	return r.b.Root(id, start, nil, nil, text.ByteOffset(len(r.src)))
}

// abandon consumes the rest of the input as one error leaf and returns an
// error root over everything parsed so far.
func (r *run) abandon() tree.NodeID {
	pos := r.lx.Pos()
	rest := text.ByteOffset(len(r.src)) - pos
	if rest > 0 {
		state := r.top().state
		id := r.b.Leaf(grammar.SymbolError, rest, state, tree.FlagError)
		r.push(stackEntry{state: state, node: id, sym: grammar.SymbolError, start: pos, extra: true})
	}
	return r.wrapStackError()
}
