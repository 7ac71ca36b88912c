// Package parser drives a grammar's parse table over source text and builds
// syntax trees. Parsing always produces a tree: input the grammar rejects is
// covered by error nodes, and bounded recovery keeps the parser moving past
// damage. Reparse reuses clean subtrees from a previous version, so the work
// after an edit is proportional to the damage, not the document.
package parser

import (
	"context"
	"fmt"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/lexer"
	"github.com/grindlemire/go-tui/text"
	"github.com/grindlemire/go-tui/tree"
)

// DefaultMaxRecoverySteps bounds error recovery when Options leave it unset.
const DefaultMaxRecoverySteps = 1024

// verifyEvery is how often incremental results are cross-checked against a
// full parse.
const verifyEvery = 256

// Options configure a Parser.
type Options struct {
	// MaxRecoverySteps caps the number of recovery actions (insertions and
	// skips) in one parse. Past the cap, the rest of the input becomes one
	// error node. Zero means DefaultMaxRecoverySteps.
	MaxRecoverySteps int

	// Observer, when set, receives one Event per parse.
	Observer func(Event)
}

// Stats describe the work one parse performed.
type Stats struct {
	TokensLexed   int
	NodesReused   int
	RecoverySteps int
}

// Event reports how a parse was satisfied.
type Event struct {
	// Mode is "full", "incremental", or "verified_full" when periodic
	// verification replaced a diverging incremental result.
	Mode  string
	Stats Stats
}

// Parser parses source with one grammar. A Parser is not safe for
// concurrent use; parsers are cheap, so create one per goroutine.
type Parser struct {
	table    *grammar.Table
	opts     Options
	scanners []lexer.Scanner

	stats    Stats
	reparses int
}

// New returns a parser for the grammar.
func New(table *grammar.Table, opts Options) *Parser {
	if opts.MaxRecoverySteps <= 0 {
		opts.MaxRecoverySteps = DefaultMaxRecoverySteps
	}
	return &Parser{table: table, opts: opts}
}

// AddScanner registers an external scanner consulted during lexing.
func (p *Parser) AddScanner(s lexer.Scanner) {
	p.scanners = append(p.scanners, s)
}

// Stats returns the work counters of the most recent parse.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse builds a tree for src from scratch. The returned tree always covers
// all of src; syntax errors appear as error and missing nodes rather than
// failing the parse. The context is checked periodically and its error
// returned if it fires.
func (p *Parser) Parse(ctx context.Context, src []byte) (*tree.Tree, error) {
	t, err := p.parse(ctx, src, tree.NewBuilder(p.table), nil)
	if err != nil {
		return nil, err
	}
	p.emit("full")
	return t, nil
}

// Reparse builds a tree for newSrc, reusing unchanged subtrees of old. The
// edits describe how old's source became newSrc, ordered by start offset
// and non-overlapping, each in old's coordinates. Invalid edits return an
// InvalidEditError from the tree package.
func (p *Parser) Reparse(ctx context.Context, old *tree.Tree, edits []tree.InputEdit, newSrc []byte) (*tree.Tree, error) {
	if old == nil {
		return p.Parse(ctx, newSrc)
	}
	if len(edits) == 0 {
		p.stats = Stats{}
		p.emit("incremental")
		return old, nil
	}

	edited, damage, err := applyEdits(old, edits, newSrc)
	if err != nil {
		return nil, err
	}
	if edited.Len() != text.ByteOffset(len(newSrc)) {
		return nil, &tree.InvalidEditError{
			Edit:   edits[len(edits)-1],
			Reason: fmt.Sprintf("edits produce length %d, source has %d", edited.Len(), len(newSrc)),
		}
	}

	t, err := p.parse(ctx, newSrc, tree.NewBuilderFrom(edited), &reuseSource{old: edited, damage: damage})
	if err != nil {
		return nil, err
	}

	p.reparses++
	if p.reparses%verifyEvery == 0 {
		if full, verr := p.verify(ctx, t, newSrc); verr != nil {
			return nil, verr
		} else if full != nil {
			p.emit("verified_full")
			return full, nil
		}
	}
	p.emit("incremental")
	return t, nil
}

// verify reparses newSrc from scratch and returns the full tree when the
// incremental one diverges from it, nil when they agree.
func (p *Parser) verify(ctx context.Context, incremental *tree.Tree, newSrc []byte) (*tree.Tree, error) {
	saved := p.stats
	full, err := p.parse(ctx, newSrc, tree.NewBuilder(p.table), nil)
	if err != nil {
		return nil, err
	}
	p.stats = saved
	if full.Sexp() == incremental.Sexp() {
		return nil, nil
	}
	return full, nil
}

func (p *Parser) emit(mode string) {
	if p.opts.Observer != nil {
		p.opts.Observer(Event{Mode: mode, Stats: p.stats})
	}
}

// applyEdits folds the edits into a position-adjusted tree and computes the
// damaged spans in new-source coordinates. Edits are applied high to low so
// each one sees the coordinates it was expressed in.
func applyEdits(old *tree.Tree, edits []tree.InputEdit, newSrc []byte) (*tree.Tree, []text.Span, error) {
	for i := 1; i < len(edits); i++ {
		if edits[i].Start < edits[i-1].OldEnd {
			return nil, nil, &tree.InvalidEditError{Edit: edits[i], Reason: "edits overlap or are unsorted"}
		}
	}

	cur := old
	for i := len(edits) - 1; i >= 0; i-- {
		next, err := cur.Edit(edits[i], nil)
		if err != nil {
			return nil, nil, err
		}
		cur = next
	}
	cur = cur.WithSource(newSrc)

	// Damage spans in final coordinates, widened one byte on each side so
	// tokens touching an edit are never reused across it.
	var damage []text.Span
	var delta text.ByteOffset
	for _, e := range edits {
		start := e.Start + delta
		end := e.NewEnd + delta
		if start > 0 {
			start--
		}
		damage = append(damage, text.Span{Start: start, End: end + 1})
		delta += e.Delta()
	}
	return cur, damage, nil
}
