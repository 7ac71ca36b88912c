package parser_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/grammar/build"
	"github.com/grindlemire/go-tui/parser"
	"github.com/grindlemire/go-tui/text"
	"github.com/grindlemire/go-tui/tree"
)

// listTable parses "(a, a, ...)" lists with comments as extras.
func listTable(t testing.TB) *grammar.Table {
	t.Helper()
	b := build.New("list")
	b.Skip("ws", build.Rep1(build.Class(build.R(' ', ' '), build.R('\t', '\t'), build.R('\n', '\n'))))
	b.Extra("comment", build.Seq(build.Lit("#"), build.Rep(build.Except(build.R('\n', '\n')))))
	b.Token("a", build.Lit("a"))
	b.Token("comma", build.Lit(","))
	b.Token("lparen", build.Lit("("))
	b.Token("rparen", build.Lit(")"))
	b.Hidden("a")
	b.Hidden("comma")
	b.Hidden("lparen")
	b.Hidden("rparen")
	b.Hidden("items")
	b.Rule("list", "lparen", "items", "rparen")
	b.Rule("items", "item")
	b.Rule("items", "items", "comma", "item")
	b.Rule("item", "a")
	b.Rule("item", "list")
	b.Recover("rparen", "comma")
	b.Start("list")
	tbl, err := b.Build()
	require.NoError(t, err)
	return tbl
}

func parseList(t *testing.T, src string) (*parser.Parser, *tree.Tree) {
	t.Helper()
	p := parser.New(listTable(t), parser.Options{})
	tr, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return p, tr
}

// checkInvariants walks the tree verifying child containment and ordering.
func checkInvariants(t *testing.T, tr *tree.Tree) {
	t.Helper()
	var walk func(n tree.Node)
	walk = func(n tree.Node) {
		span := n.Span()
		require.LessOrEqual(t, span.Start, span.End)
		prev := span.Start
		for i := 0; i < n.ChildCount(); i++ {
			c := n.Child(i)
			cs := c.Span()
			require.GreaterOrEqual(t, cs.Start, prev, "child %d of %s out of order", i, n.Kind())
			require.LessOrEqual(t, cs.End, span.End, "child %d of %s escapes parent", i, n.Kind())
			prev = cs.Start
			walk(c)
		}
	}
	root := tr.Root()
	require.Equal(t, text.Span{Start: 0, End: text.ByteOffset(len(tr.Source()))}, root.Span())
	walk(root)
}

func TestParseWellFormed(t *testing.T) {
	_, tr := parseList(t, "(a, a, a)")
	checkInvariants(t, tr)
	require.False(t, tr.Root().HasError())
	require.Equal(t, `(list "(" (item "a") "," (item "a") "," (item "a") ")")`, tr.Sexp())
}

func TestRootCoversPadding(t *testing.T) {
	_, tr := parseList(t, "  (a)  ")
	checkInvariants(t, tr)
	require.Equal(t, text.Span{Start: 0, End: 7}, tr.Root().Span())
	require.False(t, tr.Root().HasError())
}

func TestLeadingAndTrailingComments(t *testing.T) {
	_, tr := parseList(t, "# before\n(a) # after")
	checkInvariants(t, tr)
	require.False(t, tr.Root().HasError())
	require.Contains(t, tr.Sexp(), "(comment)")
}

func TestLeadingCommentStaysAtTopLevel(t *testing.T) {
	_, tr := parseList(t, "#lead\n(a)")
	checkInvariants(t, tr)
	require.False(t, tr.Root().HasError())
	// A file-leading comment is a sibling of the first construct, not a
	// child folded into it.
	require.Equal(t, `(list (comment) "(" (item "a") ")")`, tr.Sexp())
}

func TestTrailingCommentStaysOutsideItems(t *testing.T) {
	_, tr := parseList(t, "(a #c\n, a)")
	checkInvariants(t, tr)
	require.False(t, tr.Root().HasError())
	require.Equal(t, `(list "(" (item "a") (comment) "," (item "a") ")")`, tr.Sexp())
}

func TestMissingClosingParen(t *testing.T) {
	_, tr := parseList(t, "(a")
	checkInvariants(t, tr)
	require.True(t, tr.Root().HasError())
	require.Equal(t, `(list "(" (item "a") (MISSING rparen))`, tr.Sexp())
}

func TestDiagnosticsForRecoveredTree(t *testing.T) {
	_, tr := parseList(t, "(a")
	diags := tr.Diagnostics()
	require.Len(t, diags, 1)
	require.Equal(t, tree.DiagnosticMissingNode, diags[0].Code)
	require.Equal(t, "missing rparen", diags[0].Message)
	require.Equal(t, tree.SeverityError, diags[0].Severity)
	require.Equal(t, text.Span{Start: 2, End: 2}, diags[0].Span)

	_, tr = parseList(t, "(a))")
	diags = tr.Diagnostics()
	require.Len(t, diags, 1)
	require.Equal(t, tree.DiagnosticErrorNode, diags[0].Code)
	require.Equal(t, text.Span{Start: 3, End: 4}, diags[0].Span)
}

func TestUnmatchedExtraParen(t *testing.T) {
	_, tr := parseList(t, "(a))")
	checkInvariants(t, tr)
	require.True(t, tr.Root().HasError())
	// The skipped token ends up inside an error node, not as a bare leaf.
	require.Contains(t, tr.Sexp(), `(ERROR ")")`)
	// The well-formed prefix still parses as a list.
	require.True(t, strings.HasPrefix(tr.Sexp(), `(list "(" (item "a") ")"`))
}

func TestUnknownBytesBecomeErrors(t *testing.T) {
	_, tr := parseList(t, "(a,%a)")
	checkInvariants(t, tr)
	require.True(t, tr.Root().HasError())
	require.Contains(t, tr.Sexp(), "(ERROR)")
	require.Contains(t, tr.Sexp(), `(item "a")`)
}

func TestGarbageInputStillCovers(t *testing.T) {
	for _, src := range []string{"", "))))", "%%%%%", "(((((", "a", ",,,,"} {
		t.Run(src, func(t *testing.T) {
			_, tr := parseList(t, src)
			checkInvariants(t, tr)
		})
	}
}

func TestNestedLists(t *testing.T) {
	_, tr := parseList(t, "(a, (a, a), a)")
	checkInvariants(t, tr)
	require.False(t, tr.Root().HasError())
	require.Contains(t, tr.Sexp(), `(item (list "(" (item "a") "," (item "a") ")"))`)
}

func TestIterativeMissingInsertions(t *testing.T) {
	_, tr := parseList(t, "((a")
	checkInvariants(t, tr)
	require.True(t, tr.Root().HasError())
	require.Equal(t, 2, strings.Count(tr.Sexp(), "(MISSING rparen)"))
}

func TestSyncRecovery(t *testing.T) {
	_, tr := parseList(t, "(a,, a)")
	checkInvariants(t, tr)
	require.True(t, tr.Root().HasError())
	require.Contains(t, tr.Sexp(), "ERROR")
	require.Equal(t, 2, strings.Count(tr.Sexp(), `(item "a")`))
}

func TestRecoveryBudget(t *testing.T) {
	p := parser.New(listTable(t), parser.Options{MaxRecoverySteps: 2})
	src := []byte("((((((a")
	tr, err := p.Parse(context.Background(), src)
	require.NoError(t, err)
	checkInvariants(t, tr)
	require.True(t, tr.Root().HasError())
	require.Equal(t, "ERROR", tr.Root().Kind())
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := parser.New(listTable(t), parser.Options{})
	_, err := p.Parse(ctx, []byte("(a)"))
	require.ErrorIs(t, err, context.Canceled)
}

func listSource(n int) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('a')
	}
	sb.WriteByte(')')
	return sb.String()
}

func TestReparseMatchesFullParse(t *testing.T) {
	tbl := listTable(t)
	p := parser.New(tbl, parser.Options{})
	src := listSource(20)
	old, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)

	// Replace the last item with two items.
	idx := strings.LastIndex(src, "a")
	newSrc := src[:idx] + "a, a" + src[idx+1:]
	edit := tree.InputEdit{
		Start:  text.ByteOffset(idx),
		OldEnd: text.ByteOffset(idx + 1),
		NewEnd: text.ByteOffset(idx + 4),
	}

	incremental, err := p.Reparse(context.Background(), old, []tree.InputEdit{edit}, []byte(newSrc))
	require.NoError(t, err)
	checkInvariants(t, incremental)
	require.Greater(t, p.Stats().NodesReused, 0)

	full, err := parser.New(tbl, parser.Options{}).Parse(context.Background(), []byte(newSrc))
	require.NoError(t, err)
	require.Equal(t, full.Sexp(), incremental.Sexp())
}

func TestReparseMatchesFullInsideErrorRegion(t *testing.T) {
	tbl := listTable(t)
	p := parser.New(tbl, parser.Options{})
	src := " , #(\n(((%a\n)#"
	old, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)

	// Replace the closing paren with more garbage so error extras pile up
	// right after a reusable subtree.
	newSrc := src[:12] + "a%" + src[13:]
	edit := tree.InputEdit{Start: 12, OldEnd: 13, NewEnd: 14}

	incremental, err := p.Reparse(context.Background(), old, []tree.InputEdit{edit}, []byte(newSrc))
	require.NoError(t, err)
	checkInvariants(t, incremental)

	full, err := parser.New(tbl, parser.Options{}).Parse(context.Background(), []byte(newSrc))
	require.NoError(t, err)
	require.Equal(t, full.Sexp(), incremental.Sexp())
}

func TestReparseBoundedWork(t *testing.T) {
	tbl := listTable(t)
	p := parser.New(tbl, parser.Options{})
	src := listSource(300)
	old, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	fullTokens := p.Stats().TokensLexed

	// Edit the very end: replace the final item.
	idx := strings.LastIndex(src, "a")
	edit := tree.InputEdit{
		Start:  text.ByteOffset(idx),
		OldEnd: text.ByteOffset(idx + 1),
		NewEnd: text.ByteOffset(idx + 1),
	}
	incremental, err := p.Reparse(context.Background(), old, []tree.InputEdit{edit}, []byte(src))
	require.NoError(t, err)
	checkInvariants(t, incremental)

	require.Greater(t, p.Stats().NodesReused, 0)
	require.Less(t, p.Stats().TokensLexed, fullTokens/10,
		"incremental reparse lexed %d of %d tokens", p.Stats().TokensLexed, fullTokens)
}

func TestReparseNoEditsReturnsSameTree(t *testing.T) {
	p, tr := parseList(t, "(a, a)")
	same, err := p.Reparse(context.Background(), tr, nil, tr.Source())
	require.NoError(t, err)
	require.Same(t, tr, same)
}

func TestReparseRejectsBadEdits(t *testing.T) {
	p, tr := parseList(t, "(a, a)")
	var invalid *tree.InvalidEditError

	_, err := p.Reparse(context.Background(), tr, []tree.InputEdit{
		{Start: 3, OldEnd: 2, NewEnd: 3},
	}, tr.Source())
	require.ErrorAs(t, err, &invalid)

	_, err = p.Reparse(context.Background(), tr, []tree.InputEdit{
		{Start: 1, OldEnd: 3, NewEnd: 3},
		{Start: 2, OldEnd: 4, NewEnd: 4},
	}, tr.Source())
	require.ErrorAs(t, err, &invalid)

	// Length mismatch between edits and the new source.
	_, err = p.Reparse(context.Background(), tr, []tree.InputEdit{
		{Start: 1, OldEnd: 2, NewEnd: 5},
	}, tr.Source())
	require.ErrorAs(t, err, &invalid)
}

func TestReparseAfterErrorFixesTree(t *testing.T) {
	tbl := listTable(t)
	p := parser.New(tbl, parser.Options{})
	broken, err := p.Parse(context.Background(), []byte("(a"))
	require.NoError(t, err)
	require.True(t, broken.Root().HasError())

	fixed, err := p.Reparse(context.Background(), broken, []tree.InputEdit{
		{Start: 2, OldEnd: 2, NewEnd: 3},
	}, []byte("(a)"))
	require.NoError(t, err)
	checkInvariants(t, fixed)
	require.False(t, fixed.Root().HasError())
	require.Equal(t, `(list "(" (item "a") ")")`, fixed.Sexp())
}

func TestChangedRangesAfterReparse(t *testing.T) {
	tbl := listTable(t)
	p := parser.New(tbl, parser.Options{})
	src := listSource(10)
	old, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)

	// Replace the final item with a nested list.
	idx := strings.LastIndex(src, "a")
	newSrc := src[:idx] + "(a)" + src[idx+1:]
	edit := tree.InputEdit{
		Start:  text.ByteOffset(idx),
		OldEnd: text.ByteOffset(idx + 1),
		NewEnd: text.ByteOffset(idx + 3),
	}
	newTree, err := p.Reparse(context.Background(), old, []tree.InputEdit{edit}, []byte(newSrc))
	require.NoError(t, err)

	ranges := tree.ChangedRanges(old, newTree)
	require.NotEmpty(t, ranges)
	// The unchanged prefix is not reported.
	require.Greater(t, int(ranges[0].Start), 0)
}

func TestObserverEvents(t *testing.T) {
	tbl := listTable(t)
	var events []parser.Event
	p := parser.New(tbl, parser.Options{Observer: func(e parser.Event) {
		events = append(events, e)
	}})

	tr, err := p.Parse(context.Background(), []byte("(a)"))
	require.NoError(t, err)
	_, err = p.Reparse(context.Background(), tr, []tree.InputEdit{
		{Start: 2, OldEnd: 2, NewEnd: 3},
	}, []byte("(a,)"))
	require.NoError(t, err)

	require.Len(t, events, 2)
	require.Equal(t, "full", events[0].Mode)
	require.Equal(t, "incremental", events[1].Mode)
	require.Greater(t, events[0].Stats.TokensLexed, 0)
}
