package build

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grindlemire/go-tui/grammar"
)

func exprBuilder() *Builder {
	b := New("expr")
	b.Skip("ws", Rep1(Class(R(' ', ' '), R('\t', '\t'), R('\n', '\n'))))
	b.Token("number", Rep1(Class(R('0', '9'))))
	b.Token("ident", Seq(Class(R('a', 'z')), Rep(Class(R('a', 'z'), R('0', '9')))))
	b.Keyword("let", "let")
	b.Token("plus", Lit("+"))
	b.Token("star", Lit("*"))
	b.Token("lparen", Lit("("))
	b.Token("rparen", Lit(")"))
	b.Precedence(AssocLeft, "plus")
	b.Precedence(AssocLeft, "star")
	b.Rule("expr", "expr", "plus", "expr")
	b.Rule("expr", "expr", "star", "expr")
	b.Rule("expr", "number")
	b.Rule("expr", "ident")
	b.Rule("expr", "lparen", "expr", "rparen")
	b.Start("expr")
	return b
}

// runDFA walks the lexical DFA over input and returns the accepts of the
// state reached, or nil when the DFA rejects.
func runDFA(t *testing.T, tbl *grammar.Table, input string) []grammar.Symbol {
	t.Helper()
	state := int32(0)
	for _, r := range input {
		state = tbl.LexStates[state].Step(r)
		if state < 0 {
			return nil
		}
	}
	return tbl.LexStates[state].Accepts
}

func TestBuildExpressionGrammar(t *testing.T) {
	tbl, err := exprBuilder().Build()
	require.NoError(t, err)
	require.Equal(t, "expr", tbl.Name)
	require.Equal(t, 9, tbl.TerminalCount)
	require.Len(t, tbl.Productions, 5)
	require.Greater(t, tbl.NumStates(), 5)

	ws, ok := tbl.SymbolByName("ws")
	require.True(t, ok)
	require.True(t, tbl.IsSkip(ws))
	require.True(t, tbl.IsHidden(ws))
}

func TestLexDFALongestAndKeywords(t *testing.T) {
	tbl, err := exprBuilder().Build()
	require.NoError(t, err)

	num, _ := tbl.SymbolByName("number")
	ident, _ := tbl.SymbolByName("ident")
	let, _ := tbl.SymbolByName("let")

	require.Equal(t, []grammar.Symbol{num}, runDFA(t, tbl, "42"))
	require.Equal(t, []grammar.Symbol{ident}, runDFA(t, tbl, "le"))
	// The keyword outranks the identifier on the exact literal.
	require.Equal(t, []grammar.Symbol{let, ident}, runDFA(t, tbl, "let"))
	// One more letter and only the identifier remains.
	require.Equal(t, []grammar.Symbol{ident}, runDFA(t, tbl, "lets"))
	require.Nil(t, runDFA(t, tbl, "4a"))
}

func TestShiftReduceConflictWithoutPrecedence(t *testing.T) {
	b := New("ambiguous")
	b.Token("number", Rep1(Class(R('0', '9'))))
	b.Token("plus", Lit("+"))
	b.Rule("expr", "expr", "plus", "expr")
	b.Rule("expr", "number")
	b.Start("expr")

	_, err := b.Build()
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "shift/reduce", conflict.Kind)
	require.Equal(t, "plus", conflict.Symbol)
}

func TestReduceReduceConflict(t *testing.T) {
	b := New("rr")
	b.Token("x", Lit("x"))
	b.Rule("a", "x")
	b.Rule("b", "x")
	b.Rule("top", "a")
	b.Rule("top", "b")
	b.Start("top")

	_, err := b.Build()
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "reduce/reduce", conflict.Kind)
}

func TestBuildErrors(t *testing.T) {
	t.Run("undefined reference", func(t *testing.T) {
		b := New("bad")
		b.Token("x", Lit("x"))
		b.Rule("top", "x", "missing")
		b.Start("top")
		_, err := b.Build()
		require.ErrorContains(t, err, "undefined symbol")
	})

	t.Run("duplicate token", func(t *testing.T) {
		b := New("bad")
		b.Token("x", Lit("x"))
		b.Token("x", Lit("y"))
		b.Rule("top", "x")
		b.Start("top")
		_, err := b.Build()
		require.ErrorContains(t, err, "declared twice")
	})

	t.Run("no start", func(t *testing.T) {
		b := New("bad")
		b.Token("x", Lit("x"))
		b.Rule("top", "x")
		_, err := b.Build()
		require.ErrorContains(t, err, "no start rule")
	})

	t.Run("start not a rule", func(t *testing.T) {
		b := New("bad")
		b.Token("x", Lit("x"))
		b.Rule("top", "x")
		b.Start("x")
		_, err := b.Build()
		require.ErrorContains(t, err, "not a defined nonterminal")
	})

	t.Run("empty-string token", func(t *testing.T) {
		b := New("bad")
		b.Token("x", Rep(Class(R('a', 'z'))))
		b.Rule("top", "x")
		b.Start("top")
		_, err := b.Build()
		require.ErrorContains(t, err, "empty string")
	})

	t.Run("rule uses skipped token", func(t *testing.T) {
		b := New("bad")
		b.Skip("ws", Lit(" "))
		b.Token("x", Lit("x"))
		b.Rule("top", "ws", "x")
		b.Start("top")
		_, err := b.Build()
		require.ErrorContains(t, err, "skipped token")
	})
}

func TestEpsilonRule(t *testing.T) {
	b := New("eps")
	b.Token("x", Lit("x"))
	b.Rule("top", "items")
	b.Rule("items")
	b.Rule("items", "items", "x")
	b.Start("top")

	tbl, err := b.Build()
	require.NoError(t, err)
	items, ok := tbl.SymbolByName("items")
	require.True(t, ok)
	require.False(t, tbl.IsTerminal(items))
}

func TestExceptClass(t *testing.T) {
	b := New("str")
	b.Token("str", Seq(Lit(`"`), Rep(Except(R('"', '"'), R('\n', '\n'))), Lit(`"`)))
	b.Rule("top", "str")
	b.Start("top")

	tbl, err := b.Build()
	require.NoError(t, err)
	str, _ := tbl.SymbolByName("str")
	require.Equal(t, []grammar.Symbol{str}, runDFA(t, tbl, `"hi there"`))
	require.Empty(t, runDFA(t, tbl, `"open`))
	require.Nil(t, runDFA(t, tbl, "\"a\nb\""))
}

func TestEncodeRoundTripBuiltGrammar(t *testing.T) {
	tbl, err := exprBuilder().Build()
	require.NoError(t, err)

	data, err := tbl.Encode()
	require.NoError(t, err)
	got, err := grammar.Load(data)
	require.NoError(t, err)
	require.Equal(t, tbl.Actions, got.Actions)
	require.Equal(t, tbl.LexStates, got.LexStates)
	require.Equal(t, tbl.Symbols, got.Symbols)
}
