package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/grammar/build"
	"github.com/grindlemire/go-tui/lexer"
	"github.com/grindlemire/go-tui/text"
)

func testTable(t *testing.T) *grammar.Table {
	t.Helper()
	b := build.New("lex-test")
	b.Skip("ws", build.Rep1(build.Class(build.R(' ', ' '), build.R('\t', '\t'), build.R('\n', '\n'))))
	b.Extra("comment", build.Seq(build.Lit("//"), build.Rep(build.Except(build.R('\n', '\n')))))
	b.Token("number", build.Rep1(build.Class(build.R('0', '9'))))
	b.Token("ident", build.Rep1(build.Class(build.R('a', 'z'))))
	b.Keyword("if", "if")
	b.Token("lt", build.Lit("<"))
	b.Token("ltslash", build.Lit("</"))
	b.Rule("top", "number")
	b.Start("top")
	tbl, err := b.Build()
	require.NoError(t, err)
	return tbl
}

func allTerminals(tbl *grammar.Table) grammar.SymbolSet {
	set := grammar.NewSymbolSet(tbl.TerminalCount)
	for i := 1; i < tbl.TerminalCount; i++ {
		set.Add(grammar.Symbol(i))
	}
	return set
}

func sym(t *testing.T, tbl *grammar.Table, name string) grammar.Symbol {
	t.Helper()
	s, ok := tbl.SymbolByName(name)
	require.True(t, ok, "symbol %q", name)
	return s
}

func TestNextSkipsWhitespace(t *testing.T) {
	tbl := testTable(t)
	lx := lexer.New(tbl, []byte("  42\tfoo"))
	valid := allTerminals(tbl)

	tok := lx.Next(valid)
	require.Equal(t, sym(t, tbl, "number"), tok.Symbol)
	require.Equal(t, text.Span{Start: 2, End: 4}, tok.Span)

	tok = lx.Next(valid)
	require.Equal(t, sym(t, tbl, "ident"), tok.Symbol)
	require.Equal(t, text.Span{Start: 5, End: 8}, tok.Span)

	tok = lx.Next(valid)
	require.True(t, tok.IsEOF())
	require.True(t, tok.Span.IsEmpty())
}

func TestKeywordVersusIdentifier(t *testing.T) {
	tbl := testTable(t)
	valid := allTerminals(tbl)

	lx := lexer.New(tbl, []byte("if ifx"))
	tok := lx.Next(valid)
	require.Equal(t, sym(t, tbl, "if"), tok.Symbol)
	tok = lx.Next(valid)
	require.Equal(t, sym(t, tbl, "ident"), tok.Symbol)

	// With the keyword excluded from the valid set, the same text lexes as
	// an identifier.
	noKw := grammar.NewSymbolSet(tbl.TerminalCount)
	noKw.Add(sym(t, tbl, "ident"))
	lx = lexer.New(tbl, []byte("if"))
	tok = lx.Next(noKw)
	require.Equal(t, sym(t, tbl, "ident"), tok.Symbol)
}

func TestLongestMatchRespectsValidSet(t *testing.T) {
	tbl := testTable(t)

	// Both "<" and "</" match; the longer token wins when valid.
	valid := allTerminals(tbl)
	lx := lexer.New(tbl, []byte("</x"))
	tok := lx.Next(valid)
	require.Equal(t, sym(t, tbl, "ltslash"), tok.Symbol)
	require.Equal(t, text.ByteOffset(2), tok.Span.End)

	// When only "<" is valid the shorter match is produced instead.
	onlyLt := grammar.NewSymbolSet(tbl.TerminalCount)
	onlyLt.Add(sym(t, tbl, "lt"))
	lx = lexer.New(tbl, []byte("</x"))
	tok = lx.Next(onlyLt)
	require.Equal(t, sym(t, tbl, "lt"), tok.Symbol)
	require.Equal(t, text.ByteOffset(1), tok.Span.End)
}

func TestCommentIsExtra(t *testing.T) {
	tbl := testTable(t)
	lx := lexer.New(tbl, []byte("// note\n7"))

	// Extras are produced even when absent from the valid set.
	onlyNum := grammar.NewSymbolSet(tbl.TerminalCount)
	onlyNum.Add(sym(t, tbl, "number"))

	tok := lx.Next(onlyNum)
	require.Equal(t, sym(t, tbl, "comment"), tok.Symbol)
	require.True(t, tok.Flags.Has(lexer.FlagExtra))

	tok = lx.Next(onlyNum)
	require.Equal(t, sym(t, tbl, "number"), tok.Symbol)
}

func TestUnmatchedByteBecomesErrorToken(t *testing.T) {
	tbl := testTable(t)
	valid := allTerminals(tbl)
	lx := lexer.New(tbl, []byte("#5"))

	tok := lx.Next(valid)
	require.Equal(t, grammar.SymbolError, tok.Symbol)
	require.True(t, tok.Flags.Has(lexer.FlagError))
	require.Equal(t, text.Span{Start: 0, End: 1}, tok.Span)

	tok = lx.Next(valid)
	require.Equal(t, sym(t, tbl, "number"), tok.Symbol)
}

type bracketScanner struct {
	sym grammar.Symbol
}

func (s bracketScanner) Scan(src []byte, start text.ByteOffset, valid grammar.SymbolSet) (grammar.Symbol, int, bool) {
	if !valid.Has(s.sym) || int(start) >= len(src) || src[start] != '{' {
		return 0, 0, false
	}
	depth := 0
	for i := int(start); i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s.sym, i - int(start) + 1, true
			}
		}
	}
	return 0, 0, false
}

func TestExternalScanner(t *testing.T) {
	b := build.New("ext-test")
	b.Skip("ws", build.Rep1(build.Class(build.R(' ', ' '))))
	b.Token("ident", build.Rep1(build.Class(build.R('a', 'z'))))
	b.External("block")
	b.Rule("top", "ident", "block")
	b.Start("top")
	tbl, err := b.Build()
	require.NoError(t, err)

	block := sym(t, tbl, "block")
	lx := lexer.New(tbl, []byte("hi {a {b} c}"))
	lx.AddScanner(bracketScanner{sym: block})

	valid := allTerminals(tbl)
	tok := lx.Next(valid)
	require.Equal(t, sym(t, tbl, "ident"), tok.Symbol)

	tok = lx.Next(valid)
	require.Equal(t, block, tok.Symbol)
	require.True(t, tok.Flags.Has(lexer.FlagExternal))
	require.Equal(t, text.Span{Start: 3, End: 12}, tok.Span)
}
