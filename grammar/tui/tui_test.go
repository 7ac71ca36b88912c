package tui_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grindlemire/go-tui/grammar/tui"
	"github.com/grindlemire/go-tui/parser"
	"github.com/grindlemire/go-tui/text"
	"github.com/grindlemire/go-tui/tree"
)

func newParser() *parser.Parser {
	p := parser.New(tui.Language(), parser.Options{})
	for _, s := range tui.Scanners() {
		p.AddScanner(s)
	}
	return p
}

func parseTUI(t *testing.T, src string) *tree.Tree {
	t.Helper()
	tr, err := newParser().Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	require.Equal(t, 0, int(tr.Root().Span().Start))
	require.Equal(t, len(src), int(tr.Root().Span().End))
	return tr
}

func TestLanguage(t *testing.T) {
	tbl := tui.Language()
	require.Same(t, tbl, tui.Language())

	embedded, ok := tbl.SymbolByName("embedded_expr")
	require.True(t, ok)
	require.True(t, tbl.IsExternal(embedded))

	comment, ok := tbl.SymbolByName("comment")
	require.True(t, ok)
	require.True(t, tbl.IsExtra(comment))
}

func TestParseComponent(t *testing.T) {
	src := "// greeting\n" +
		"@component Greeting(name string) {\n" +
		"  <box title=\"hi\" focus={m.Focus}>\n" +
		"    Hello {name}\n" +
		"  </box>\n" +
		"}\n"
	tr := parseTUI(t, src)
	require.False(t, tr.Root().HasError())
	require.Empty(t, tr.Diagnostics())
	require.Equal(t,
		`(source_file (comment) (component "@component" (ident) `+
			`(param_group "(" (param (ident) (ident)) ")") `+
			`(block "{" (element `+
			`(start_tag "<" (ident) (attribute (ident) "=" (string)) (attribute (ident) "=" (embedded_expr)) ">") `+
			`(text) (embedded_expr) `+
			`(end_tag "</" (ident) ">")) "}")))`,
		tr.Sexp())
}

func TestParseControlForms(t *testing.T) {
	src := "@component Status(count int) {\n" +
		"  @let label = statusText(count)\n" +
		"  @if count > 0 {\n" +
		"    <badge value={count} bold/>\n" +
		"  } @else {\n" +
		"    <spinner/>\n" +
		"  }\n" +
		"  @for row := range rows {\n" +
		"    <line/>\n" +
		"  }\n" +
		"}\n"
	tr := parseTUI(t, src)
	require.False(t, tr.Root().HasError())

	sexp := tr.Sexp()
	require.Contains(t, sexp, `(let_stmt "@let" (ident) "=" (control_expr))`)
	require.Contains(t, sexp, `(if_stmt "@if" (control_expr) (block`)
	require.Contains(t, sexp, `"@else"`)
	require.Contains(t, sexp, `(for_stmt "@for" (control_expr) (block`)
	require.Contains(t, sexp, `(self_closing_tag "<" (ident) "/>")`)
	require.Contains(t, sexp, `(attribute (ident) "=" (embedded_expr)) (attribute (ident)) "/>"`)
}

func TestParseQualifiedParamType(t *testing.T) {
	src := "@component Clock(now time.Time) {\n  <face/>\n}\n"
	tr := parseTUI(t, src)
	require.False(t, tr.Root().HasError())
	require.Contains(t, tr.Sexp(), `(param (ident) (ident) "." (ident))`)
}

func TestParseMultipleComponents(t *testing.T) {
	src := "@component A() {\n  <x/>\n}\n@component B() {\n  <y/>\n}\n"
	tr := parseTUI(t, src)
	require.False(t, tr.Root().HasError())
	require.Equal(t, 2, countNamed(tr, "component"))
}

func TestRecoveryInsideBlock(t *testing.T) {
	// The closing "</box>" is missing; the tree still covers the source and
	// reports the damage instead of failing.
	src := "@component Broken() {\n  <box>\n    oops\n}\n"
	tr := parseTUI(t, src)
	require.True(t, tr.Root().HasError())
	require.NotEmpty(t, tr.Diagnostics())
	require.Equal(t, len(src), int(tr.Root().Span().End))
}

func TestIncrementalEditMatchesFullParse(t *testing.T) {
	src := "@component Greeting(name string) {\n" +
		"  <box>\n    Hello {name}\n  </box>\n" +
		"}\n"
	p := newParser()
	old, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)

	// Replace "Hello" with "Howdy!".
	at := strings.Index(src, "Hello")
	require.GreaterOrEqual(t, at, 0)
	newSrc := src[:at] + "Howdy!" + src[at+len("Hello"):]
	edit := tree.InputEdit{
		Start:  text.ByteOffset(at),
		OldEnd: text.ByteOffset(at + 5),
		NewEnd: text.ByteOffset(at + 6),
	}
	incremental, err := p.Reparse(context.Background(), old, []tree.InputEdit{edit}, []byte(newSrc))
	require.NoError(t, err)

	full, err := newParser().Parse(context.Background(), []byte(newSrc))
	require.NoError(t, err)
	require.Equal(t, full.Sexp(), incremental.Sexp())
}

func countNamed(tr *tree.Tree, kind string) int {
	n := 0
	var visit func(tree.Node)
	visit = func(node tree.Node) {
		if node.Kind() == kind {
			n++
		}
		for i := 0; i < node.ChildCount(); i++ {
			visit(node.Child(i))
		}
	}
	visit(tr.Root())
	return n
}
