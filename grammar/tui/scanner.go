package tui

import (
	"sync"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

var exprSymbols = sync.OnceValue(func() (syms struct{ embedded, control grammar.Symbol }) {
	tbl := Language()
	syms.embedded, _ = tbl.SymbolByName("embedded_expr")
	syms.control, _ = tbl.SymbolByName("control_expr")
	return syms
})

// exprScanner recognizes the two context-sensitive terminals of the TUI
// grammar: brace-delimited Go expressions and the raw condition text of
// control forms.
type exprScanner struct{}

func (exprScanner) Scan(src []byte, start text.ByteOffset, valid grammar.SymbolSet) (grammar.Symbol, int, bool) {
	rest := src[start:]
	syms := exprSymbols()
	if valid.Has(syms.embedded) {
		if n := scanBalancedBraces(rest); n > 0 {
			return syms.embedded, n, true
		}
	}
	if valid.Has(syms.control) {
		if n := scanControlExpr(rest); n > 0 {
			return syms.control, n, true
		}
	}
	return 0, 0, false
}

// scanBalancedBraces matches "{" ... "}" with nested braces balanced and
// braces inside Go string and rune literals ignored. It returns 0 when the
// input does not start with "{" or the expression never closes.
func scanBalancedBraces(src []byte) int {
	if len(src) == 0 || src[0] != '{' {
		return 0
	}
	depth := 0
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
			if depth == 0 {
				return i
			}
		case '"', '\'':
			i = skipQuoted(src, i, c)
		case '`':
			i = skipRawString(src, i)
		default:
			i++
		}
		if i < 0 {
			return 0
		}
	}
	return 0
}

// scanControlExpr matches condition text up to the opening "{" of the
// following block or the end of the line, leaving the stop character
// unconsumed. Trailing whitespace is excluded from the match.
func scanControlExpr(src []byte) int {
	// Declining on leading whitespace lets the skip token run first, so the
	// match starts at the condition text.
	if len(src) == 0 || isSpace(src[0]) || src[0] == '\n' {
		return 0
	}
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '{', '\n':
			goto done
		case '"', '\'':
			i = skipQuoted(src, i, c)
			if i < 0 {
				return 0
			}
		case '`':
			i = skipRawString(src, i)
			if i < 0 {
				return 0
			}
		default:
			i++
		}
	}
done:
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	return i
}

// skipQuoted advances past a quoted literal opened at src[i], honoring
// backslash escapes. It returns -1 on an unterminated literal.
func skipQuoted(src []byte, i int, quote byte) int {
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		case '\n':
			return -1
		default:
			i++
		}
	}
	return -1
}

// skipRawString advances past a backquoted literal opened at src[i]. It
// returns -1 on an unterminated literal.
func skipRawString(src []byte, i int) int {
	i++
	for i < len(src) {
		if src[i] == '`' {
			return i + 1
		}
		i++
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}
