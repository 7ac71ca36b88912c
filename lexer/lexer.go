// Package lexer turns source bytes into grammar terminals. The lexer is
// driven by the grammar's DFA and by the set of terminals the parser can
// accept at its current state: when several terminals match the same text,
// the valid set decides which one is produced. External scanners extend the
// DFA with tokens that need unbounded context, such as balanced brackets.
package lexer

import (
	"unicode/utf8"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

// TokenFlags carry per-token metadata bits.
type TokenFlags uint8

// TokenFlags values.
const (
	// FlagError marks bytes no terminal matched.
	FlagError TokenFlags = 1 << iota
	// FlagMissing marks a zero-width terminal fabricated during error
	// recovery.
	FlagMissing
	// FlagExtra marks a terminal that rides outside grammar positions.
	FlagExtra
	// FlagExternal marks a terminal produced by an external scanner.
	FlagExternal
)

// Has reports whether all bits in mask are set.
func (f TokenFlags) Has(mask TokenFlags) bool {
	return f&mask == mask
}

// Token is one lexed terminal.
type Token struct {
	Symbol grammar.Symbol
	Span   text.Span
	Flags  TokenFlags
}

// IsEOF reports whether the token is the end-of-input terminal.
func (t Token) IsEOF() bool {
	return t.Symbol == grammar.SymbolEOF && !t.Flags.Has(FlagError)
}

// Scanner recognizes external terminals the lexical DFA cannot express.
// Scan inspects src from start and returns the matched terminal and its byte
// length. Implementations must only return terminals present in valid and
// must not return zero-length matches.
type Scanner interface {
	Scan(src []byte, start text.ByteOffset, valid grammar.SymbolSet) (grammar.Symbol, int, bool)
}

// Lexer produces tokens for one source buffer. It is not safe for concurrent
// use.
type Lexer struct {
	table    *grammar.Table
	src      []byte
	off      text.ByteOffset
	scanners []Scanner
}

// New returns a lexer over src positioned at offset 0.
func New(table *grammar.Table, src []byte) *Lexer {
	return &Lexer{table: table, src: src}
}

// AddScanner appends an external scanner. Scanners are consulted in the
// order added, before the DFA.
func (l *Lexer) AddScanner(s Scanner) {
	l.scanners = append(l.scanners, s)
}

// Pos returns the offset of the next token.
func (l *Lexer) Pos() text.ByteOffset {
	return l.off
}

// SetPos repositions the lexer. The offset must be a token boundary for the
// token stream to stay meaningful.
func (l *Lexer) SetPos(off text.ByteOffset) {
	l.off = off
}

// Next returns the next token whose terminal is in valid, is an extra, or is
// the end-of-input terminal. Skipped terminals are consumed silently. Bytes
// no terminal matches come back one rune at a time flagged FlagError.
func (l *Lexer) Next(valid grammar.SymbolSet) Token {
	for {
		start := l.off
		if int(start) >= len(l.src) {
			return Token{Symbol: grammar.SymbolEOF, Span: text.Span{Start: start, End: start}}
		}

		if tok, ok := l.scanExternal(start, valid); ok {
			l.off = tok.Span.End
			return tok
		}

		sym, length, ok := l.matchDFA(start, valid)
		if !ok {
			_, size := utf8.DecodeRune(l.src[start:])
			l.off = start + text.ByteOffset(size)
			return Token{
				Symbol: grammar.SymbolError,
				Span:   text.Span{Start: start, End: l.off},
				Flags:  FlagError,
			}
		}

		l.off = start + text.ByteOffset(length)
		if l.table.IsSkip(sym) {
			continue
		}
		var flags TokenFlags
		if l.table.IsExtra(sym) {
			flags |= FlagExtra
		}
		return Token{Symbol: sym, Span: text.Span{Start: start, End: l.off}, Flags: flags}
	}
}

func (l *Lexer) scanExternal(start text.ByteOffset, valid grammar.SymbolSet) (Token, bool) {
	if len(l.scanners) == 0 || !valid.IntersectsAny(l.table.ExternalTokens()) {
		return Token{}, false
	}
	for _, s := range l.scanners {
		sym, length, ok := s.Scan(l.src, start, valid)
		if !ok || length <= 0 || !valid.Has(sym) {
			continue
		}
		flags := FlagExternal
		if l.table.IsExtra(sym) {
			flags |= FlagExtra
		}
		return Token{
			Symbol: sym,
			Span:   text.Span{Start: start, End: start + text.ByteOffset(length)},
			Flags:  flags,
		}, true
	}
	return Token{}, false
}

// matchDFA runs the lexical DFA from start and returns the longest match
// whose terminal is usable: in valid, an extra, or a skipped terminal. When
// a shorter match is usable and a longer one is not, the shorter wins.
func (l *Lexer) matchDFA(start text.ByteOffset, valid grammar.SymbolSet) (grammar.Symbol, int, bool) {
	var (
		bestSym grammar.Symbol
		bestLen int
		found   bool
	)
	state := int32(0)
	pos := int(start)
	for {
		if sym, ok := l.usableAccept(state, valid); ok {
			bestSym, bestLen, found = sym, pos-int(start), true
		}
		if pos >= len(l.src) {
			break
		}
		r, size := utf8.DecodeRune(l.src[pos:])
		next := l.table.LexStates[state].Step(r)
		if next < 0 {
			break
		}
		state = next
		pos += size
	}
	if bestLen == 0 {
		// A zero-width match cannot make progress.
		found = false
	}
	return bestSym, bestLen, found
}

// usableAccept picks the highest-priority accept of a DFA state that the
// parser can use right now.
func (l *Lexer) usableAccept(state int32, valid grammar.SymbolSet) (grammar.Symbol, bool) {
	for _, sym := range l.table.LexStates[state].Accepts {
		if valid.Has(sym) || l.table.IsSkip(sym) || l.table.IsExtra(sym) {
			return sym, true
		}
	}
	return 0, false
}
