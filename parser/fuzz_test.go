package parser_test

import (
	"context"
	"testing"

	"github.com/grindlemire/go-tui/parser"
	"github.com/grindlemire/go-tui/text"
	"github.com/grindlemire/go-tui/tree"
)

func FuzzParseAlwaysCovers(f *testing.F) {
	f.Add([]byte("(a, a)"))
	f.Add([]byte("((a), (a, a))"))
	f.Add([]byte("(a,, a"))
	f.Add([]byte("# comment\n(a)"))
	f.Add([]byte(")))((("))
	f.Add([]byte(""))
	f.Add([]byte("%$!?"))

	f.Fuzz(func(t *testing.T, src []byte) {
		tbl := listTable(t)
		p := parser.New(tbl, parser.Options{})
		tr, err := p.Parse(context.Background(), src)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		span := tr.Root().Span()
		if span.Start != 0 || int(span.End) != len(src) {
			t.Fatalf("root covers [%d,%d), source has %d bytes", span.Start, span.End, len(src))
		}
	})
}

func FuzzReparseMatchesFull(f *testing.F) {
	f.Add([]byte("(a, a, a)"), 4, byte('a'))
	f.Add([]byte("((a), a)"), 1, byte('('))
	f.Add([]byte("(a)"), 2, byte(','))
	f.Add([]byte("(a, a"), 5, byte(')'))

	f.Fuzz(func(t *testing.T, src []byte, at int, ins byte) {
		if at < 0 || at > len(src) {
			return
		}
		tbl := listTable(t)
		p := parser.New(tbl, parser.Options{})
		old, err := p.Parse(context.Background(), src)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		newSrc := make([]byte, 0, len(src)+1)
		newSrc = append(newSrc, src[:at]...)
		newSrc = append(newSrc, ins)
		newSrc = append(newSrc, src[at:]...)
		edit := tree.InputEdit{
			Start:  text.ByteOffset(at),
			OldEnd: text.ByteOffset(at),
			NewEnd: text.ByteOffset(at + 1),
		}

		incremental, err := p.Reparse(context.Background(), old, []tree.InputEdit{edit}, newSrc)
		if err != nil {
			t.Fatalf("reparse failed: %v", err)
		}
		full, err := parser.New(tbl, parser.Options{}).Parse(context.Background(), newSrc)
		if err != nil {
			t.Fatalf("full parse failed: %v", err)
		}
		if got, want := incremental.Sexp(), full.Sexp(); got != want {
			t.Fatalf("incremental tree diverged\nincremental: %s\nfull:        %s", got, want)
		}
	})
}
