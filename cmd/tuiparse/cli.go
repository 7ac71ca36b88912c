package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/grammar/tui"
	"github.com/grindlemire/go-tui/lexer"
	"github.com/grindlemire/go-tui/lexer/scannerwasm"
	"github.com/grindlemire/go-tui/parser"
	"github.com/grindlemire/go-tui/text"
	"github.com/grindlemire/go-tui/tree"
)

const (
	exitOK       = 0
	exitSyntax   = 1
	exitInternal = 2
)

var log = commonlog.GetLogger("tuiparse")

type cliOptions struct {
	sexp        bool
	diagnostics bool
	grammarPath string
	editSpec    string
	replace     string
	scannerWasm string
	verbose     int
	paths       []string
}

type fileResult struct {
	path      string
	sexp      string
	nodeCount int
	diagCount int
	diagLines []string
	replay    string
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) int {
	opts, usage, err := parseArgs(args)
	if err != nil {
		writef(stderr, "tuiparse: %v\n\n%s", err, usage)
		return exitInternal
	}
	commonlog.Configure(opts.verbose, nil)

	tbl, scanners, cleanup, err := loadGrammar(ctx, opts)
	if err != nil {
		writef(stderr, "tuiparse: %v\n", err)
		return exitInternal
	}
	defer cleanup()

	results := make([]fileResult, len(opts.paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range opts.paths {
		g.Go(func() error {
			res, err := processFile(gctx, tbl, scanners, opts, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writef(stderr, "tuiparse: %v\n", err)
		return exitInternal
	}

	exit := exitOK
	for _, res := range results {
		if opts.sexp {
			writef(stdout, "%s\n", res.sexp)
		}
		for _, d := range res.diagLines {
			writef(stdout, "%s\n", d)
		}
		if res.replay != "" {
			writef(stdout, "%s\n", res.replay)
		}
		if !opts.sexp && res.replay == "" {
			writef(stdout, "%s: %d nodes, %d diagnostics\n", res.path, res.nodeCount, res.diagCount)
		}
		if res.diagCount > 0 {
			exit = exitSyntax
		}
	}
	return exit
}

func parseArgs(args []string) (cliOptions, string, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("tuiparse", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&opts.sexp, "sexp", false, "print the syntax tree as an s-expression")
	fs.BoolVar(&opts.diagnostics, "diagnostics", false, "print error and missing-node diagnostics with line:col positions")
	fs.StringVar(&opts.grammarPath, "grammar", "", "load a compiled grammar table (JSON) instead of the built-in TUI grammar")
	fs.StringVar(&opts.editSpec, "edit", "", "replay an edit start:oldEnd:newEnd (byte offsets) through an incremental reparse")
	fs.StringVar(&opts.replace, "replace", "", "replacement text for -edit")
	fs.StringVar(&opts.scannerWasm, "scanner-wasm", "", "attach an external scanner compiled to WebAssembly")
	fs.IntVar(&opts.verbose, "v", 0, "log verbosity")

	usage := cliUsage(fs)
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, usage, err
	}

	opts.paths = fs.Args()
	if len(opts.paths) == 0 {
		return cliOptions{}, usage, errors.New("at least one input file path is required")
	}
	if opts.editSpec != "" && len(opts.paths) != 1 {
		return cliOptions{}, usage, errors.New("-edit works on exactly one input file")
	}
	if opts.replace != "" && opts.editSpec == "" {
		return cliOptions{}, usage, errors.New("-replace requires -edit")
	}
	return opts, usage, nil
}

func cliUsage(fs *flag.FlagSet) string {
	var b strings.Builder
	b.WriteString("Usage:\n")
	b.WriteString("  tuiparse [flags] file.tui [file.tui ...]\n\n")
	b.WriteString("Flags:\n")
	fs.VisitAll(func(f *flag.Flag) {
		writef(&b, "  -%s\t%s\n", f.Name, f.Usage)
	})
	return b.String()
}

func loadGrammar(ctx context.Context, opts cliOptions) (*grammar.Table, []lexer.Scanner, func(), error) {
	var (
		tbl      *grammar.Table
		scanners []lexer.Scanner
	)
	cleanup := func() {}

	if opts.grammarPath == "" {
		tbl = tui.Language()
		scanners = tui.Scanners()
	} else {
		data, err := os.ReadFile(opts.grammarPath)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("read grammar: %w", err)
		}
		tbl, err = grammar.Load(data)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("load grammar: %w", err)
		}
	}

	if opts.scannerWasm != "" {
		bin, err := os.ReadFile(opts.scannerWasm)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("read scanner module: %w", err)
		}
		ws, err := scannerwasm.Load(ctx, bin)
		if err != nil {
			return nil, nil, cleanup, err
		}
		scanners = append(scanners, ws)
		cleanup = func() { _ = ws.Close(context.Background()) }
	}
	return tbl, scanners, cleanup, nil
}

func processFile(ctx context.Context, tbl *grammar.Table, scanners []lexer.Scanner, opts cliOptions, path string) (fileResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return fileResult{}, err
	}

	p := parser.New(tbl, parser.Options{})
	for _, s := range scanners {
		p.AddScanner(s)
	}
	tr, err := p.Parse(ctx, src)
	if err != nil {
		return fileResult{}, err
	}
	stats := p.Stats()
	log.Debugf("parsed %s: %d bytes, %d tokens", path, len(src), stats.TokensLexed)

	res := fileResult{path: path, nodeCount: tr.NodeCount()}

	if opts.editSpec != "" {
		tr, res.replay, err = replayEdit(ctx, p, tr, src, opts, path)
		if err != nil {
			return fileResult{}, err
		}
	}
	if opts.sexp {
		res.sexp = tr.Sexp()
	}
	diags := tr.Diagnostics()
	res.diagCount = len(diags)
	if opts.diagnostics {
		res.diagLines = renderDiagnostics(path, tr, diags)
	}
	return res, nil
}

// replayEdit applies -edit/-replace to the parsed file and reparses
// incrementally, reporting how much of the old tree survived.
func replayEdit(ctx context.Context, p *parser.Parser, old *tree.Tree, src []byte, opts cliOptions, path string) (*tree.Tree, string, error) {
	edit, err := parseEditSpec(opts.editSpec, opts.replace)
	if err != nil {
		return nil, "", fmt.Errorf("invalid -edit: %w", err)
	}
	newSrc, err := text.ApplyEdits(src, []text.ByteEdit{{
		Span:    text.Span{Start: edit.Start, End: edit.OldEnd},
		NewText: []byte(opts.replace),
	}})
	if err != nil {
		return nil, "", fmt.Errorf("apply -edit: %w", err)
	}
	newTree, err := p.Reparse(ctx, old, []tree.InputEdit{edit}, newSrc)
	if err != nil {
		return nil, "", fmt.Errorf("reparse: %w", err)
	}
	stats := p.Stats()
	replay := fmt.Sprintf("%s: reparse reused %d nodes, lexed %d tokens, recovery steps %d",
		path, stats.NodesReused, stats.TokensLexed, stats.RecoverySteps)
	return newTree, replay, nil
}

func parseEditSpec(spec, replace string) (tree.InputEdit, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return tree.InputEdit{}, errors.New("expected start:oldEnd:newEnd")
	}
	vals := make([]text.ByteOffset, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return tree.InputEdit{}, fmt.Errorf("bad offset %q", part)
		}
		vals[i] = text.ByteOffset(n)
	}
	edit := tree.InputEdit{Start: vals[0], OldEnd: vals[1], NewEnd: vals[2]}
	if edit.OldEnd < edit.Start || edit.NewEnd < edit.Start {
		return tree.InputEdit{}, errors.New("offsets out of order")
	}
	if got := edit.NewEnd - edit.Start; int(got) != len(replace) {
		return tree.InputEdit{}, fmt.Errorf("-replace is %d bytes, edit expects %d", len(replace), got)
	}
	return edit, nil
}

func renderDiagnostics(path string, tr *tree.Tree, diags []tree.Diagnostic) []string {
	if len(diags) == 0 {
		return nil
	}
	li := text.NewLineIndex(tr.Source())
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		pos := fmt.Sprintf("%d", d.Span.Start)
		if pt, err := li.OffsetToPoint(d.Span.Start); err == nil {
			pos = pt.String()
		}
		out = append(out, fmt.Sprintf("%s:%s: %s [%s]", path, pos, d.Message, d.Code))
	}
	return out
}

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
