package tree

import (
	"sort"

	"github.com/grindlemire/go-tui/text"
)

// Severity is a diagnostic severity level.
type Severity uint8

const (
	// SeverityError indicates an error diagnostic.
	SeverityError Severity = iota + 1
	// SeverityWarning indicates a warning diagnostic.
	SeverityWarning
	// SeverityInfo indicates an informational diagnostic.
	SeverityInfo
)

// DiagnosticCode identifies a syntax-layer diagnostic kind.
type DiagnosticCode string

const (
	// DiagnosticErrorNode reports a parser-generated error node.
	DiagnosticErrorNode DiagnosticCode = "PARSE_ERROR_NODE"
	// DiagnosticMissingNode reports a parser-generated missing node.
	DiagnosticMissingNode DiagnosticCode = "PARSE_MISSING_NODE"
)

// Diagnostic is a syntax diagnostic derived from the tree.
type Diagnostic struct {
	Code     DiagnosticCode
	Message  string
	Severity Severity
	Span     text.Span
	Source   string
}

// Diagnostics walks the tree and reports one diagnostic per ERROR and
// MISSING node. The result is sorted by span start, then end.
func (t *Tree) Diagnostics() []Diagnostic {
	var out []Diagnostic
	collectDiagnostics(t.Root(), &out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Span.End < out[j].Span.End
	})
	return out
}

func collectDiagnostics(n Node, out *[]Diagnostic) {
	switch {
	case n.IsMissing():
		*out = append(*out, Diagnostic{
			Code:     DiagnosticMissingNode,
			Message:  "missing " + n.Kind(),
			Severity: SeverityError,
			Span:     n.Span(),
			Source:   "parser",
		})
		return
	case n.IsError():
		// Whole error regions read as one diagnostic, not one per salvaged
		// child.
		*out = append(*out, Diagnostic{
			Code:     DiagnosticErrorNode,
			Message:  "syntax error",
			Severity: SeverityError,
			Span:     n.Span(),
			Source:   "parser",
		})
		return
	}
	for i := 0; i < n.ChildCount(); i++ {
		collectDiagnostics(n.Child(i), out)
	}
}
