package build

// maxRune is the upper bound for character classes.
const maxRune rune = 0x10FFFF

// RuneRange is an inclusive range of runes.
type RuneRange struct {
	Lo, Hi rune
}

// R is shorthand for a RuneRange literal.
func R(lo, hi rune) RuneRange {
	return RuneRange{Lo: lo, Hi: hi}
}

// Pattern describes the shape of one token. Patterns are composed with the
// combinators below and compiled into the lexical DFA by Build.
type Pattern interface {
	compile(nb *nfaBuilder) fragment
}

type litPattern struct{ text string }

type classPattern struct {
	ranges []RuneRange
	negate bool
}

type seqPattern struct{ parts []Pattern }

type altPattern struct{ parts []Pattern }

type repPattern struct {
	inner   Pattern
	atLeast int // 0 or 1
}

type optPattern struct{ inner Pattern }

// Lit matches the literal text exactly.
func Lit(text string) Pattern {
	return litPattern{text: text}
}

// Class matches any single rune inside one of the ranges.
func Class(ranges ...RuneRange) Pattern {
	return classPattern{ranges: ranges}
}

// Except matches any single rune outside all of the ranges.
func Except(ranges ...RuneRange) Pattern {
	return classPattern{ranges: ranges, negate: true}
}

// Any matches any single rune.
func Any() Pattern {
	return classPattern{ranges: []RuneRange{{Lo: 0, Hi: maxRune}}}
}

// Seq matches the patterns one after another.
func Seq(parts ...Pattern) Pattern {
	return seqPattern{parts: parts}
}

// Alt matches any one of the patterns.
func Alt(parts ...Pattern) Pattern {
	return altPattern{parts: parts}
}

// Rep matches zero or more occurrences of p.
func Rep(p Pattern) Pattern {
	return repPattern{inner: p}
}

// Rep1 matches one or more occurrences of p.
func Rep1(p Pattern) Pattern {
	return repPattern{inner: p, atLeast: 1}
}

// Opt matches zero or one occurrence of p.
func Opt(p Pattern) Pattern {
	return optPattern{inner: p}
}

func (p litPattern) compile(nb *nfaBuilder) fragment {
	start := nb.newState()
	cur := start
	for _, r := range p.text {
		next := nb.newState()
		nb.addEdge(cur, r, r, next)
		cur = next
	}
	return fragment{start: start, end: cur}
}

func (p classPattern) compile(nb *nfaBuilder) fragment {
	start := nb.newState()
	end := nb.newState()
	ranges := p.ranges
	if p.negate {
		ranges = complementRanges(ranges)
	}
	for _, r := range ranges {
		nb.addEdge(start, r.Lo, r.Hi, end)
	}
	return fragment{start: start, end: end}
}

func (p seqPattern) compile(nb *nfaBuilder) fragment {
	if len(p.parts) == 0 {
		s := nb.newState()
		return fragment{start: s, end: s}
	}
	first := p.parts[0].compile(nb)
	prev := first
	for _, part := range p.parts[1:] {
		next := part.compile(nb)
		nb.addEps(prev.end, next.start)
		prev = next
	}
	return fragment{start: first.start, end: prev.end}
}

func (p altPattern) compile(nb *nfaBuilder) fragment {
	start := nb.newState()
	end := nb.newState()
	for _, part := range p.parts {
		f := part.compile(nb)
		nb.addEps(start, f.start)
		nb.addEps(f.end, end)
	}
	return fragment{start: start, end: end}
}

func (p repPattern) compile(nb *nfaBuilder) fragment {
	start := nb.newState()
	end := nb.newState()
	f := p.inner.compile(nb)
	nb.addEps(start, f.start)
	nb.addEps(f.end, end)
	nb.addEps(f.end, f.start)
	if p.atLeast == 0 {
		nb.addEps(start, end)
	}
	return fragment{start: start, end: end}
}

func (p optPattern) compile(nb *nfaBuilder) fragment {
	f := p.inner.compile(nb)
	nb.addEps(f.start, f.end)
	return f
}

// complementRanges inverts a range set over the full rune space. Input ranges
// may overlap or be unordered.
func complementRanges(ranges []RuneRange) []RuneRange {
	merged := mergeRanges(ranges)
	var out []RuneRange
	next := rune(0)
	for _, r := range merged {
		if r.Lo > next {
			out = append(out, RuneRange{Lo: next, Hi: r.Lo - 1})
		}
		if r.Hi+1 > next {
			next = r.Hi + 1
		}
	}
	if next <= maxRune {
		out = append(out, RuneRange{Lo: next, Hi: maxRune})
	}
	return out
}

func mergeRanges(ranges []RuneRange) []RuneRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]RuneRange, len(ranges))
	copy(sorted, ranges)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Lo < sorted[j-1].Lo; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	out := sorted[:1]
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Lo <= last.Hi+1 {
			if r.Hi > last.Hi {
				last.Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
