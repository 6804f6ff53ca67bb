// Package token implements the tokenizer described by component A: it
// splits superset source into include directives, region markers, line
// terminators and opaque "common" runs, never failing on arbitrary
// input and always preserving byte-exact round trip (concatenating every
// token's Text reproduces the original source).
package token

// Kind tags a Token's variant.
type Kind int

const (
	// Include is the header of an include directive: `import` or
	// `#include`, not counting the path literal itself.
	Include Kind = iota
	// IncludePath is the quoted (or angle-bracketed) include target.
	IncludePath
	// RegionOpen is a `#text` or `#sql` marker.
	RegionOpen
	// RegionClose is a `#endtext` or `#endsql` marker.
	RegionClose
	// LineTerminator is one `\n` or `\r\n`.
	LineTerminator
	// Common is a run of uninteresting characters with no line break.
	Common
	// CommonWithLineEnding is a run of uninteresting characters whose
	// span crosses one or more line breaks (e.g. inside a multi-line
	// string literal, template string, or block comment, which are
	// opaque lexical contexts per the grammar).
	CommonWithLineEnding
	// EOI is always the final token, one position past the end of input.
	EOI
)

func (k Kind) String() string {
	switch k {
	case Include:
		return "Include"
	case IncludePath:
		return "IncludePath"
	case RegionOpen:
		return "RegionOpen"
	case RegionClose:
		return "RegionClose"
	case LineTerminator:
		return "LineTerminator"
	case Common:
		return "Common"
	case CommonWithLineEnding:
		return "CommonWithLineEnding"
	case EOI:
		return "EOI"
	default:
		return "Unknown"
	}
}

// Pos is a zero-based line/column position. Column is a UTF-16 code unit
// offset (per spec §4.A's line/column convention, matching LSP Position),
// reset at every LineTerminator.
type Pos struct {
	Line int
	Col  int
}

// Span is a Pos plus a byte length, the shape every Token variant below
// is built from.
type Span struct {
	Pos
	ByteLen int
}

// Token is one lexical unit. Not every field is meaningful for every
// Kind; Literal only applies to IncludePath, and Text is eagerly-copied
// (owned) source text rather than a borrowed slice, since Go has no
// lifetime to track a borrow against (see design notes on
// "runtime-borrowed tokens").
type Token struct {
	Kind    Kind
	Span    Span
	Text    string
	Literal string // IncludePath only: the include target with quotes stripped.
}

// End returns the position one past this token's last character,
// accounting for any line breaks the token's own text contains.
func (t Token) End() Pos {
	if t.Kind == LineTerminator {
		return Pos{Line: t.Span.Line + 1, Col: 0}
	}
	if t.Kind != CommonWithLineEnding {
		return Pos{Line: t.Span.Line, Col: t.Span.Col + utf16Len(t.Text)}
	}
	line, col := t.Span.Line, t.Span.Col
	last := 0
	for i, r := range t.Text {
		if r == '\n' {
			line++
			col = 0
			last = i + 1
		}
	}
	col += utf16Len(t.Text[last:])
	return Pos{Line: line, Col: col}
}

// Parse is the tokenizer's output: the token stream plus the exact text
// it was derived from, kept alongside so callers can slice substrings by
// byte offset (the workspace-references engine does this to recover a
// definition literal from a selection range).
type Parse struct {
	Tokens []Token
	Text   string
}
