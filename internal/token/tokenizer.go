package token

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Tokenize splits text into the token stream described in token.go. It is
// pure, total, and never errors: any construct it does not specifically
// recognize is folded into Common/CommonWithLineEnding, and an EOI token
// is always appended last (§4.A).
func Tokenize(text string) Parse {
	s := &scanner{text: text}
	for !s.atEnd() {
		s.scanOne()
	}
	s.flushCommon()
	s.tokens = append(s.tokens, Token{Kind: EOI, Span: Span{Pos: s.eoiPos()}})
	return Parse{Tokens: s.tokens, Text: text}
}

type scanner struct {
	text   string
	pos    int // byte offset
	line   int
	col    int // UTF-16 code units
	tokens []Token

	// pending accumulates an in-progress Common/CommonWithLineEnding run.
	pendingStart    int
	pendingLine     int
	pendingCol      int
	pendingHasBreak bool
	pendingActive   bool

	// opaque lexical context: non-zero while inside a string literal,
	// template literal, line comment, or block comment, per §4.A's rule
	// that include/region tokens never match inside these.
	inOpaque byte // 0, '\'', '"', '`', 'L' (line comment), 'B' (block comment)

	// inRegion is true between a RegionOpen and its RegionClose. Region
	// bodies are opaque to everything except the literal close keyword:
	// no nested Include, no quote/comment context switching.
	inRegion bool
}

func (s *scanner) atEnd() bool { return s.pos >= len(s.text) }

func utf16Len(str string) int {
	return UTF16Len(str)
}

// UTF16Len returns the length of str in UTF-16 code units, the unit LSP
// Position.Character counts in.
func UTF16Len(str string) int {
	n := 0
	for _, r := range str {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

func (s *scanner) eoiPos() Pos {
	if len(s.tokens) == 0 {
		return Pos{Line: s.line, Col: s.col}
	}
	last := s.tokens[len(s.tokens)-1]
	return last.End()
}

// advanceRune consumes and returns the rune at pos, updating line/col.
func (s *scanner) advanceRune() rune {
	r, size := utf8.DecodeRuneInString(s.text[s.pos:])
	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 0
	} else {
		s.col += len(utf16.Encode([]rune{r}))
	}
	return r
}

func (s *scanner) startPending() {
	if !s.pendingActive {
		s.pendingStart = s.pos
		s.pendingLine = s.line
		s.pendingCol = s.col
		s.pendingActive = true
		s.pendingHasBreak = false
	}
}

func (s *scanner) flushCommon() {
	if !s.pendingActive || s.pendingStart == s.pos {
		s.pendingActive = false
		return
	}
	text := s.text[s.pendingStart:s.pos]
	kind := Common
	if s.pendingHasBreak {
		kind = CommonWithLineEnding
	}
	s.tokens = append(s.tokens, Token{
		Kind: kind,
		Span: Span{Pos: Pos{Line: s.pendingLine, Col: s.pendingCol}, ByteLen: len(text)},
		Text: text,
	})
	s.pendingActive = false
}

// scanOne consumes either one opaque-aware character into the pending
// common run, or (when not inside an opaque context) an explicit token.
func (s *scanner) scanOne() {
	if s.inOpaque != 0 {
		s.scanOpaqueChar()
		return
	}

	rest := s.text[s.pos:]

	if s.inRegion {
		if isLineBreak(rest) {
			s.flushCommon()
			s.emitLineTerminator()
			return
		}
		if kw, ok := matchRegionClose(rest); ok {
			s.flushCommon()
			s.emitSimple(RegionClose, kw)
			s.inRegion = false
			return
		}
		s.startPending()
		s.advanceRune()
		return
	}

	if isLineBreak(rest) {
		s.flushCommon()
		s.emitLineTerminator()
		return
	}
	if kw, rem, ok := matchIncludeHeader(rest); ok {
		s.flushCommon()
		s.emitSimple(Include, kw)
		s.skipHorizontalSpace()
		if lit, litLen, ok := matchIncludePath(s.text[s.pos:]); ok {
			s.emitIncludePath(lit, litLen)
		}
		_ = rem
		return
	}
	if kw, ok := matchRegionOpen(rest); ok {
		s.flushCommon()
		s.emitSimple(RegionOpen, kw)
		s.inRegion = true
		return
	}
	if kw, ok := matchRegionClose(rest); ok {
		s.flushCommon()
		s.emitSimple(RegionClose, kw)
		return
	}
	if openOpaque(rest) != 0 {
		s.inOpaque = openOpaque(rest)
		s.startPending()
		s.consumeOpaqueOpener()
		return
	}

	s.startPending()
	s.advanceRune()
}

// scanOpaqueChar advances one rune while inside a string/template/comment
// context, watching for the matching closer, and folds everything into
// the pending Common/CommonWithLineEnding run (§4.A: these contexts never
// yield Include/IncludePath/RegionOpen/RegionClose tokens).
func (s *scanner) scanOpaqueChar() {
	s.startPending()
	rest := s.text[s.pos:]

	switch s.inOpaque {
	case 'L': // line comment: ends at the next line break, exclusive
		if isLineBreak(rest) {
			s.inOpaque = 0
			return
		}
	case 'B': // block comment: ends after "*/"
		if strings.HasPrefix(rest, "*/") {
			s.advanceRune()
			s.advanceRune()
			s.inOpaque = 0
			return
		}
	case '\'', '"':
		if rest[0] == '\\' && len(rest) > 1 {
			s.advanceRune()
			s.markBreakIfNeeded()
			s.advanceRune()
			s.markBreakIfNeeded()
			return
		}
		if rune(rest[0]) == rune(s.inOpaque) {
			s.advanceRune()
			s.inOpaque = 0
			return
		}
	case '`':
		if rest[0] == '\\' && len(rest) > 1 {
			s.advanceRune()
			s.markBreakIfNeeded()
			s.advanceRune()
			s.markBreakIfNeeded()
			return
		}
		if rest[0] == '`' {
			s.advanceRune()
			s.inOpaque = 0
			return
		}
	}
	s.markBreakIfNeeded()
	s.advanceRune()
}

func (s *scanner) markBreakIfNeeded() {
	if s.pos < len(s.text) && s.text[s.pos] == '\n' {
		s.pendingHasBreak = true
	}
}

func (s *scanner) consumeOpaqueOpener() {
	rest := s.text[s.pos:]
	switch {
	case strings.HasPrefix(rest, "//"):
		s.advanceRune()
		s.advanceRune()
	case strings.HasPrefix(rest, "/*"):
		s.advanceRune()
		s.advanceRune()
	default:
		s.advanceRune() // ', ", or `
	}
}

func openOpaque(rest string) byte {
	switch {
	case strings.HasPrefix(rest, "//"):
		return 'L'
	case strings.HasPrefix(rest, "/*"):
		return 'B'
	case strings.HasPrefix(rest, "'"):
		return '\''
	case strings.HasPrefix(rest, "\""):
		return '"'
	case strings.HasPrefix(rest, "`"):
		return '`'
	}
	return 0
}

func isLineBreak(rest string) bool {
	return strings.HasPrefix(rest, "\n") || strings.HasPrefix(rest, "\r\n")
}

func (s *scanner) emitLineTerminator() {
	start := Pos{Line: s.line, Col: s.col}
	if strings.HasPrefix(s.text[s.pos:], "\r\n") {
		byteLen := 2
		s.pos += 1 // consume \r without touching line/col semantics twice
		s.advanceRune()
		s.tokens = append(s.tokens, Token{Kind: LineTerminator, Span: Span{Pos: start, ByteLen: byteLen}, Text: "\r\n"})
		return
	}
	s.advanceRune()
	s.tokens = append(s.tokens, Token{Kind: LineTerminator, Span: Span{Pos: start, ByteLen: 1}, Text: "\n"})
}

func (s *scanner) emitSimple(kind Kind, text string) {
	start := Pos{Line: s.line, Col: s.col}
	for range text {
		s.advanceRune()
	}
	s.tokens = append(s.tokens, Token{Kind: kind, Span: Span{Pos: start, ByteLen: len(text)}, Text: text})
}

func (s *scanner) emitIncludePath(literal string, byteLen int) {
	start := Pos{Line: s.line, Col: s.col}
	raw := s.text[s.pos : s.pos+byteLen]
	for range raw {
		s.advanceRune()
	}
	s.tokens = append(s.tokens, Token{
		Kind:    IncludePath,
		Span:    Span{Pos: start, ByteLen: byteLen},
		Text:    raw,
		Literal: literal,
	})
}

func (s *scanner) skipHorizontalSpace() {
	for !s.atEnd() {
		rest := s.text[s.pos:]
		if strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, "\t") {
			s.startPending()
			s.advanceRune()
			continue
		}
		break
	}
	s.flushCommon()
}

// matchIncludeHeader recognizes `import` (followed by whitespace then a
// quote) or `#include` as an include directive header.
func matchIncludeHeader(rest string) (kw, remainder string, ok bool) {
	if strings.HasPrefix(rest, "#include") {
		return "#include", rest[len("#include"):], true
	}
	if strings.HasPrefix(rest, "import") {
		after := rest[len("import"):]
		trimmed := strings.TrimLeft(after, " \t")
		if strings.HasPrefix(trimmed, "\"") || strings.HasPrefix(trimmed, "'") {
			return "import", after, true
		}
	}
	return "", rest, false
}

// matchIncludePath recognizes a quoted string (`"..."` or `'...'`) or an
// angle-bracketed path (`<...>`), returning the literal with delimiters
// stripped and the byte length of the full token including delimiters.
func matchIncludePath(rest string) (literal string, byteLen int, ok bool) {
	if len(rest) == 0 {
		return "", 0, false
	}
	var closer byte
	switch rest[0] {
	case '"':
		closer = '"'
	case '\'':
		closer = '\''
	case '<':
		closer = '>'
	default:
		return "", 0, false
	}
	for i := 1; i < len(rest); i++ {
		if rest[i] == '\n' {
			return "", 0, false
		}
		if rest[i] == closer {
			return rest[1:i], i + 1, true
		}
	}
	return "", 0, false
}

func matchRegionOpen(rest string) (string, bool) {
	for _, kw := range []string{"#text", "#sql"} {
		if strings.HasPrefix(rest, kw) && !followedByIdentChar(rest, len(kw)) {
			return kw, true
		}
	}
	return "", false
}

func matchRegionClose(rest string) (string, bool) {
	for _, kw := range []string{"#endtext", "#endsql"} {
		if strings.HasPrefix(rest, kw) && !followedByIdentChar(rest, len(kw)) {
			return kw, true
		}
	}
	return "", false
}

func followedByIdentChar(s string, at int) bool {
	if at >= len(s) {
		return false
	}
	c := s[at]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
