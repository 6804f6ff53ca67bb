package store

import (
	"strings"
	"unicode/utf16"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

// Rope is the mutable text buffer backing one Document (§3 "a rope").
// It trades the original's balanced-tree rope for a flat line slice:
// simpler, and a good match for the access pattern
// original_source/src/state/document.rs actually drives (replace a
// line-bounded range, rebuild the tail) — see DESIGN.md's stdlib
// justification for why no pack library fills this role.
type Rope struct {
	lines []string
}

// NewRope splits text into a Rope along '\n' boundaries.
func NewRope(text string) *Rope {
	return &Rope{lines: splitLines(text)}
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

// String reassembles the buffer's current content.
func (r *Rope) String() string {
	return strings.Join(r.lines, "\n")
}

// SetText replaces the entire buffer (whole-document change).
func (r *Rope) SetText(text string) {
	r.lines = splitLines(text)
}

// Replace applies one incremental edit: rng (in UTF-16 column units, per
// LSP Position) is replaced with newText.
func (r *Rope) Replace(rng protocol.Range, newText string) {
	startLine := int(rng.Start.Line)
	endLine := int(rng.End.Line)

	startByte := utf16ColToByte(r.lineAt(startLine), int(rng.Start.Character))
	endByte := utf16ColToByte(r.lineAt(endLine), int(rng.End.Character))

	prefix := r.lineAt(startLine)[:startByte]
	suffix := r.lineAt(endLine)[endByte:]
	replaced := prefix + newText + suffix
	newLines := strings.Split(replaced, "\n")

	tail := append([]string(nil), r.lines[min(endLine+1, len(r.lines)):]...)
	r.lines = append(r.lines[:min(startLine, len(r.lines))], newLines...)
	r.lines = append(r.lines, tail...)
}

// Slice returns the text spanned by rng, used by the workspace-references
// engine (§4.J step 2) to pull the declaration's literal text out of the
// owning document's buffer.
func (r *Rope) Slice(rng protocol.Range) string {
	startLine := int(rng.Start.Line)
	endLine := int(rng.End.Line)
	if startLine == endLine {
		line := r.lineAt(startLine)
		startByte := utf16ColToByte(line, int(rng.Start.Character))
		endByte := utf16ColToByte(line, int(rng.End.Character))
		if endByte < startByte {
			endByte = startByte
		}
		return line[startByte:endByte]
	}

	var b strings.Builder
	firstLine := r.lineAt(startLine)
	b.WriteString(firstLine[utf16ColToByte(firstLine, int(rng.Start.Character)):])
	for line := startLine + 1; line < endLine; line++ {
		b.WriteString("\n")
		b.WriteString(r.lineAt(line))
	}
	lastLine := r.lineAt(endLine)
	b.WriteString("\n")
	b.WriteString(lastLine[:utf16ColToByte(lastLine, int(rng.End.Character))])
	return b.String()
}

func (r *Rope) lineAt(i int) string {
	if i < 0 || i >= len(r.lines) {
		return ""
	}
	return r.lines[i]
}

// utf16ColToByte converts a UTF-16 code-unit column into a byte offset
// within line, matching the column convention internal/token uses.
func utf16ColToByte(line string, col int) int {
	units := 0
	for i, rn := range line {
		if units >= col {
			return i
		}
		units += len(utf16.Encode([]rune{rn}))
	}
	return len(line)
}
