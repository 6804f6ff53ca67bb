// Package ident synthesizes the per-source declaration and link
// statements and the stable identifier they are keyed on (component B,
// grounded on original_source/src/types.rs's DocumentIdentifier /
// DocumentDeclarationStatement / DocumentLinkStatement).
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/glscript-lang/lsp-proxy/internal/source"
)

// ScriptIdentifierPrefix names every synthetic type alias this package
// emits, so downstream symbols produced by different Sources never
// collide and the proxy can recognize and strip them (spec.md §4.I
// "Hover").
const ScriptIdentifierPrefix = "$glscript_file_decl_"

// Identifier returns hex(SHA-256(s)) truncated, or right-padded with '_',
// to len(s):
// deterministic, stable across sessions, and path-safe (§4.B).
func Identifier(s source.Source) string {
	sum := sha256.Sum256([]byte(s))
	hexDigest := hex.EncodeToString(sum[:])
	if len(hexDigest) >= len(s) {
		return hexDigest[:len(s)]
	}
	return hexDigest + strings.Repeat("_", len(s)-len(hexDigest))
}

// DeclarationStatement is the synthetic one-liner binding a type alias
// named ScriptIdentifierPrefix+Identifier(s) to a type literal
// containing s, for a given Source.
type DeclarationStatement struct {
	Source source.Source
	Ident  string
	Text   string
}

// NewDeclarationStatement builds the declaration statement for s. The
// leading "\n" ensures insertion never fuses with the preceding line
// (§4.B).
func NewDeclarationStatement(s source.Source) DeclarationStatement {
	id := Identifier(s)
	text := fmt.Sprintf("\n/** @typedef {'%s'} %s%s */{};\n", s, ScriptIdentifierPrefix, id)
	return DeclarationStatement{Source: s, Ident: id, Text: text}
}

// LinkStatement is the synthetic one-liner cross-referencing a
// DeclarationStatement, recording the column offsets of the identifier's
// first and last character so the emitter can point "go to definition"
// at exactly the identifier (§4.B).
type LinkStatement struct {
	Source      source.Source
	Ident       string
	Text        string
	LeftOffset  int
	RightOffset int
}

// NewLinkStatement builds the link statement for s. LeftOffset/RightOffset
// bound the identifier itself, not the path that follows it, so "go to
// definition on link" resolves to the right column (spec.md §4.B).
func NewLinkStatement(s source.Source) LinkStatement {
	id := Identifier(s)
	const beforeIdent = "\n/** {@link "
	left := len(beforeIdent) + len(ScriptIdentifierPrefix)
	right := left + len(id)
	prefix := fmt.Sprintf("%s%s%s '", beforeIdent, ScriptIdentifierPrefix, id)
	text := fmt.Sprintf("%s%s' } */{};\n", prefix, s)
	return LinkStatement{Source: s, Ident: id, Text: text, LeftOffset: left, RightOffset: right}
}

// UndefinedLinkStatement is the degenerate fallback used when an include
// cannot be resolved (§4.B "link_stmt(undefined)").
func UndefinedLinkStatement() LinkStatement {
	const text = "\n/** {@link undefined} */{};\n"
	left := strings.Index(text, "undefined")
	return LinkStatement{
		Source:      "",
		Ident:       "undefined",
		Text:        text,
		LeftOffset:  left,
		RightOffset: left + len("undefined"),
	}
}
