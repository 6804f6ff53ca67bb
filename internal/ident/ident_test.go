package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glscript-lang/lsp-proxy/internal/source"
)

func TestIdentifierIsDeterministicAndPadded(t *testing.T) {
	s := source.Source("lib/a.js")
	id1 := Identifier(s)
	id2 := Identifier(s)
	assert.Equal(t, id1, id2)
	assert.Equal(t, len(s), len(id1))
}

func TestIdentifierVariesWithLength(t *testing.T) {
	short := Identifier(source.Source("a.js"))
	long := Identifier(source.Source("a-much-longer-relative-path.js"))
	assert.Equal(t, 4, len(short))
	assert.Equal(t, len("a-much-longer-relative-path.js"), len(long))
}

func TestDeclarationStatementLeadingNewline(t *testing.T) {
	d := NewDeclarationStatement(source.Source("a.js"))
	assert.True(t, strings.HasPrefix(d.Text, "\n"))
	assert.Contains(t, d.Text, ScriptIdentifierPrefix+d.Ident)
}

func TestLinkStatementOffsetsBoundTheIdentifier(t *testing.T) {
	l := NewLinkStatement(source.Source("a.js"))
	assert.Equal(t, l.Ident, l.Text[l.LeftOffset:l.RightOffset])
}

func TestUndefinedLinkStatement(t *testing.T) {
	l := UndefinedLinkStatement()
	assert.Equal(t, "undefined", l.Text[l.LeftOffset:l.RightOffset])
}
