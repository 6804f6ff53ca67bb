package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

func TestRopeReplaceIncremental(t *testing.T) {
	r := NewRope("let x = 1;\nlet y = 2;\n")
	r.Replace(protocol.Range{
		Start: protocol.Position{Line: 1, Character: 8},
		End:   protocol.Position{Line: 1, Character: 9},
	}, "99")
	assert.Equal(t, "let x = 1;\nlet y = 99;\n", r.String())
}

func TestRopeReplaceSpanningLines(t *testing.T) {
	r := NewRope("aaa\nbbb\nccc\n")
	r.Replace(protocol.Range{
		Start: protocol.Position{Line: 0, Character: 1},
		End:   protocol.Position{Line: 2, Character: 1},
	}, "X")
	assert.Equal(t, "aXcc\n", r.String())
}

func TestRopeSetTextWholeDocument(t *testing.T) {
	r := NewRope("old content\n")
	r.SetText("brand new\ntext\n")
	assert.Equal(t, "brand new\ntext\n", r.String())
}
