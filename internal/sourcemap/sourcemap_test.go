package sourcemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
)

func TestForwardBackwardRoundTrip(t *testing.T) {
	b := NewBuilder()
	srcA := source.Source("a.js")
	id := b.AddSource(srcA)
	b.AddToken(0, 0, 0, id)
	b.LineBreak()
	b.AddToken(2, 1, 0, id)
	sm := b.Finalize(false, nil)

	fwd, ok := sm.ForwardSrc(protocol.Position{Line: 1, Character: 3}, srcA)
	require.True(t, ok)
	assert.Equal(t, uint32(1), fwd.Line)
	assert.Equal(t, uint32(5), fwd.Character)

	back, src, ok := sm.ForwardBuild(fwd)
	require.True(t, ok)
	assert.Equal(t, srcA, src)
	assert.Equal(t, protocol.Position{Line: 1, Character: 3}, back)
}

func TestForwardBuildGeneratedRegionFails(t *testing.T) {
	b := NewBuilder()
	b.AddToken(0, 0, 0, NilSource)
	sm := b.Finalize(false, nil)
	_, _, ok := sm.ForwardBuild(protocol.Position{Line: 0, Character: 2})
	assert.False(t, ok)
}

func TestForwardSrcUnknownSourceFails(t *testing.T) {
	b := NewBuilder()
	sm := b.Finalize(false, nil)
	_, ok := sm.ForwardSrc(protocol.Position{}, source.Source("missing.js"))
	assert.False(t, ok)
}
