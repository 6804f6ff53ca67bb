package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glscript-lang/lsp-proxy/internal/emit"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

type fakeRegistry struct {
	parsed map[source.Source]*token.Parse
}

func newFakeRegistry(docs map[source.Source]string) *fakeRegistry {
	r := &fakeRegistry{parsed: make(map[source.Source]*token.Parse)}
	for s, text := range docs {
		p := token.Tokenize(text)
		r.parsed[s] = &p
	}
	return r
}

func (r *fakeRegistry) Tokens(s source.Source) (*token.Parse, bool) {
	p, ok := r.parsed[s]
	return p, ok
}
func (r *fakeRegistry) Resolve(source.Source, string) (source.Source, bool) { return "", false }
func (r *fakeRegistry) Default() (source.Source, bool)                     { return "", false }
func (r *fakeRegistry) MayContainPattern(source.Source, source.Pattern) bool { return true }

func TestHashStableAcrossRebuildsWithSameInclusionGraph(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{"a.js": "let x = 1;\n"})
	b1 := New(source.Source("a.js"), reg, emit.Options{ResolveDeps: true}, protocol.DocumentURI("file:///a.js"), 1)
	b2 := New(source.Source("a.js"), reg, emit.Options{ResolveDeps: true}, protocol.DocumentURI("file:///a.js"), 2)
	assert.Equal(t, b1.Hash(), b2.Hash())
}

func TestVersionMonotonic(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{"a.js": "let x = 1;\n"})
	b1 := New(source.Source("a.js"), reg, emit.Options{ResolveDeps: true}, protocol.DocumentURI("file:///a.js"), 1)
	b2 := New(source.Source("a.js"), reg, emit.Options{ResolveDeps: true}, protocol.DocumentURI("file:///a.js"), 2)
	assert.Less(t, b1.Version(), b2.Version())
}

func TestForwardBuildRoundTrip(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{"a.js": "let x = 1;\nlet y = 2;\n"})
	b := New(source.Source("a.js"), reg, emit.Options{ResolveDeps: true}, protocol.DocumentURI("file:///a.js"), 1)
	fwd, ok := b.ForwardSrc(protocol.Position{Line: 1, Character: 4}, source.Source("a.js"))
	require.True(t, ok)
	back, src, ok := b.ForwardBuild(fwd)
	require.True(t, ok)
	assert.Equal(t, source.Source("a.js"), src)
	assert.Equal(t, protocol.Position{Line: 1, Character: 4}, back)
}
