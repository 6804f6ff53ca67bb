package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

// fakeRegistry is a minimal in-memory Registry for tests, playing the
// role the teacher's `fakeClient` plays in provider_test.go.
type fakeRegistry struct {
	docs    map[source.Source]string
	parsed  map[source.Source]*token.Parse
	def     source.Source
	hasDef  bool
	patSrcs map[source.Source]map[string]struct{}
}

func newFakeRegistry(docs map[source.Source]string) *fakeRegistry {
	r := &fakeRegistry{docs: docs, parsed: make(map[source.Source]*token.Parse)}
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

func (r *fakeRegistry) Resolve(from source.Source, literal string) (source.Source, bool) {
	target := source.Source(literal)
	_, ok := r.docs[target]
	return target, ok
}

func (r *fakeRegistry) Default() (source.Source, bool) { return r.def, r.hasDef }

func (r *fakeRegistry) MayContainPattern(source.Source, source.Pattern) bool { return true }

func TestEmitBundleIncludesDependencyBeforeBody(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{
		"a.js": "import \"b.js\";\nfn();\n",
		"b.js": "export function fn(){}\n",
	})
	result := Emit(source.Source("a.js"), reg, Options{ResolveDeps: true})
	bIdx := strings.Index(result.Content, "export function fn")
	callIdx := strings.Index(result.Content, "fn();")
	require.GreaterOrEqual(t, bIdx, 0)
	require.GreaterOrEqual(t, callIdx, 0)
	assert.Less(t, bIdx, callIdx)

	_, aIncluded := result.IncludedSources["a.js"]
	_, bIncluded := result.IncludedSources["b.js"]
	assert.True(t, aIncluded)
	assert.True(t, bIncluded)
}

func TestEmitTranspileDoesNotResolveIncludes(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{
		"a.js": "import \"b.js\";\nfn();\n",
		"b.js": "export function fn(){}\n",
	})
	result := Emit(source.Source("a.js"), reg, Options{ResolveDeps: false})
	assert.NotContains(t, result.Content, "export function fn")
	assert.Contains(t, result.Content, "import")
}

func TestEmitRegionBecomesTemplateString(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{
		"a.js": "#text\nhello\n#endtext\n",
	})
	result := Emit(source.Source("a.js"), reg, Options{ResolveDeps: false})
	assert.Contains(t, result.Content, "`")
	assert.Contains(t, result.Content, "hello")
}

func TestEmitCircularIncludeTerminates(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{
		"a.js": "import \"b.js\";\nlet a = 1;\n",
		"b.js": "import \"a.js\";\nlet b = 1;\n",
	})
	result := Emit(source.Source("a.js"), reg, Options{ResolveDeps: true})
	assert.Equal(t, 1, strings.Count(result.Content, "let a = 1"))
	assert.Equal(t, 1, strings.Count(result.Content, "let b = 1"))
}

func TestPatternSourcesRecordsLiteralMatch(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{
		"a.js": "const needle = 1;\n",
	})
	result := Emit(source.Source("a.js"), reg, Options{
		ResolveDeps: true,
		Pattern:     &source.Pattern{Literal: "needle", SourceOf: source.Source("a.js").Hash()},
	})
	_, ok := result.PatternSources[source.Source("a.js").Hash()]
	assert.True(t, ok)
}

func TestEmitPlacesCallSiteBelowFirstLine(t *testing.T) {
	reg := newFakeRegistry(map[source.Source]string{
		"a.js": "import \"b.js\";\nfn();\n",
		"b.js": "export function fn(){}\n",
	})
	result := Emit(source.Source("a.js"), reg, Options{ResolveDeps: true})
	lines := strings.Split(result.Content, "\n")
	var callLine int
	for i, l := range lines {
		if strings.Contains(l, "fn();") {
			callLine = i
			break
		}
	}
	require.Greater(t, callLine, 0)
}
