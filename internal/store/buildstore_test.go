package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
)

func fakeFS(files map[string]string) func(path string) (string, error) {
	return func(path string) (string, error) {
		if text, ok := files[path]; ok {
			return text, nil
		}
		return "", fmt.Errorf("no such file: %s", path)
	}
}

func TestSetBundleResolvesOnDiskInclude(t *testing.T) {
	docs := NewDocuments("/proj")
	aURI := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(aURI, "import \"b.js\";\nfn();\n")
	require.NoError(t, err)

	readFile := fakeFS(map[string]string{
		"/proj/b.js": "export function fn(){}\n",
	})
	bs := NewBuildStore(docs, readFile, "", false)

	b := bs.SetBundle(aURI, source.Source("a.js"), protocol.DocumentURI("file:///.proxy/a.js"))
	assert.True(t, b.Contains(source.Source("a.js")))
	assert.True(t, b.Contains(source.Source("b.js")))
	assert.Contains(t, b.Content, "export function fn")
}

func TestSetBundleThenGetBundleRoundTrips(t *testing.T) {
	docs := NewDocuments("/proj")
	aURI := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(aURI, "let x = 1;\n")
	require.NoError(t, err)

	bs := NewBuildStore(docs, notFoundReadFile, "", false)
	emitURI := protocol.DocumentURI("file:///.proxy/a.js")
	built := bs.SetBundle(aURI, source.Source("a.js"), emitURI)

	got, ok := bs.GetBundle(aURI)
	require.True(t, ok)
	assert.Same(t, built, got)

	byEmit, ok := bs.GetAnyBuildByEmitURI(emitURI)
	require.True(t, ok)
	assert.Same(t, built, byEmit)
}

func TestVersionIncrementsAcrossRebuilds(t *testing.T) {
	docs := NewDocuments("/proj")
	aURI := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(aURI, "let x = 1;\n")
	require.NoError(t, err)

	bs := NewBuildStore(docs, notFoundReadFile, "", false)
	emitURI := protocol.DocumentURI("file:///.proxy/a.js")
	b1 := bs.SetBundle(aURI, source.Source("a.js"), emitURI)
	b2 := bs.SetBundle(aURI, source.Source("a.js"), emitURI)
	assert.Less(t, b1.Version(), b2.Version())
}

func TestBundlesContainingSource(t *testing.T) {
	docs := NewDocuments("/proj")
	aURI := protocol.DocumentURI("file:///proj/a.js")
	bURI := protocol.DocumentURI("file:///proj/b.js")
	_, err := docs.Open(aURI, "import \"shared.js\";\nlet a = 1;\n")
	require.NoError(t, err)
	_, err = docs.Open(bURI, "import \"shared.js\";\nlet b = 1;\n")
	require.NoError(t, err)

	readFile := fakeFS(map[string]string{
		"/proj/shared.js": "export const shared = 1;\n",
	})
	bs := NewBuildStore(docs, readFile, "", false)
	bs.SetBundle(aURI, source.Source("a.js"), protocol.DocumentURI("file:///.proxy/a.js"))
	bs.SetBundle(bURI, source.Source("b.js"), protocol.DocumentURI("file:///.proxy/b.js"))

	owners := bs.BundlesContainingSource(source.Source("shared.js"))
	assert.Len(t, owners, 2)
}

func TestCloseBuildEvictsBothKinds(t *testing.T) {
	docs := NewDocuments("/proj")
	aURI := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(aURI, "let x = 1;\n")
	require.NoError(t, err)

	bs := NewBuildStore(docs, notFoundReadFile, "", false)
	bs.SetBundle(aURI, source.Source("a.js"), protocol.DocumentURI("file:///.proxy/a.js"))
	bs.SetTranspile(aURI, source.Source("a.js"), protocol.DocumentURI("file:///.proxy/a.js.transpile"))

	bs.CloseBuild(aURI)
	_, bundleOK := bs.GetBundle(aURI)
	_, transpileOK := bs.GetTranspile(aURI)
	assert.False(t, bundleOK)
	assert.False(t, transpileOK)
}
