package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

func notFoundReadFile(path string) (string, error) {
	return "", fmt.Errorf("no such file: %s", path)
}

func TestOpenThenGetDocReturnsCached(t *testing.T) {
	docs := NewDocuments("/proj")
	uri := protocol.DocumentURI("file:///proj/a.js")
	opened, err := docs.Open(uri, "let x = 1;\n")
	require.NoError(t, err)

	got, err := docs.GetDoc(uri, notFoundReadFile)
	require.NoError(t, err)
	assert.Same(t, opened, got)
}

func TestSetDocWholeDocumentReplace(t *testing.T) {
	docs := NewDocuments("/proj")
	uri := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(uri, "let x = 1;\n")
	require.NoError(t, err)

	doc, _, err := docs.SetDoc(uri, 2, []protocol.TextDocumentContentChangeEvent{
		{Text: "let x = 2;\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "let x = 2;\n", doc.Buffer.String())
	assert.Equal(t, int32(2), doc.Version)
}

func TestSetDocTranspileHashUnchangedForCommonEdit(t *testing.T) {
	docs := NewDocuments("/proj")
	uri := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(uri, "import \"b.js\";\nlet x = 1;\n")
	require.NoError(t, err)
	before, _ := docs.GetDoc(uri, notFoundReadFile)
	oldHash := before.TranspileHash

	doc, changed, err := docs.SetDoc(uri, 2, []protocol.TextDocumentContentChangeEvent{
		{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 1, Character: 8},
				End:   protocol.Position{Line: 1, Character: 9},
			},
			Text: "9",
		},
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, oldHash, doc.TranspileHash)
}

func TestSetDocTranspileHashChangesWhenIncludePathEdited(t *testing.T) {
	docs := NewDocuments("/proj")
	uri := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(uri, "import \"b.js\";\nlet x = 1;\n")
	require.NoError(t, err)

	doc, changed, err := docs.SetDoc(uri, 2, []protocol.TextDocumentContentChangeEvent{
		{Text: "import \"c.js\";\nlet x = 1;\n"},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEqual(t, uint64(0), doc.TranspileHash)
}

func TestCloseEvictsDocument(t *testing.T) {
	docs := NewDocuments("/proj")
	uri := protocol.DocumentURI("file:///proj/a.js")
	_, err := docs.Open(uri, "let x = 1;\n")
	require.NoError(t, err)

	docs.Close(uri)
	_, err = docs.GetDoc(uri, notFoundReadFile)
	assert.Error(t, err)
}
