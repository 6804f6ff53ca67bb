package store

import (
	"path/filepath"

	"github.com/glscript-lang/lsp-proxy/internal/ident"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
)

// proxyDirName is the synthesized workspace directory spec.md §6
// ("Filesystem") creates under the project root.
const proxyDirName = ".proxy"

// EmitURIFor derives the flat `.proxy/<ident>.js` URI a Source's builds
// are addressed at. Flat filenames (not per-source subdirectories) is
// the open-question decision recorded in DESIGN.md: the identifier
// alone is already collision-free, matching the original's current
// (non-TODO) behavior.
func EmitURIFor(root string, src source.Source) protocol.DocumentURI {
	path := filepath.Join(root, proxyDirName, ident.Identifier(src)+".js")
	return fileURI(path)
}

// SourceURI synthesizes a DocumentURI for a Source the document store
// has never seen an editor-native URI for (e.g. a dependency resolved
// purely through the include graph, never opened directly).
func SourceURI(root string, src source.Source) protocol.DocumentURI {
	return fileURI(joinSource(root, src))
}
