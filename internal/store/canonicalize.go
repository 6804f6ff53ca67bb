package store

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
)

// filePath turns a file:// DocumentURI into a canonical, symlink-
// resolved, OS-native path: URI↔path conversion is implemented directly
// here rather than leaned on a pack dependency, since go.lsp.dev/uri is
// only imported by the teacher for the URI *type*, not for filesystem
// canonicalization (§4.F "Paths are canonicalized (symlink-resolved,
// drive-letter-normalized)").
func filePath(u protocol.DocumentURI) (string, error) {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return "", err
	}
	p := parsed.Path
	if runtime.GOOS == "windows" {
		p = strings.TrimPrefix(p, "/")
	}
	decoded, err := url.PathUnescape(p)
	if err != nil {
		decoded = p
	}
	native := filepath.FromSlash(decoded)
	if resolved, err := filepath.EvalSymlinks(native); err == nil {
		native = resolved
	} else {
		native = filepath.Clean(native)
	}
	if runtime.GOOS == "windows" && len(native) > 0 {
		native = strings.ToUpper(native[:1]) + native[1:]
	}
	return native, nil
}

// PathFromURI is filePath exported for cmd/glsproxy, which needs to turn
// the editor's initialize RootURI into the root path NewDocuments and
// NewBuildStore are constructed with.
func PathFromURI(u protocol.DocumentURI) (string, error) {
	return filePath(u)
}

// joinSource resolves a Source (a lowercase, forward-slash-normalized
// project-relative path, §3 "Source") back to a native filesystem path
// under root, for the first time a store needs to load it from disk.
func joinSource(root string, src source.Source) string {
	return filepath.Join(root, filepath.FromSlash(string(src)))
}

// fileURI is filePath's inverse, used to synthesize a DocumentURI for a
// Source the store has not yet seen an editor-supplied URI for (e.g.
// when the emitter's Registry needs to load an on-disk include).
func fileURI(path string) protocol.DocumentURI {
	p := filepath.ToSlash(path)
	if runtime.GOOS == "windows" {
		p = "/" + p
	} else if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return protocol.DocumentURI(u.String())
}
