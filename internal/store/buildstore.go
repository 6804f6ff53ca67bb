package store

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glscript-lang/lsp-proxy/internal/build"
	"github.com/glscript-lang/lsp-proxy/internal/emit"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
)

// BuildStore holds, per requesting path, the two build kinds a document
// can have — a resolving bundle and a non-resolving transpile — plus a
// monotonic version counter shared across both (§4.G).
type BuildStore struct {
	mu         sync.RWMutex
	docs       *Documents
	readFile   func(path string) (string, error)
	bundles    map[protocol.DocumentURI]*build.Build
	transpiles map[protocol.DocumentURI]*build.Build
	byEmitURI  map[protocol.DocumentURI]*build.Build
	versions   map[protocol.DocumentURI]int32

	defaultSource source.Source
	hasDefault    bool

	// debug enables writing .proxy/debug/<source>[.transpiled].js.emitted
	// and .map dev artifacts alongside every (re)build (SUPPLEMENTED FEATURES, grounded
	// on original_source/src/builder/emit/dev.rs's emit_on_disk).
	debug bool

	// lastVisited/lastMatched remember, per pattern literal, the union of
	// source hashes any tree-shaken build with that literal has actually
	// inspected (lastVisited) and confirmed to contain it (lastMatched,
	// a subset) — consulted by the next SetBundleWithPattern call for the
	// same literal so repeated workspace-reference scans over the same
	// definition skip subtrees already proven empty, without ever
	// treating an unvisited subtree as proven empty (§9 "pattern-driven
	// tree shaking").
	lastVisited map[string]map[source.Hash]struct{}
	lastMatched map[string]map[source.Hash]struct{}
}

// NewBuildStore returns an empty BuildStore backed by docs, with the
// project's configured default document (if any).
func NewBuildStore(docs *Documents, readFile func(path string) (string, error), defaultSource source.Source, hasDefault bool) *BuildStore {
	return &BuildStore{
		docs:          docs,
		readFile:      readFile,
		bundles:       make(map[protocol.DocumentURI]*build.Build),
		transpiles:    make(map[protocol.DocumentURI]*build.Build),
		byEmitURI:     make(map[protocol.DocumentURI]*build.Build),
		versions:      make(map[protocol.DocumentURI]int32),
		defaultSource: defaultSource,
		hasDefault:    hasDefault,
		lastVisited:   make(map[string]map[source.Hash]struct{}),
		lastMatched:   make(map[string]map[source.Hash]struct{}),
	}
}

// SetDebug toggles dev-artifact emission for every build from this point
// on; it does not retroactively write artifacts for builds already held.
func (bs *BuildStore) SetDebug(debug bool) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.debug = debug
}

func (bs *BuildStore) registry(visited, matched map[source.Hash]struct{}) *Registry {
	return &Registry{
		Docs:           bs.docs,
		DefaultSource:  bs.defaultSource,
		HasDefault:     bs.hasDefault,
		ReadFile:       bs.readFile,
		PatternVisited: visited,
		PatternMatched: matched,
	}
}

// nextVersion must be called with mu held.
func (bs *BuildStore) nextVersion(emitURI protocol.DocumentURI) int32 {
	bs.versions[emitURI]++
	return bs.versions[emitURI]
}

// SetBundle (re)builds the resolving bundle for path keyed under uri,
// rooted at src, addressed at emitURI, bumping its version.
func (bs *BuildStore) SetBundle(uri protocol.DocumentURI, src source.Source, emitURI protocol.DocumentURI) *build.Build {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b := build.New(src, bs.registry(nil, nil), emit.Options{ResolveDeps: true, Debug: bs.debug}, emitURI, bs.nextVersion(emitURI))
	bs.bundles[uri] = b
	bs.byEmitURI[emitURI] = b
	bs.writeDebugArtifact(b, true)
	return b
}

// SetTranspile (re)builds the non-resolving transpile for path keyed
// under uri.
func (bs *BuildStore) SetTranspile(uri protocol.DocumentURI, src source.Source, emitURI protocol.DocumentURI) *build.Build {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b := build.New(src, bs.registry(nil, nil), emit.Options{ResolveDeps: false, Debug: bs.debug}, emitURI, bs.nextVersion(emitURI))
	bs.transpiles[uri] = b
	bs.byEmitURI[emitURI] = b
	bs.writeDebugArtifact(b, false)
	return b
}

// SetBundleWithPattern builds a tree-shaken bundle restricted to
// subtrees that can contribute a match for pattern, consulting (and
// then extending) the accumulated knowledge for that literal.
func (bs *BuildStore) SetBundleWithPattern(uri protocol.DocumentURI, src source.Source, emitURI protocol.DocumentURI, pattern source.Pattern) *build.Build {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	knownVisited := bs.lastVisited[pattern.Literal]
	knownMatched := bs.lastMatched[pattern.Literal]
	opts := emit.Options{ResolveDeps: true, Pattern: &pattern, Debug: bs.debug}
	b := build.New(src, bs.registry(knownVisited, knownMatched), opts, emitURI, bs.nextVersion(emitURI))

	mergedVisited := make(map[source.Hash]struct{}, len(knownVisited)+len(b.VisitedHashes()))
	for h := range knownVisited {
		mergedVisited[h] = struct{}{}
	}
	for h := range b.VisitedHashes() {
		mergedVisited[h] = struct{}{}
	}
	bs.lastVisited[pattern.Literal] = mergedVisited

	mergedMatched := make(map[source.Hash]struct{}, len(knownMatched)+len(b.PatternSources()))
	for h := range knownMatched {
		mergedMatched[h] = struct{}{}
	}
	for h := range b.PatternSources() {
		mergedMatched[h] = struct{}{}
	}
	bs.lastMatched[pattern.Literal] = mergedMatched

	bs.bundles[uri] = b
	bs.byEmitURI[emitURI] = b
	bs.writeDebugArtifact(b, true)
	return b
}

// GetBundle is an O(1) lookup of path uri's current resolving bundle.
func (bs *BuildStore) GetBundle(uri protocol.DocumentURI) (*build.Build, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	b, ok := bs.bundles[uri]
	return b, ok
}

// GetTranspile is an O(1) lookup of path uri's current transpile.
func (bs *BuildStore) GetTranspile(uri protocol.DocumentURI) (*build.Build, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	b, ok := bs.transpiles[uri]
	return b, ok
}

// GetAnyBuildByEmitURI reverse-looks-up the build whose emit file is
// emitURI, used when a downstream response refers back to it.
func (bs *BuildStore) GetAnyBuildByEmitURI(emitURI protocol.DocumentURI) (*build.Build, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	b, ok := bs.byEmitURI[emitURI]
	return b, ok
}

// BundlesContainingSource scans current bundles for ones that include
// src, used by the change pipeline (§4.H step 3) and workspace
// references (§4.J step 5).
func (bs *BuildStore) BundlesContainingSource(src source.Source) []*build.Build {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	var out []*build.Build
	for _, b := range bs.bundles {
		if b.Contains(src) {
			out = append(out, b)
		}
	}
	return out
}

// PathsContainingSource is BundlesContainingSource keyed by the
// requesting path's URI instead of the Build itself, which is what the
// change pipeline needs to fan an edit out to every path it affects
// (§4.H step 3).
func (bs *BuildStore) PathsContainingSource(src source.Source) []protocol.DocumentURI {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	var out []protocol.DocumentURI
	for uri, b := range bs.bundles {
		if b.Contains(src) {
			out = append(out, uri)
		}
	}
	return out
}

// DefaultSources returns the source set of the default document's
// bundle, if one has been built yet: a well-known "always included"
// set consulted when deciding whether an edit to the default document
// should invalidate every other path's bundle.
func (bs *BuildStore) DefaultSources() map[source.Source]struct{} {
	if !bs.hasDefault {
		return nil
	}
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	for _, b := range bs.bundles {
		if b.Contains(bs.defaultSource) {
			return b.Sources()
		}
	}
	return nil
}

// CloseBuild evicts both build kinds for path uri (didClose, §4.F/G
// eviction-on-close).
func (bs *BuildStore) CloseBuild(uri protocol.DocumentURI) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok := bs.bundles[uri]; ok {
		delete(bs.byEmitURI, b.EmitURI)
		delete(bs.bundles, uri)
	}
	if b, ok := bs.transpiles[uri]; ok {
		delete(bs.byEmitURI, b.EmitURI)
		delete(bs.transpiles, uri)
	}
}

// writeDebugArtifact writes b's content and source map under
// .proxy/debug, named after its target source with a .transpiled suffix
// for non-resolving builds, mirroring
// original_source/src/builder/emit/dev.rs's emit_on_disk. Failures are
// swallowed: debug artifacts are a developer convenience, never load
// bearing for the build itself. Must be called with mu held.
func (bs *BuildStore) writeDebugArtifact(b *build.Build, resolveDeps bool) {
	if !bs.debug {
		return
	}
	name := string(b.Target)
	if !resolveDeps {
		name += ".transpiled"
	}
	name += ".js.emitted"

	debugDir := filepath.Join(bs.docs.Root(), proxyDirName, "debug")
	debugPath := filepath.Join(debugDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return
	}

	lastLine := strings.Count(b.Content, "\n")
	smJSON, err := b.SourceMap.StandardJSON(filepath.Base(debugPath), lastLine)
	if err != nil {
		return
	}
	sourced := b.Content + "\n//# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(smJSON)
	_ = os.WriteFile(debugPath, []byte(sourced), 0o644)
	_ = os.WriteFile(debugPath+".map", smJSON, 0o644)
}
