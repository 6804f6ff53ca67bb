// Package build implements the immutable Build artifact (component E):
// an emitted document plus its source map and forward/reverse position
// mapping operations, grounded on
// original_source/src/builder.rs (forward_src_position/forward_build_position)
// and its refactor in original_source/src/builder/forwarding.rs.
package build

import (
	"github.com/cespare/xxhash/v2"

	"github.com/glscript-lang/lsp-proxy/internal/emit"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/sourcemap"
)

// Build is the immutable artifact produced by one emission (§3 "Build").
type Build struct {
	EmitURI         protocol.DocumentURI
	Target          source.Source
	Content         string
	SourceMap       *sourcemap.SourceMap
	includedSources map[source.Source]struct{}
	patternSources  map[source.Hash]struct{}
	visitedHashes   map[source.Hash]struct{}
	hash            uint64
	version         int32
}

// New emits target through reg under opts and wraps the result as a
// Build addressed at emitURI, versioned version.
func New(target source.Source, reg emit.Registry, opts emit.Options, emitURI protocol.DocumentURI, version int32) *Build {
	result := emit.Emit(target, reg, opts)
	return &Build{
		EmitURI:         emitURI,
		Target:          target,
		Content:         result.Content,
		SourceMap:       result.SourceMap,
		includedSources: result.IncludedSources,
		patternSources:  result.PatternSources,
		visitedHashes:   result.VisitedHashes,
		hash:            hashIncludedOrder(result.IncludedOrder),
		version:         version,
	}
}

// PatternSources returns the set of source hashes this build directly
// confirmed to contain the build's pattern literal, when one was
// supplied (§4.D "Pattern tracking"). Empty for a build with no pattern.
func (b *Build) PatternSources() map[source.Hash]struct{} { return b.patternSources }

// VisitedHashes returns every source hash this build actually inspected
// for the pattern literal, a superset of PatternSources. A hash outside
// this set carries no information about whether it may contain the
// pattern.
func (b *Build) VisitedHashes() map[source.Hash]struct{} { return b.visitedHashes }

// hashIncludedOrder computes a hash that changes iff the set of included
// sources or their ordering changes (§3 Build invariant iv), independent
// of the emitted content's byte-for-byte identity.
func hashIncludedOrder(order []source.Source) uint64 {
	h := xxhash.New()
	for _, s := range order {
		_, _ = h.WriteString(string(s))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Sources returns the set of Sources that actually contributed mappings
// to this build.
func (b *Build) Sources() map[source.Source]struct{} {
	return b.includedSources
}

// Contains reports whether src contributed to this build.
func (b *Build) Contains(src source.Source) bool {
	_, ok := b.includedSources[src]
	return ok
}

// Hash returns the build's content-independent inclusion-set hash.
func (b *Build) Hash() uint64 { return b.hash }

// Version returns the build's monotonically increasing version.
func (b *Build) Version() int32 { return b.version }

// ForwardSrc maps a position in src to an emit position (§4.E).
func (b *Build) ForwardSrc(pos protocol.Position, src source.Source) (protocol.Position, bool) {
	return b.SourceMap.ForwardSrc(pos, src)
}

// ForwardSrcRange maps a range in src to an emit range (§4.E).
func (b *Build) ForwardSrcRange(r protocol.Range, src source.Source) (protocol.Range, bool) {
	return b.SourceMap.ForwardSrcRange(r, src)
}

// ForwardBuild maps an emit position back to its source position and
// Source (§4.E). Returns ok=false for generated regions.
func (b *Build) ForwardBuild(pos protocol.Position) (protocol.Position, source.Source, bool) {
	return b.SourceMap.ForwardBuild(pos)
}

// ForwardBuildRange maps an emit range back to a source range and
// Source (§4.E). Both endpoints must map to the same Source.
func (b *Build) ForwardBuildRange(r protocol.Range) (protocol.Range, source.Source, bool) {
	return b.SourceMap.ForwardBuildRange(r)
}
