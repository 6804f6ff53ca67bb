// Package sourcemap implements the append-only source-map builder and
// the immutable SourceMap it produces (component C), grounded on
// original_source/src/builder/source_map_builder.rs.
package sourcemap

import (
	"github.com/glscript-lang/lsp-proxy/internal/source"
)

// NilSource marks a raw token whose destination is a generated region
// with no user origin (§3 "a raw token with src_id = NIL").
const NilSource = -1

// RawToken is one (dst_line,dst_col) -> (src_id,src_line,src_col)
// mapping.
type RawToken struct {
	DstLine int
	DstCol  int
	SrcID   int
	SrcLine int
	SrcCol  int
}

// Builder accumulates RawTokens and interned sources for one Build's
// emission; it is append-only and not safe for concurrent use from
// multiple goroutines without external synchronization (each Build
// emission owns exactly one Builder).
type Builder struct {
	tokens  []RawToken
	sources []source.Source
	byID    map[source.Source]int
	dstLine int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byID: make(map[source.Source]int)}
}

// AddSource interns src, returning its existing id if already seen or
// allocating a new one.
func (b *Builder) AddSource(src source.Source) int {
	if id, ok := b.byID[src]; ok {
		return id
	}
	id := len(b.sources)
	b.sources = append(b.sources, src)
	b.byID[src] = id
	return id
}

// AddToken pushes a raw token at the builder's current destination line.
// Pass srcID = NilSource for a generated-region mapping.
func (b *Builder) AddToken(dstCol, srcLine, srcCol, srcID int) {
	b.tokens = append(b.tokens, RawToken{
		DstLine: b.dstLine,
		DstCol:  dstCol,
		SrcID:   srcID,
		SrcLine: srcLine,
		SrcCol:  srcCol,
	})
}

// LineBreak advances the builder's current destination line.
func (b *Builder) LineBreak() {
	b.dstLine++
}

// DstLine returns the builder's current destination line, useful for
// callers that need to interleave their own line bookkeeping with the
// builder's (the emitter's pass 2/3 do, in lockstep).
func (b *Builder) DstLine() int { return b.dstLine }

// Finalize produces an immutable SourceMap from everything recorded so
// far. includeContents should be true only in debug builds (§3
// "optionally source contents (dev only)").
func (b *Builder) Finalize(includeContents bool, contents map[source.Source]string) *SourceMap {
	sm := &SourceMap{
		tokens:  b.tokens,
		sources: append([]source.Source(nil), b.sources...),
	}
	if includeContents && contents != nil {
		sm.contents = make(map[source.Source]string, len(b.sources))
		for _, src := range b.sources {
			if text, ok := contents[src]; ok {
				sm.contents[src] = text
			}
		}
	}
	return sm
}

// SourceMap is the immutable result of a Builder's finalize step: an
// ordered list of raw tokens plus the source-id table they reference.
type SourceMap struct {
	tokens   []RawToken
	sources  []source.Source
	contents map[source.Source]string
}

// Tokens returns the ordered raw token list.
func (sm *SourceMap) Tokens() []RawToken { return sm.tokens }

// SourceAt returns the Source interned under id.
func (sm *SourceMap) SourceAt(id int) (source.Source, bool) {
	if id < 0 || id >= len(sm.sources) {
		return "", false
	}
	return sm.sources[id], true
}

// SourceID returns the id a Source was interned under, if any.
func (sm *SourceMap) SourceID(src source.Source) (int, bool) {
	for i, s := range sm.sources {
		if s == src {
			return i, true
		}
	}
	return 0, false
}

// Sources returns every Source interned in this map.
func (sm *SourceMap) Sources() []source.Source {
	return append([]source.Source(nil), sm.sources...)
}
