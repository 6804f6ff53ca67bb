package sourcemap

import (
	"sort"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
)

// ForwardSrc maps a source position in src to its emit position: the
// latest token with SrcLine == pos.Line and SrcCol <= pos.Character is
// selected, then DstCol += pos.Character - SrcCol (§4.E "forward_src").
// Returns ok=false if src never contributed a mapping or no such token
// exists.
func (sm *SourceMap) ForwardSrc(pos protocol.Position, src source.Source) (protocol.Position, bool) {
	srcID, ok := sm.SourceID(src)
	if !ok {
		return protocol.Position{}, false
	}
	var best *RawToken
	for i := range sm.tokens {
		tok := &sm.tokens[i]
		if tok.SrcID != srcID {
			continue
		}
		if tok.SrcLine != int(pos.Line) || tok.SrcCol > int(pos.Character) {
			continue
		}
		if best == nil || laterToken(*best, *tok) {
			best = tok
		}
	}
	if best == nil {
		return protocol.Position{}, false
	}
	col := best.DstCol + (int(pos.Character) - best.SrcCol)
	return protocol.Position{Line: uint32(best.DstLine), Character: uint32(col)}, true
}

// laterToken reports whether b was emitted after a in destination order,
// used to pick the token closest to (but not past) the requested column.
func laterToken(a, b RawToken) bool {
	if b.DstLine != a.DstLine {
		return b.DstLine > a.DstLine
	}
	return b.DstCol > a.DstCol
}

// ForwardSrcRange maps both endpoints of a range via ForwardSrc; it only
// succeeds if both endpoints map (§4.E "forward_src_range").
func (sm *SourceMap) ForwardSrcRange(r protocol.Range, src source.Source) (protocol.Range, bool) {
	start, ok := sm.ForwardSrc(r.Start, src)
	if !ok {
		return protocol.Range{}, false
	}
	end, ok := sm.ForwardSrc(r.End, src)
	if !ok {
		return protocol.Range{}, false
	}
	return protocol.Range{Start: start, End: end}, true
}

// ForwardBuild is the inverse lookup: given an emit position, returns
// the source position and Source it maps from. Returns ok=false for
// generated regions (SrcID == NilSource) or when no mapping covers the
// position (§4.E "forward_build").
func (sm *SourceMap) ForwardBuild(pos protocol.Position) (protocol.Position, source.Source, bool) {
	tok, ok := sm.lookupToken(int(pos.Line), int(pos.Character))
	if !ok || tok.SrcID == NilSource {
		return protocol.Position{}, "", false
	}
	src, ok := sm.SourceAt(tok.SrcID)
	if !ok {
		return protocol.Position{}, "", false
	}
	col := tok.SrcCol + (int(pos.Character) - tok.DstCol)
	return protocol.Position{Line: uint32(tok.SrcLine), Character: uint32(col)}, src, true
}

// ForwardBuildRange maps both endpoints of a range via ForwardBuild; it
// only succeeds if both endpoints map to the same Source (§4.E
// "forward_build_range").
func (sm *SourceMap) ForwardBuildRange(r protocol.Range) (protocol.Range, source.Source, bool) {
	start, startSrc, ok := sm.ForwardBuild(r.Start)
	if !ok {
		return protocol.Range{}, "", false
	}
	end, endSrc, ok := sm.ForwardBuild(r.End)
	if !ok || endSrc != startSrc {
		return protocol.Range{}, "", false
	}
	return protocol.Range{Start: start, End: end}, startSrc, true
}

// lookupToken finds the raw token governing (dstLine, dstCol): the
// latest token on that line whose DstCol <= dstCol, since a token's
// mapping covers every column up to (but not including) the next
// token's start.
func (sm *SourceMap) lookupToken(dstLine, dstCol int) (RawToken, bool) {
	// tokens are appended in emission order, which is already
	// non-decreasing in (DstLine, DstCol); the binary search below relies
	// on that order and does not sort.
	idx := sort.Search(len(sm.tokens), func(i int) bool {
		t := sm.tokens[i]
		if t.DstLine != dstLine {
			return t.DstLine > dstLine
		}
		return t.DstCol > dstCol
	})
	for i := idx - 1; i >= 0; i-- {
		t := sm.tokens[i]
		if t.DstLine != dstLine {
			return RawToken{}, false
		}
		return t, true
	}
	return RawToken{}, false
}
