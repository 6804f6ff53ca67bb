package lspproxy

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/glscript-lang/lsp-proxy/internal/build"
	"github.com/glscript-lang/lsp-proxy/internal/ident"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

// identifierPrefixPattern strips the synthetic declaration-statement
// prefix out of hover contents (spec.md §4.I "Hover": "a regex
// replacement (SCRIPT_IDENTIFIER_PREFIX\w+ → a human-readable
// marker)").
var identifierPrefixPattern = regexp.MustCompile(regexp.QuoteMeta(ident.ScriptIdentifierPrefix) + `\w+`)

const identifierMarker = "<included source>"

// Hover runs the eight-step scaffold for textDocument/hover, then
// issues a parallel definition request (200ms timeout) to decide which
// provenance note to prepend (spec.md §4.I "Hover").
func (p *Proxy) Hover(ctx context.Context, params protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureBundle(ctx, uri)
	if !ok {
		var result protocol.Hover
		if err := p.Down.Conn.Call(ctx, "textDocument/hover", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return &result, nil
	}
	if err := p.syncPendingEdits(ctx, uri, b); err != nil {
		return nil, err
	}

	emitPos, err := p.forwardPosition(b, params.Position)
	if err != nil {
		return nil, err
	}
	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	downParams.Position = emitPos

	defCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	defDone := make(chan []protocol.LocationLink, 1)
	go func() {
		var defResult []protocol.LocationLink
		_ = p.Down.Conn.Call(defCtx, "textDocument/definition", downParams, &defResult)
		defDone <- defResult
	}()

	var result protocol.Hover
	if err := p.Down.Conn.Call(ctx, "textDocument/hover", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	defResult := <-defDone

	stripped := identifierPrefixPattern.Match(result.Contents)
	contents := identifierPrefixPattern.ReplaceAll(result.Contents, []byte(identifierMarker))

	note := p.hoverProvenanceNote(b, stripped, defResult)

	if result.Range != nil {
		srcRange, _, ok := b.ForwardBuildRange(*result.Range)
		if ok {
			result.Range = &srcRange
		} else {
			result.Range = nil
		}
	}
	result.Contents = append([]byte(note), contents...)
	return &result, nil
}

// hoverProvenanceNote picks the markdown note to prepend to a hover
// response, per spec.md §4.I "Hover": a "no definition" warning when the
// parallel definition lookup came back empty, else a provenance note
// iff the identifier was stripped or the definition lands in another
// file.
func (p *Proxy) hoverProvenanceNote(b *build.Build, stripped bool, defResult []protocol.LocationLink) string {
	if len(defResult) == 0 {
		return "_no definition found_\n\n"
	}
	if stripped {
		return "_Built-in symbol_\n\n"
	}
	_, src, ok := b.ForwardBuildRange(protocol.Range{
		Start: defResult[0].TargetRange.Start,
		End:   defResult[0].TargetRange.End,
	})
	if !ok || src == b.Target {
		return ""
	}
	if p.HasDefault && src == p.DefaultSource {
		return fmt.Sprintf("_Default included by %s_\n\n", src)
	}
	return fmt.Sprintf("_Included by %s_\n\n", src)
}

// Definition runs the eight-step scaffold and folds the result into a
// set of location links keyed by canonicalized target URI + ranges,
// dropping responses that land in the synthetic bundle file but keeping
// .d.ts results and mapping everything else back to source (spec.md
// §4.I "Definition / References (single)").
func (p *Proxy) Definition(ctx context.Context, params protocol.DefinitionParams) ([]protocol.LocationLink, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureBundle(ctx, uri)
	if !ok {
		var result []protocol.LocationLink
		if err := p.Down.Conn.Call(ctx, "textDocument/definition", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	if err := p.syncPendingEdits(ctx, uri, b); err != nil {
		return nil, err
	}
	emitPos, err := p.forwardPosition(b, params.Position)
	if err != nil {
		return nil, err
	}
	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	downParams.Position = emitPos

	var result []protocol.LocationLink
	if err := p.Down.Conn.Call(ctx, "textDocument/definition", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	return p.foldLocationLinks(b, result), nil
}

// foldLocationLinks maps each link's target back to source coordinates,
// dropping links that land in the synthetic bundle emit file (no
// user-meaningful target) and deduplicating by canonicalized target
// URI + range.
func (p *Proxy) foldLocationLinks(b *build.Build, links []protocol.LocationLink) []protocol.LocationLink {
	seen := make(map[string]struct{}, len(links))
	out := make([]protocol.LocationLink, 0, len(links))
	for _, link := range links {
		mapped, ok := p.reverseLocation(b, protocol.Location{URI: link.TargetURI, Range: link.TargetRange})
		if !ok {
			continue
		}
		selMapped, selOK := p.reverseLocation(b, protocol.Location{URI: link.TargetURI, Range: link.TargetSelectionRange})
		if !selOK {
			selMapped = mapped
		}
		key := string(mapped.URI) + fmtRange(mapped.Range)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, protocol.LocationLink{
			OriginSelectionRange: link.OriginSelectionRange,
			TargetURI:            mapped.URI,
			TargetRange:          mapped.Range,
			TargetSelectionRange: selMapped.Range,
		})
	}
	return out
}

// References runs the single-bundle variant of find-references used as
// the final step of the workspace-references engine (internal/wsrefs
// step 5, "query downstream for each already-open bundle").
func (p *Proxy) References(ctx context.Context, params protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureBundle(ctx, uri)
	if !ok {
		var result []protocol.Location
		if err := p.Down.Conn.Call(ctx, "textDocument/references", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	if err := p.syncPendingEdits(ctx, uri, b); err != nil {
		return nil, err
	}
	emitPos, err := p.forwardPosition(b, params.Position)
	if err != nil {
		return nil, err
	}
	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	downParams.Position = emitPos

	var result []protocol.Location
	if err := p.Down.Conn.Call(ctx, "textDocument/references", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	return p.dedupLocations(b, result), nil
}

// dedupLocations maps and dedups a slice of Locations per spec.md §4.J
// step 7 ("Deduplicate locations by canonicalized URI + range").
func (p *Proxy) dedupLocations(b *build.Build, locs []protocol.Location) []protocol.Location {
	seen := make(map[string]struct{}, len(locs))
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		mapped, ok := p.reverseLocation(b, loc)
		if !ok {
			continue
		}
		key := string(mapped.URI) + fmtRange(mapped.Range)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, mapped)
	}
	return out
}

// syncPendingEdits implements scaffold step 2: drain and dispatch
// pending edits for uri before the request is allowed to observe b.
func (p *Proxy) syncPendingEdits(ctx context.Context, uri protocol.DocumentURI, b *build.Build) error {
	edits, err := p.commit(ctx, uri)
	if err != nil {
		return err
	}
	version := b.Version()
	if cur, ok := p.Builds.GetBundle(uri); ok {
		version = cur.Version()
	}
	if err := p.syncDownstream(ctx, b.EmitURI, version, edits); err != nil {
		return DownstreamError(err)
	}
	return nil
}

func fmtRange(r protocol.Range) string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
}
