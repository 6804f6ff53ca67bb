package lspproxy

import (
	"context"
	"encoding/json"

	"github.com/glscript-lang/lsp-proxy/internal/build"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/store"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

// The handlers in this file share one shape — spec.md §4.I's "Folding,
// formatting, selection range, symbols, inlay hints" group: always
// transpile-mode, map ranges back, drop entries whose range intersects
// an include or region token.

// FoldingRange runs the transpile-mode scaffold and drops ranges that
// overlap an include or region token.
func (p *Proxy) FoldingRange(ctx context.Context, params protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result []protocol.FoldingRange
		if err := p.Down.Conn.Call(ctx, "textDocument/foldingRange", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	var result []protocol.FoldingRange
	if err := p.Down.Conn.Call(ctx, "textDocument/foldingRange", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}

	out := make([]protocol.FoldingRange, 0, len(result))
	for _, fr := range result {
		srcStart, srcA, okA := b.ForwardBuild(protocol.Position{Line: fr.StartLine})
		srcEnd, srcB, okB := b.ForwardBuild(protocol.Position{Line: fr.EndLine})
		if !okA || !okB || srcA != doc.Source || srcB != doc.Source {
			continue
		}
		r := protocol.Range{Start: srcStart, End: srcEnd}
		if intersectsSyntheticToken(doc.Parse, r) {
			continue
		}
		mapped := fr
		mapped.StartLine = srcStart.Line
		mapped.EndLine = srcEnd.Line
		out = append(out, mapped)
	}
	return out, nil
}

// DocumentSymbol runs the transpile-mode scaffold over the hierarchical
// symbol tree, mapping and filtering every level recursively.
func (p *Proxy) DocumentSymbol(ctx context.Context, params protocol.DocumentSymbolParams) ([]protocol.DocumentSymbol, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result []protocol.DocumentSymbol
		if err := p.Down.Conn.Call(ctx, "textDocument/documentSymbol", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	var result []protocol.DocumentSymbol
	if err := p.Down.Conn.Call(ctx, "textDocument/documentSymbol", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	return mapSymbols(b, doc.Source, doc.Parse, result), nil
}

// mapSymbols recursively maps and filters a DocumentSymbol tree: a
// symbol whose own range fails to map back to src, or intersects a
// synthetic token, is dropped along with its children.
func mapSymbols(b *build.Build, src source.Source, parse *token.Parse, symbols []protocol.DocumentSymbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		r, mappedSrc, ok := b.ForwardBuildRange(sym.Range)
		if !ok || mappedSrc != src || intersectsSyntheticToken(parse, r) {
			continue
		}
		selRange := r
		if sr, selSrc, selOK := b.ForwardBuildRange(sym.SelectionRange); selOK && selSrc == src {
			selRange = sr
		}
		mapped := sym
		mapped.Range = r
		mapped.SelectionRange = selRange
		mapped.Children = mapSymbols(b, src, parse, sym.Children)
		out = append(out, mapped)
	}
	return out
}

// SelectionRange runs the transpile-mode scaffold over each requested
// position's nested selection-range chain.
func (p *Proxy) SelectionRange(ctx context.Context, params protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result []protocol.SelectionRange
		if err := p.Down.Conn.Call(ctx, "textDocument/selectionRange", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	downParams.Positions = make([]protocol.Position, len(params.Positions))
	for i, pos := range params.Positions {
		fwd, ok := b.ForwardSrc(pos, doc.Source)
		if !ok {
			return nil, MappingFailure("selectionRange position %d:%d does not map", pos.Line, pos.Character)
		}
		downParams.Positions[i] = fwd
	}

	var result []protocol.SelectionRange
	if err := p.Down.Conn.Call(ctx, "textDocument/selectionRange", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}

	out := make([]protocol.SelectionRange, 0, len(result))
	for _, sr := range result {
		mapped, ok := reverseSelectionRange(b, doc.Source, sr)
		if ok {
			out = append(out, mapped)
		}
	}
	return out, nil
}

// reverseSelectionRange walks sr's parent chain, mapping each level back
// to source coordinates and truncating the chain at the first level
// that fails to map (a narrower selection level landing outside src
// implies every wider ancestor does too, since selection ranges nest).
func reverseSelectionRange(b *build.Build, src source.Source, sr protocol.SelectionRange) (protocol.SelectionRange, bool) {
	r, mappedSrc, ok := b.ForwardBuildRange(sr.Range)
	if !ok || mappedSrc != src {
		return protocol.SelectionRange{}, false
	}
	out := protocol.SelectionRange{Range: r}
	if sr.Parent != nil {
		if parent, ok := reverseSelectionRange(b, src, *sr.Parent); ok {
			out.Parent = &parent
		}
	}
	return out, true
}

// Formatting runs the transpile-mode scaffold over the whole document,
// mapping each returned TextEdit's Range back to source coordinates and
// dropping edits that land on a synthetic include/region line (spec.md
// §4.I "Formatting, range formatting").
func (p *Proxy) Formatting(ctx context.Context, params protocol.FormattingParams) ([]protocol.TextEdit, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result []protocol.TextEdit
		if err := p.Down.Conn.Call(ctx, "textDocument/formatting", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	var result []protocol.TextEdit
	if err := p.Down.Conn.Call(ctx, "textDocument/formatting", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	return reverseTextEdits(b, doc, result), nil
}

// RangeFormatting is Formatting restricted to params.Range.
func (p *Proxy) RangeFormatting(ctx context.Context, params protocol.RangeFormattingParams) ([]protocol.TextEdit, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result []protocol.TextEdit
		if err := p.Down.Conn.Call(ctx, "textDocument/rangeFormatting", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}
	emitRange, err := p.forwardRange(b, params.Range)
	if err != nil {
		return nil, err
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	downParams.Range = emitRange
	var result []protocol.TextEdit
	if err := p.Down.Conn.Call(ctx, "textDocument/rangeFormatting", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	return reverseTextEdits(b, doc, result), nil
}

func reverseTextEdits(b *build.Build, doc *store.Document, edits []protocol.TextEdit) []protocol.TextEdit {
	out := make([]protocol.TextEdit, 0, len(edits))
	for _, e := range edits {
		r, src, ok := b.ForwardBuildRange(e.Range)
		if !ok || src != doc.Source || intersectsSyntheticToken(doc.Parse, r) {
			continue
		}
		mapped := e
		mapped.Range = r
		out = append(out, mapped)
	}
	return out
}

// CodeLens runs the transpile-mode scaffold, dropping lenses whose range
// does not map back to the requesting document or falls on a synthetic
// line (spec.md §4.I "Folding, formatting, ... inlay hints" group).
func (p *Proxy) CodeLens(ctx context.Context, params protocol.CodeLensParams) ([]protocol.CodeLens, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result []protocol.CodeLens
		if err := p.Down.Conn.Call(ctx, "textDocument/codeLens", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	var result []protocol.CodeLens
	if err := p.Down.Conn.Call(ctx, "textDocument/codeLens", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}

	out := make([]protocol.CodeLens, 0, len(result))
	for _, lens := range result {
		r, src, ok := b.ForwardBuildRange(lens.Range)
		if !ok || src != doc.Source || intersectsSyntheticToken(doc.Parse, r) {
			continue
		}
		mapped := lens
		mapped.Range = r
		out = append(out, mapped)
	}
	return out, nil
}

// ExecuteCommand is forwarded verbatim: by the time the client issues
// it, any URIs or ranges its Arguments carry were already reverse-mapped
// in an earlier response (spec.md §6).
func (p *Proxy) ExecuteCommand(ctx context.Context, params protocol.ExecuteCommandParams) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.Down.Conn.Call(ctx, "workspace/executeCommand", params, &result); err != nil {
		return nil, DownstreamError(err)
	}
	return result, nil
}

// InlayHint runs the transpile-mode scaffold over a set of inlay hints,
// dropping any whose position does not map back to the requesting
// document or falls on a synthetic line.
func (p *Proxy) InlayHint(ctx context.Context, params protocol.InlayHintParams) ([]protocol.InlayHint, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result []protocol.InlayHint
		if err := p.Down.Conn.Call(ctx, "textDocument/inlayHint", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}
	emitRange, err := p.forwardRange(b, params.Range)
	if err != nil {
		return nil, err
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	downParams.Range = emitRange
	var result []protocol.InlayHint
	if err := p.Down.Conn.Call(ctx, "textDocument/inlayHint", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}

	out := make([]protocol.InlayHint, 0, len(result))
	for _, hint := range result {
		pos, src, ok := b.ForwardBuild(hint.Position)
		if !ok || src != doc.Source {
			continue
		}
		point := protocol.Range{Start: pos, End: pos}
		if intersectsSyntheticToken(doc.Parse, point) {
			continue
		}
		mapped := hint
		mapped.Position = pos
		out = append(out, mapped)
	}
	return out, nil
}
