package lspproxy

import (
	"context"
	"strings"

	"github.com/glscript-lang/lsp-proxy/internal/build"
	"github.com/glscript-lang/lsp-proxy/internal/ident"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

// Completion runs bundle mode unless the cursor sits inside an include
// path literal, in which case it runs transpile mode so the downstream
// server sees a filesystem-relative string literal and offers path
// completions (spec.md §4.I "Completion").
func (p *Proxy) Completion(ctx context.Context, params protocol.CompletionParams) (*protocol.CompletionList, error) {
	uri := params.TextDocument.URI
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		var result protocol.CompletionList
		if callErr := p.Down.Conn.Call(ctx, "textDocument/completion", params, &result); callErr != nil {
			return nil, DownstreamError(callErr)
		}
		return &result, nil
	}

	var b *build.Build
	if positionInIncludePath(doc.Parse, params.Position) {
		bb, ok := p.ensureTranspile(ctx, uri)
		if !ok {
			var result protocol.CompletionList
			if err := p.Down.Conn.Call(ctx, "textDocument/completion", params, &result); err != nil {
				return nil, DownstreamError(err)
			}
			return &result, nil
		}
		b = bb
	} else {
		bb, ok := p.ensureBundle(ctx, uri)
		if !ok {
			var result protocol.CompletionList
			if err := p.Down.Conn.Call(ctx, "textDocument/completion", params, &result); err != nil {
				return nil, DownstreamError(err)
			}
			return &result, nil
		}
		if err := p.syncPendingEdits(ctx, uri, bb); err != nil {
			return nil, err
		}
		b = bb
	}

	emitPos, ok := b.ForwardSrc(params.Position, doc.Source)
	if !ok {
		return nil, MappingFailure("completion position %d:%d does not map", params.Position.Line, params.Position.Character)
	}
	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	downParams.Position = emitPos

	var result protocol.CompletionList
	if err := p.Down.Conn.Call(ctx, "textDocument/completion", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}

	items := make([]protocol.CompletionItem, 0, len(result.Items))
	for _, item := range result.Items {
		if strings.HasPrefix(item.Label, ident.ScriptIdentifierPrefix) {
			continue
		}
		item.TextEdit = nil
		item.AdditionalTextEdits = nil
		items = append(items, item)
	}
	result.Items = items
	return &result, nil
}

// CompletionResolve forwards completionItem/resolve to the downstream
// server unchanged. The item's TextEdit/AdditionalTextEdits, if any,
// address positions in emitted bundle space, which the editor has no
// way to interpret, so they are stripped the same way Completion strips
// them from the list it returns (spec.md §4.I "Completion").
func (p *Proxy) CompletionResolve(ctx context.Context, params protocol.CompletionItem) (*protocol.CompletionItem, error) {
	var result protocol.CompletionItem
	if err := p.Down.Conn.Call(ctx, "completionItem/resolve", params, &result); err != nil {
		return nil, DownstreamError(err)
	}
	result.TextEdit = nil
	result.AdditionalTextEdits = nil
	return &result, nil
}

func positionInIncludePath(parse *token.Parse, pos protocol.Position) bool {
	for _, tok := range parse.Tokens {
		if tok.Kind != token.IncludePath {
			continue
		}
		start := protocol.Position{Line: uint32(tok.Span.Line), Character: uint32(tok.Span.Col)}
		end := tok.End()
		stop := protocol.Position{Line: uint32(end.Line), Character: uint32(end.Col)}
		if !posBefore(pos, start) && posBefore(pos, stop) {
			return true
		}
	}
	return false
}
