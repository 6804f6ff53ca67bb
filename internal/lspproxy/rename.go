package lspproxy

import (
	"context"

	"github.com/glscript-lang/lsp-proxy/internal/jsonrpc2"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

// ErrRefusedInIncludePath is returned by PrepareRename and
// SignatureHelp when the cursor sits inside an include path literal
// (spec.md §4.I "Prepare-rename / Signature-help": "Refuse inside
// include paths").
var ErrRefusedInIncludePath = jsonrpc2.NewErrorf(jsonrpc2.CodeInvalidRequest, "request_failed: refused inside an include path")

// Rename delegates to the workspace-references engine (internal/wsrefs)
// to find every occurrence of the symbol under the cursor across the
// workspace, then folds the result into a WorkspaceEdit that replaces
// each occurrence's text with params.NewName (spec.md §4.I "Rename":
// "indirectly invoked by" the references engine).
func (p *Proxy) Rename(ctx context.Context, params protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	doc, err := p.Docs.GetDoc(params.TextDocument.URI, p.ReadFile)
	if err == nil && positionInIncludePath(doc.Parse, params.Position) {
		return nil, ErrRefusedInIncludePath
	}

	locs, err := p.Refs.References(ctx, protocol.ReferenceParams{
		TextDocumentPositionParams: params.TextDocumentPositionParams,
		Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
	})
	if err != nil {
		return nil, DownstreamError(err)
	}
	if len(locs) == 0 {
		return nil, MappingFailure("no renameable symbol at the given position")
	}

	changesByURI := make(map[protocol.DocumentURI][]protocol.TextEdit, len(locs))
	for _, loc := range locs {
		changesByURI[loc.URI] = append(changesByURI[loc.URI], protocol.TextEdit{
			Range:   loc.Range,
			NewText: params.NewName,
		})
	}
	return &protocol.WorkspaceEdit{Changes: changesByURI}, nil
}

// PrepareRename refuses inside include paths; otherwise it runs the
// ordinary bundle-mode scaffold.
func (p *Proxy) PrepareRename(ctx context.Context, params protocol.PrepareRenameParams) (*protocol.Range, error) {
	uri := params.TextDocument.URI
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err == nil && positionInIncludePath(doc.Parse, params.Position) {
		return nil, ErrRefusedInIncludePath
	}
	b, ok := p.ensureBundle(ctx, uri)
	if !ok {
		var result protocol.Range
		if callErr := p.Down.Conn.Call(ctx, "textDocument/prepareRename", params, &result); callErr != nil {
			return nil, DownstreamError(callErr)
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

	var result protocol.Range
	if err := p.Down.Conn.Call(ctx, "textDocument/prepareRename", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	mapped, _, ok := b.ForwardBuildRange(result)
	if !ok {
		return nil, MappingFailure("prepareRename result does not map back to source")
	}
	return &mapped, nil
}

// SignatureHelp refuses inside include paths; otherwise it runs the
// ordinary bundle-mode scaffold, leaving the response uninterpreted
// (spec.md §4.I: signature help contents are passed through verbatim).
func (p *Proxy) SignatureHelp(ctx context.Context, params protocol.SignatureHelpParams) (protocol.SignatureHelp, error) {
	uri := params.TextDocument.URI
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err == nil && positionInIncludePath(doc.Parse, params.Position) {
		return nil, ErrRefusedInIncludePath
	}
	b, ok := p.ensureBundle(ctx, uri)
	if !ok {
		var result protocol.SignatureHelp
		if callErr := p.Down.Conn.Call(ctx, "textDocument/signatureHelp", params, &result); callErr != nil {
			return nil, DownstreamError(callErr)
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

	var result protocol.SignatureHelp
	if err := p.Down.Conn.Call(ctx, "textDocument/signatureHelp", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}
	return result, nil
}
