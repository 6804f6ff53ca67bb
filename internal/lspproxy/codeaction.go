package lspproxy

import (
	"context"
	"encoding/json"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/store"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

// transpileRefactorTitle names the synthetic code action spec.md §4.I
// exposes alongside whatever the downstream server returns.
const transpileRefactorTitle = "Transpile to ES syntax"

// CodeAction runs bundle mode, restricting the action range to start at
// the document's first non-include position (an include-only range
// yields no actions), and appends a synthetic "Transpile to ES syntax"
// refactor action whose edit replaces the whole file with the
// transpile content, iff that content differs from the current text
// (spec.md §4.I "Code action").
func (p *Proxy) CodeAction(ctx context.Context, params protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	uri := params.TextDocument.URI
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		var result []protocol.CodeAction
		if callErr := p.Down.Conn.Call(ctx, "textDocument/codeAction", params, &result); callErr != nil {
			return nil, DownstreamError(callErr)
		}
		return result, nil
	}

	firstNonInclude := firstNonIncludePosition(doc.Parse)
	clamped := params.Range
	if posBefore(clamped.Start, firstNonInclude) {
		clamped.Start = firstNonInclude
	}

	var actions []protocol.CodeAction
	if !posBefore(clamped.End, firstNonInclude) {
		b, ok := p.ensureBundle(ctx, uri)
		if ok {
			if err := p.syncPendingEdits(ctx, uri, b); err != nil {
				return nil, err
			}
			emitRange, err := p.forwardRange(b, clamped)
			if err != nil {
				return nil, err
			}
			downParams := params
			downParams.TextDocument.URI = b.EmitURI
			downParams.Range = emitRange
			if callErr := p.Down.Conn.Call(ctx, "textDocument/codeAction", downParams, &actions); callErr != nil {
				return nil, DownstreamError(callErr)
			}
		} else {
			if callErr := p.Down.Conn.Call(ctx, "textDocument/codeAction", params, &actions); callErr != nil {
				return nil, DownstreamError(callErr)
			}
		}
	}

	if refactor, ok := p.transpileRefactorAction(ctx, uri, doc); ok {
		actions = append(actions, refactor)
	}
	return actions, nil
}

// transpileRefactorAction builds the synthetic "Transpile to ES syntax"
// action, provided the transpile output actually differs from the
// current buffer content.
func (p *Proxy) transpileRefactorAction(ctx context.Context, uri protocol.DocumentURI, doc *store.Document) (protocol.CodeAction, bool) {
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		return protocol.CodeAction{}, false
	}
	current := doc.Buffer.String()
	if b.Content == current {
		return protocol.CodeAction{}, false
	}
	edit := protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentURI][]protocol.TextEdit{
			uri: {{
				Range:   wholeDocumentRange(current),
				NewText: b.Content,
			}},
		},
	}
	rawEdit, err := json.Marshal(edit)
	if err != nil {
		return protocol.CodeAction{}, false
	}
	return protocol.CodeAction{
		Title: transpileRefactorTitle,
		Kind:  "refactor",
		Edit:  rawEdit,
	}, true
}

func firstNonIncludePosition(parse *token.Parse) protocol.Position {
	for _, tok := range parse.Tokens {
		switch tok.Kind {
		case token.Include, token.IncludePath, token.LineTerminator:
			continue
		}
		return protocol.Position{Line: uint32(tok.Span.Line), Character: uint32(tok.Span.Col)}
	}
	return protocol.Position{}
}

func wholeDocumentRange(text string) protocol.Range {
	line, col := 0, 0
	for _, r := range text {
		if r == '\n' {
			line++
			col = 0
			continue
		}
		col++
	}
	return protocol.Range{
		Start: protocol.Position{Line: 0, Character: 0},
		End:   protocol.Position{Line: uint32(line), Character: uint32(col)},
	}
}
