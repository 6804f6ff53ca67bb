package lspproxy

import (
	"context"

	"github.com/glscript-lang/lsp-proxy/internal/build"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/store"
)

// semanticToken is one decoded (absolute, not delta) token entry.
type semanticToken struct {
	line, startChar, length uint32
	tokenType, modifiers    uint32
}

// decodeSemanticTokens expands LSP's delta-encoded quintuple stream
// into absolute positions (spec.md §4.I "Semantic tokens").
func decodeSemanticTokens(data []uint32) []semanticToken {
	out := make([]semanticToken, 0, len(data)/5)
	var line, char uint32
	for i := 0; i+4 < len(data); i += 5 {
		deltaLine, deltaChar := data[i], data[i+1]
		if deltaLine > 0 {
			line += deltaLine
			char = deltaChar
		} else {
			char += deltaChar
		}
		out = append(out, semanticToken{
			line:      line,
			startChar: char,
			length:    data[i+2],
			tokenType: data[i+3],
			modifiers: data[i+4],
		})
	}
	return out
}

// encodeSemanticTokens re-encodes a sequence of absolute tokens (already
// sorted by line then column, which ForwardBuild mapping preserves
// since it's monotonic) back into LSP's delta form.
func encodeSemanticTokens(toks []semanticToken) []uint32 {
	out := make([]uint32, 0, len(toks)*5)
	var line, char uint32
	for _, t := range toks {
		var deltaLine, deltaChar uint32
		if t.line == line {
			deltaLine = 0
			deltaChar = t.startChar - char
		} else {
			deltaLine = t.line - line
			deltaChar = t.startChar
		}
		out = append(out, deltaLine, deltaChar, t.length, t.tokenType, t.modifiers)
		line = t.line
		char = t.startChar
	}
	return out
}

// SemanticTokensFull is always transpile mode (spec.md §4.I "Semantic
// tokens (full)"): decode the delta stream to absolute positions, map
// each back to source, drop tokens falling in generated regions, and
// re-encode as deltas.
func (p *Proxy) SemanticTokensFull(ctx context.Context, params protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	uri := params.TextDocument.URI
	b, ok := p.ensureTranspile(ctx, uri)
	if !ok {
		var result protocol.SemanticTokens
		if err := p.Down.Conn.Call(ctx, "textDocument/semanticTokens/full", params, &result); err != nil {
			return nil, DownstreamError(err)
		}
		return &result, nil
	}
	doc, err := p.Docs.GetDoc(uri, p.ReadFile)
	if err != nil {
		return nil, DownstreamError(err)
	}

	downParams := params
	downParams.TextDocument.URI = b.EmitURI
	var result protocol.SemanticTokens
	if err := p.Down.Conn.Call(ctx, "textDocument/semanticTokens/full", downParams, &result); err != nil {
		return nil, DownstreamError(err)
	}

	decoded := decodeSemanticTokens(result.Data)
	mapped := make([]semanticToken, 0, len(decoded))
	for _, tok := range decoded {
		mapped = appendMappedToken(mapped, b, doc, tok)
	}
	return &protocol.SemanticTokens{ResultID: result.ResultID, Data: encodeSemanticTokens(mapped)}, nil
}

func appendMappedToken(mapped []semanticToken, b *build.Build, doc *store.Document, tok semanticToken) []semanticToken {
	startPos := protocol.Position{Line: tok.line, Character: tok.startChar}
	endPos := protocol.Position{Line: tok.line, Character: tok.startChar + tok.length}
	r, src, ok := b.ForwardBuildRange(protocol.Range{Start: startPos, End: endPos})
	if !ok || src != doc.Source {
		return mapped
	}
	if intersectsSyntheticToken(doc.Parse, r) {
		return mapped
	}
	return append(mapped, semanticToken{
		line:      r.Start.Line,
		startChar: r.Start.Character,
		length:    r.End.Character - r.Start.Character,
		tokenType: tok.tokenType,
		modifiers: tok.modifiers,
	})
}
