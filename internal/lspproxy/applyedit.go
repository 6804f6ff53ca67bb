package lspproxy

import (
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

// RemapApplyEdit remaps a workspace/applyEdit request in the simple
// `changes` form entry-by-entry to source URIs; the richer
// `documentChanges`/`changeAnnotations` forms are refused with
// applied=false (spec.md §4.I "ApplyEdit").
func (p *Proxy) RemapApplyEdit(params protocol.ApplyWorkspaceEditParams) (protocol.ApplyWorkspaceEditParams, *protocol.ApplyWorkspaceEditResult) {
	if params.Edit.Changes == nil {
		return protocol.ApplyWorkspaceEditParams{}, &protocol.ApplyWorkspaceEditResult{
			Applied:       false,
			FailureReason: "documentChanges/changeAnnotations form is not supported",
		}
	}

	remapped := make(map[protocol.DocumentURI][]protocol.TextEdit, len(params.Edit.Changes))
	for emitURI, edits := range params.Edit.Changes {
		b, ok := p.Builds.GetAnyBuildByEmitURI(emitURI)
		if !ok {
			continue
		}
		for _, edit := range edits {
			r, src, ok := b.ForwardBuildRange(edit.Range)
			if !ok {
				continue
			}
			uri, ok := p.Docs.URIForSource(src)
			if !ok {
				continue
			}
			remapped[uri] = append(remapped[uri], protocol.TextEdit{Range: r, NewText: edit.NewText})
		}
	}
	params.Edit.Changes = remapped
	return params, nil
}
