package protocol

// DidOpenTextDocumentParams is sent by the editor when a document is
// opened; the proxy responds by creating a Document (spec.md §4.F) and
// an initial Build (§4.E/G).
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams carries one or more content changes; the
// proxy queues these in its lazy change pipeline (spec.md §4.H) rather
// than reacting synchronously.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// TextDocumentContentChangeEvent is either a ranged incremental edit
// (Range set) or a whole-document replacement (Range nil, Text the full
// new content).
type TextDocumentContentChangeEvent struct {
	Range       *Range `json:"range,omitempty"`
	RangeLength *uint32 `json:"rangeLength,omitempty"`
	Text        string `json:"text"`
}

// IsWholeDocument reports whether this change replaces the entire
// document (no Range given).
func (c TextDocumentContentChangeEvent) IsWholeDocument() bool {
	return c.Range == nil
}

// DidCloseTextDocumentParams evicts the corresponding Document and Build
// (spec.md §4.F/G eviction-on-close).
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveTextDocumentParams is forwarded to the downstream server
// unchanged other than URI rewriting; saves do not themselves change
// document content in this protocol.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

// PublishDiagnosticsParams is the downstream server's notification,
// reverse-mapped into editor-source coordinates before republishing
// (spec.md §4.I "Diagnostics").
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     *int32       `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}
