// Package protocol defines the LSP 3.17 wire types this proxy forwards,
// rewrites and reverse-maps. It plays the role the teacher's own
// `lsp/protocol` package plays for analyzer-lsp, trimmed to the subset of
// LSP this proxy's components actually touch (spec.md §4, §6).
package protocol

import (
	"encoding/json"

	"go.lsp.dev/uri"
)

// DocumentURI is the URI of a text document, exactly as LSP defines it.
type DocumentURI = uri.URI

// Position is a zero-based line/character position. Per spec.md §2,
// "character" is a UTF-16 code unit offset, not a Unicode scalar count;
// every component that advances a Position (the tokenizer, the emitter's
// source map, the forward/reverse mapping in internal/build) must respect
// that distinction.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// Range is a half-open [Start, End) span of Positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location pairs a Range with the document URI it lives in.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// LocationLink is the richer alternative to Location returned by
// definition/declaration/typeDefinition/implementation requests.
type LocationLink struct {
	OriginSelectionRange *Range      `json:"originSelectionRange,omitempty"`
	TargetURI            DocumentURI `json:"targetUri"`
	TargetRange          Range       `json:"targetRange"`
	TargetSelectionRange Range       `json:"targetSelectionRange"`
}

// TextDocumentIdentifier names a document without a version.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier names a document at a specific version,
// used in didChange notifications (spec.md §4.H).
type VersionedTextDocumentIdentifier struct {
	URI     DocumentURI `json:"uri"`
	Version int32       `json:"version"`
}

// TextDocumentItem is the full document payload sent with didOpen.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int32       `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams is the common shape of hover/definition/
// references/completion requests: a document plus a position within it.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// WorkDoneProgressParams embeds an optional progress token, carried by
// any request that wants $/progress notifications (spec.md §4.J step 4).
type WorkDoneProgressParams struct {
	WorkDoneToken *ProgressToken `json:"workDoneToken,omitempty"`
}

// ProgressToken is either a string or an integer, per the LSP spec.
type ProgressToken struct {
	Name   string
	Number int32
	isName bool
}

func NewProgressToken(name string) *ProgressToken {
	return &ProgressToken{Name: name, isName: true}
}

func (t ProgressToken) MarshalJSON() ([]byte, error) {
	if t.isName {
		return json.Marshal(t.Name)
	}
	return json.Marshal(t.Number)
}

func (t *ProgressToken) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &t.Number); err == nil {
		t.isName = false
		return nil
	}
	t.isName = true
	return json.Unmarshal(data, &t.Name)
}

// PartialResultParams embeds an optional partial-result token.
type PartialResultParams struct {
	PartialResultToken *ProgressToken `json:"partialResultToken,omitempty"`
}

// Diagnostic is a single diagnostic, as reported by textDocument/publishDiagnostics.
type Diagnostic struct {
	Range              Range                          `json:"range"`
	Severity           DiagnosticSeverity             `json:"severity,omitempty"`
	Code               *json.RawMessage               `json:"code,omitempty"`
	Source             string                         `json:"source,omitempty"`
	Message            string                         `json:"message"`
	RelatedInformation []DiagnosticRelatedInformation `json:"relatedInformation,omitempty"`
}

// DiagnosticSeverity ranks a Diagnostic's severity.
type DiagnosticSeverity uint32

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

// DiagnosticRelatedInformation points a Diagnostic at another Location,
// e.g. "declared here".
type DiagnosticRelatedInformation struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}
