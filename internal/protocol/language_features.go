package protocol

import "encoding/json"

// HoverParams is a plain TextDocumentPositionParams plus work-done
// progress, per LSP 3.17.
type HoverParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
}

// Hover is the downstream response; MarkupContent is left as raw JSON
// since this proxy only ever prepends/strips text within it (spec.md
// §4.I "Hover") and never needs to interpret markdown vs plaintext.
type Hover struct {
	Contents json.RawMessage `json:"contents"`
	Range    *Range          `json:"range,omitempty"`
}

// DefinitionParams requests one or more LocationLinks for a position.
type DefinitionParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
	PartialResultParams
}

// ReferenceParams additionally carries the IncludeDeclaration context
// flag, which spec.md §4.J step 1 uses as its early-exit idempotency
// gate: servers are never asked to find references to a declaration
// statement itself.
type ReferenceParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
	PartialResultParams
	Context ReferenceContext `json:"context"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// CompletionParams requests completion items at a position.
type CompletionParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
	PartialResultParams
	Context *CompletionContext `json:"context,omitempty"`
}

type CompletionContext struct {
	TriggerKind      CompletionTriggerKind `json:"triggerKind"`
	TriggerCharacter string                `json:"triggerCharacter,omitempty"`
}

type CompletionTriggerKind uint32

const (
	CompletionTriggerInvoked         CompletionTriggerKind = 1
	CompletionTriggerCharacter       CompletionTriggerKind = 2
	CompletionTriggerIncomplete      CompletionTriggerKind = 3
)

// CompletionList is the downstream response; Items whose label begins
// with the synthetic declaration-statement prefix are filtered out by
// the proxy before this is sent back to the editor (spec.md §4.I
// "Completion").
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

type CompletionItem struct {
	Label            string          `json:"label"`
	Kind             uint32          `json:"kind,omitempty"`
	Detail           string          `json:"detail,omitempty"`
	Documentation    json.RawMessage `json:"documentation,omitempty"`
	InsertText       string          `json:"insertText,omitempty"`
	TextEdit         json.RawMessage `json:"textEdit,omitempty"`
	AdditionalTextEdits []TextEdit   `json:"additionalTextEdits,omitempty"`
}

// TextEdit replaces the text within Range with NewText.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// CodeActionParams requests code actions within a range.
type CodeActionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
	Context      CodeActionContext      `json:"context"`
	WorkDoneProgressParams
	PartialResultParams
}

type CodeActionContext struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	Only        []string     `json:"only,omitempty"`
}

// CodeAction is left mostly as raw JSON (Edit, Command) since this
// proxy's job for code actions is limited to clamping the incoming
// Range away from include-header lines (spec.md §4.I "Code action", the
// first_non_include_build_pos rule) before forwarding; it does not
// synthesize edits of its own.
type CodeAction struct {
	Title string          `json:"title"`
	Kind  string          `json:"kind,omitempty"`
	Edit  json.RawMessage `json:"edit,omitempty"`
}

// SemanticTokensParams requests the full encoded token stream for a
// document.
type SemanticTokensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	WorkDoneProgressParams
	PartialResultParams
}

// SemanticTokensRangeParams requests tokens only within Range.
type SemanticTokensRangeParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
	WorkDoneProgressParams
	PartialResultParams
}

// SemanticTokens is the delta-encoded token stream (LSP's
// deltaLine/deltaStartChar/length/tokenType/tokenModifiers quintuples).
// The proxy must re-encode these deltas after removing or shifting
// tokens that fall inside synthesized declaration/link statements,
// since every entry after a removed token is relative to its
// predecessor (spec.md §4.I "Semantic tokens").
type SemanticTokens struct {
	ResultID string `json:"resultId,omitempty"`
	Data     []uint32 `json:"data"`
}

// FoldingRangeParams requests folding ranges for a document.
type FoldingRangeParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	WorkDoneProgressParams
	PartialResultParams
}

type FoldingRangeKind string

const (
	FoldingRangeComment FoldingRangeKind = "comment"
	FoldingRangeImports FoldingRangeKind = "imports"
	FoldingRangeRegion  FoldingRangeKind = "region"
)

// FoldingRange folds a span of lines; the proxy drops ranges that
// overlap an include or region token of the source document
// (spec.md §4.I "Folding range").
type FoldingRange struct {
	StartLine      uint32           `json:"startLine"`
	StartCharacter *uint32          `json:"startCharacter,omitempty"`
	EndLine        uint32           `json:"endLine"`
	EndCharacter   *uint32          `json:"endCharacter,omitempty"`
	Kind           FoldingRangeKind `json:"kind,omitempty"`
}
