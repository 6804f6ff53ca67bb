package protocol

import "encoding/json"

// PrepareRenameParams and RenameParams both refuse inside include-path
// literals (spec.md §4.I "Prepare-rename / Signature-help").
type PrepareRenameParams struct {
	TextDocumentPositionParams
}

type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

// SignatureHelpParams requests signature help at a position.
type SignatureHelpParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
}

// SignatureHelp is left as raw JSON; this proxy never inspects its
// contents, only whether to refuse the request.
type SignatureHelp = json.RawMessage

// FormattingParams, RangeFormattingParams, SelectionRangeParams,
// DocumentSymbolParams, and InlayHintParams are the transpile-mode
// group from spec.md §4.I ("Folding, formatting, selection range,
// symbols, inlay hints"): each maps ranges back and drops entries whose
// range intersects an include or region token.
type FormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      json.RawMessage        `json:"options"`
}

type RangeFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
	Options      json.RawMessage        `json:"options"`
}

type SelectionRangeParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Positions    []Position             `json:"positions"`
}

// SelectionRange is a nested span; Parent is nil at the outermost level.
type SelectionRange struct {
	Range  Range           `json:"range"`
	Parent *SelectionRange `json:"parent,omitempty"`
}

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	WorkDoneProgressParams
	PartialResultParams
}

type InlayHintParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
}

type InlayHint struct {
	Position Position        `json:"position"`
	Label    string          `json:"label"`
	Kind     uint32          `json:"kind,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// CodeLensParams requests the code lenses for a document; CodeLens runs
// the transpile-mode scaffold like the rest of this file's group, and a
// lens whose Range does not map back to the requesting document or
// falls on a synthetic line is dropped rather than resolved.
type CodeLensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	WorkDoneProgressParams
	PartialResultParams
}

// CodeLens is left with Command as raw JSON: the proxy only relocates
// Range, it never inspects or rewrites the command payload.
type CodeLens struct {
	Range   Range           `json:"range"`
	Command json.RawMessage `json:"command,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ExecuteCommandParams is forwarded verbatim (spec.md §6 "executeCommand"
// is listed among the forwarded request kinds with no coordinate
// rewriting of its own: commands operate on whatever URIs/ranges their
// Arguments already carry, which the client constructed from a prior,
// already-reverse-mapped response).
type ExecuteCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
	WorkDoneProgressParams
}
