package protocol

import "encoding/json"

// WorkspaceSymbolParams is the query issued by workspace/symbol. The
// workspace-references engine (spec.md §4.J) does not use it: its file
// scan is a plain substring test for the declaration's literal text.
type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// SymbolInformation is the flat (pre-3.17) workspace/symbol result shape,
// matching what the teacher's `document_symbol_cache.go`/`symbol_cache.go`
// caches.
type SymbolInformation struct {
	Name     string   `json:"name"`
	Kind     uint32   `json:"kind"`
	Location Location `json:"location"`
}

// DocumentSymbol is the hierarchical document-symbol result shape.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Kind           uint32           `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// ApplyWorkspaceEditParams is sent by a server to ask the editor to apply
// an edit; when it targets a bundle file this proxy reverse-maps every
// edit's Range before forwarding (spec.md §4.I "applyEdit").
type ApplyWorkspaceEditParams struct {
	Label string         `json:"label,omitempty"`
	Edit  WorkspaceEdit  `json:"edit"`
}

type WorkspaceEdit struct {
	Changes map[DocumentURI][]TextEdit `json:"changes,omitempty"`
}

type ApplyWorkspaceEditResult struct {
	Applied       bool   `json:"applied"`
	FailureReason string `json:"failureReason,omitempty"`
}

// DidChangeWatchedFilesParams reports filesystem changes the editor
// observed; this proxy filters out any event whose URI falls under the
// `.proxy/` debug-artifact directory before forwarding; spec.md's
// SUPPLEMENTED "fsnotify watch" feature double-checks this filter from
// the proxy's own side as a belt-and-suspenders guard.
type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

type FileEvent struct {
	URI  DocumentURI   `json:"uri"`
	Type FileChangeType `json:"type"`
}

type FileChangeType uint32

const (
	FileChangeCreated FileChangeType = 1
	FileChangeChanged FileChangeType = 2
	FileChangeDeleted FileChangeType = 3
)

// ShowMessageParams is used by the workspace-references engine to
// surface a partial-failure warning (spec.md §4.J step 4) without
// failing the whole request.
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type MessageType uint32

const (
	MessageError   MessageType = 1
	MessageWarning MessageType = 2
	MessageInfo    MessageType = 3
	MessageLog     MessageType = 4
)

// ProgressParams carries a $/progress notification's payload; Value is
// one of WorkDoneProgressBegin/Report/End, left as raw JSON since this
// proxy only relays or originates these, never interprets a peer's.
type ProgressParams struct {
	Token ProgressToken   `json:"token"`
	Value json.RawMessage `json:"value"`
}

type WorkDoneProgressBegin struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Cancellable bool   `json:"cancellable,omitempty"`
	Message     string `json:"message,omitempty"`
	Percentage  uint32 `json:"percentage,omitempty"`
}

type WorkDoneProgressReport struct {
	Kind        string `json:"kind"`
	Cancellable bool   `json:"cancellable,omitempty"`
	Message     string `json:"message,omitempty"`
	Percentage  uint32 `json:"percentage,omitempty"`
}

type WorkDoneProgressEnd struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}
