package protocol

import "encoding/json"

// InitializeParams is the client's `initialize` request payload. Only the
// fields this proxy reads are modeled; InitializationOptions is kept as
// raw JSON, untouched.
type InitializeParams struct {
	ProcessID             *int32          `json:"processId,omitempty"`
	RootURI               *DocumentURI    `json:"rootUri,omitempty"`
	WorkspaceFolders      []WorkspaceFolder `json:"workspaceFolders,omitempty"`
	InitializationOptions json.RawMessage `json:"initializationOptions,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
}

// WorkspaceFolder is one root folder the editor has open.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// ClientCapabilities is passed through to the downstream server verbatim;
// this proxy does not filter or rewrite it (spec.md Non-goals).
type ClientCapabilities struct {
	Workspace    json.RawMessage `json:"workspace,omitempty"`
	TextDocument json.RawMessage `json:"textDocument,omitempty"`
	Window       json.RawMessage `json:"window,omitempty"`
}

// InitializeResult is the downstream server's reply, re-sent to the
// editor with this proxy's own name substituted in ServerInfo.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities is decoded loosely (most fields are left as raw
// provider-specific option blobs) since this proxy's job is to forward
// them, not to interpret most of them; Supports inspects the few that
// drive proxy behavior (definition, references, hover, completion).
type ServerCapabilities struct {
	HoverProvider               *json.RawMessage `json:"hoverProvider,omitempty"`
	DefinitionProvider          *json.RawMessage `json:"definitionProvider,omitempty"`
	ReferencesProvider          *json.RawMessage `json:"referencesProvider,omitempty"`
	CompletionProvider          *json.RawMessage `json:"completionProvider,omitempty"`
	CodeActionProvider          *json.RawMessage `json:"codeActionProvider,omitempty"`
	SemanticTokensProvider      *json.RawMessage `json:"semanticTokensProvider,omitempty"`
	FoldingRangeProvider        *json.RawMessage `json:"foldingRangeProvider,omitempty"`
	TextDocumentSync            *json.RawMessage `json:"textDocumentSync,omitempty"`
	WorkspaceSymbolProvider     *json.RawMessage `json:"workspaceSymbolProvider,omitempty"`
}

// Supports reports whether a capability block for the given LSP method
// is present and not explicitly false, matching the teacher's
// `lsp/protocol/extensions.go` ServerCapabilities.Supports shape.
func (sc ServerCapabilities) Supports(method string) bool {
	var raw *json.RawMessage
	switch method {
	case "textDocument/hover":
		raw = sc.HoverProvider
	case "textDocument/definition":
		raw = sc.DefinitionProvider
	case "textDocument/references":
		raw = sc.ReferencesProvider
	case "textDocument/completion":
		raw = sc.CompletionProvider
	case "textDocument/codeAction":
		raw = sc.CodeActionProvider
	case "textDocument/semanticTokens/full", "textDocument/semanticTokens/range":
		raw = sc.SemanticTokensProvider
	case "textDocument/foldingRange":
		raw = sc.FoldingRangeProvider
	case "workspace/symbol":
		raw = sc.WorkspaceSymbolProvider
	default:
		return false
	}
	if raw == nil {
		return false
	}
	var asBool bool
	if err := json.Unmarshal(*raw, &asBool); err == nil {
		return asBool
	}
	// any non-bool JSON value (an options object) counts as enabled.
	return string(*raw) != "null"
}
