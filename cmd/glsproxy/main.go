// Command glsproxy is the LSP proxy's entrypoint: it speaks LSP to an
// editor over stdio on one side and drives a downstream JS/TS language
// server, spawned as a child process, on the other (spec.md §6 "CLI").
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/glscript-lang/lsp-proxy/internal/changes"
	"github.com/glscript-lang/lsp-proxy/internal/config"
	"github.com/glscript-lang/lsp-proxy/internal/downstream"
	"github.com/glscript-lang/lsp-proxy/internal/jsonrpc2"
	"github.com/glscript-lang/lsp-proxy/internal/lspproxy"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/store"
	"github.com/glscript-lang/lsp-proxy/internal/wsrefs"
)

func main() {
	cmd := config.Command(run)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := config.NewLogger(cfg.LogLevel)

	editorDialer := jsonrpc2.NewStdDialer(os.Stdin, os.Stdout)
	editorStream := jsonrpc2.NewHeaderStream(editorDialer, editorDialer)
	editorConn := jsonrpc2.NewConn(editorStream, log)

	r := &router{cfg: cfg, log: log, editorConn: editorConn}
	editorConn.AddHandler(jsonrpc2.HandlerFunc(r.handleEditor))

	runErr := editorConn.Run(context.Background())
	if r.down != nil {
		_ = r.down.Stop()
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	if runErr != nil {
		return fmt.Errorf("glsproxy: editor connection: %w", runErr)
	}
	if code := r.exitCode.Load(); code != 0 {
		os.Exit(int(code))
	}
	return nil
}

// router dispatches both directions of traffic once the downstream
// server is dialed: handleEditor services requests/notifications the
// editor sends this process, handleDownstream services the few
// requests/notifications the downstream server originates itself
// (spec.md §4.I/§6). Its collaborators do not exist until the editor's
// initialize request supplies the workspace root.
type router struct {
	cfg        config.Config
	log        logr.Logger
	editorConn *jsonrpc2.Conn

	initMu  sync.Mutex
	proxy   *lspproxy.Proxy
	refs    *wsrefs.Engine
	docs    *store.Documents
	builds  *store.BuildStore
	down    *downstream.Client
	watcher *config.ProxyDirWatcher

	shuttingDown atomic.Bool
	exitCode     atomic.Int32
}

// globalScriptOptions is the shape of initializationOptions.proxy, the
// one project-specific setting this proxy reads for itself rather than
// merely forwarding (spec.md §6 "Configuration").
type globalScriptOptions struct {
	Proxy struct {
		GlobalScript string `json:"globalScript"`
	} `json:"proxy"`
}

// serverNotInitialized matches the LSP spec's reserved error code for a
// request that arrived before initialize completed.
const serverNotInitialized = -32002

func (r *router) ready() *lspproxy.Proxy {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	return r.proxy
}

func (r *router) handleEditor(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	if req.Method == "initialize" {
		return r.initialize(ctx, req)
	}
	if req.Method == "initialized" {
		return nil, nil
	}

	p := r.ready()
	if p == nil {
		return nil, jsonrpc2.NewErrorf(serverNotInitialized, "glsproxy: %s received before initialize", req.Method)
	}

	switch req.Method {
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		_, err := r.docs.Open(params.TextDocument.URI, params.TextDocument.Text)
		return nil, err

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		doc, transpileChanged, err := r.docs.SetDoc(params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges)
		if err != nil {
			return nil, err
		}
		p.Changes.Enqueue(doc.Source, transpileChanged, params.ContentChanges)
		return nil, nil

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		r.closeDoc(ctx, params.TextDocument.URI)
		return nil, nil

	case "textDocument/didSave":
		var params protocol.DidSaveTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		r.forwardSave(ctx, params)
		return nil, nil

	case "workspace/didChangeWatchedFiles":
		var params protocol.DidChangeWatchedFilesParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		filtered := p.FilterWatchedFiles(params)
		return nil, r.down.Conn.Notify(ctx, req.Method, filtered)

	case "textDocument/hover":
		var params protocol.HoverParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.Hover(ctx, params) })

	case "textDocument/definition":
		var params protocol.DefinitionParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.Definition(ctx, params) })

	case "textDocument/references":
		var params protocol.ReferenceParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) {
			p.ResetCancelReceived()
			return r.refs.References(ctx, params)
		})

	case "textDocument/completion":
		var params protocol.CompletionParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.Completion(ctx, params) })

	case "completionItem/resolve":
		var params protocol.CompletionItem
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.CompletionResolve(ctx, params) })

	case "textDocument/rename":
		var params protocol.RenameParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.Rename(ctx, params) })

	case "textDocument/prepareRename":
		var params protocol.PrepareRenameParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.PrepareRename(ctx, params) })

	case "textDocument/signatureHelp":
		var params protocol.SignatureHelpParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.SignatureHelp(ctx, params) })

	case "textDocument/codeAction":
		var params protocol.CodeActionParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.CodeAction(ctx, params) })

	case "textDocument/semanticTokens/full":
		var params protocol.SemanticTokensParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.SemanticTokensFull(ctx, params) })

	case "textDocument/foldingRange":
		var params protocol.FoldingRangeParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.FoldingRange(ctx, params) })

	case "textDocument/documentSymbol":
		var params protocol.DocumentSymbolParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.DocumentSymbol(ctx, params) })

	case "textDocument/selectionRange":
		var params protocol.SelectionRangeParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.SelectionRange(ctx, params) })

	case "textDocument/inlayHint":
		var params protocol.InlayHintParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.InlayHint(ctx, params) })

	case "textDocument/formatting":
		var params protocol.FormattingParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.Formatting(ctx, params) })

	case "textDocument/rangeFormatting":
		var params protocol.RangeFormattingParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.RangeFormatting(ctx, params) })

	case "textDocument/codeLens":
		var params protocol.CodeLensParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.CodeLens(ctx, params) })

	case "workspace/executeCommand":
		var params protocol.ExecuteCommandParams
		return unmarshalAndCall(req, &params, func() (interface{}, error) { return p.ExecuteCommand(ctx, params) })

	case "workspace/symbol":
		var params protocol.WorkspaceSymbolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return r.workspaceSymbol(ctx, params)

	case "$/cancelRequest":
		p.SetCancelReceived()
		return nil, nil

	case "shutdown":
		r.shuttingDown.Store(true)
		var result interface{}
		_ = r.down.Conn.Call(ctx, "shutdown", nil, &result)
		return nil, nil

	case "exit":
		_ = r.down.Conn.Notify(ctx, "exit", nil)
		if r.shuttingDown.Load() {
			r.exitCode.Store(0)
		} else {
			r.exitCode.Store(1)
		}
		go func() { _ = r.editorConn.Close() }()
		return nil, nil

	default:
		r.log.V(1).Info("unhandled editor method", "method", req.Method)
		return nil, nil
	}
}

// unmarshalAndCall decodes req.Params into params and, on success, runs
// call; kept as a helper so every position/range request in the switch
// above reads as one line instead of a repeated unmarshal-then-call
// block.
func unmarshalAndCall(req *jsonrpc2.Request, params interface{}, call func() (interface{}, error)) (interface{}, error) {
	if err := json.Unmarshal(req.Params, params); err != nil {
		return nil, err
	}
	return call()
}

// closeDoc evicts uri's Document and Build(s) and, if a downstream emit
// file existed for it, tells the downstream server to forget it too.
func (r *router) closeDoc(ctx context.Context, uri protocol.DocumentURI) {
	var emitURI protocol.DocumentURI
	if b, ok := r.builds.GetBundle(uri); ok {
		emitURI = b.EmitURI
	} else if b, ok := r.builds.GetTranspile(uri); ok {
		emitURI = b.EmitURI
	}
	r.docs.Close(uri)
	r.builds.CloseBuild(uri)
	if emitURI != "" {
		_ = r.down.Conn.Notify(ctx, "textDocument/didClose", protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: emitURI},
		})
	}
}

// forwardSave relays didSave against whichever emit file currently
// backs uri; a document with no build yet has nothing for the
// downstream server to save, so the notification is dropped.
func (r *router) forwardSave(ctx context.Context, params protocol.DidSaveTextDocumentParams) {
	uri := params.TextDocument.URI
	var emitURI protocol.DocumentURI
	if b, ok := r.builds.GetBundle(uri); ok {
		emitURI = b.EmitURI
	} else if b, ok := r.builds.GetTranspile(uri); ok {
		emitURI = b.EmitURI
	}
	if emitURI == "" {
		return
	}
	_ = r.down.Conn.Notify(ctx, "textDocument/didSave", protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: emitURI},
		Text:         params.Text,
	})
}

func (r *router) workspaceSymbol(ctx context.Context, params protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	if cached, ok := r.down.CachedWorkspaceSymbols(params.Query); ok {
		return cached, nil
	}
	var result []protocol.SymbolInformation
	if err := r.down.Conn.Call(ctx, "workspace/symbol", params, &result); err != nil {
		return nil, lspproxy.DownstreamError(err)
	}
	r.down.CacheWorkspaceSymbols(params.Query, result)
	return result, nil
}

// initialize dials the downstream server (using this process's own
// CLI-supplied command) and assembles every collaborator a request
// handler needs; this is deferred until now because they all need the
// workspace root, which only the editor's initialize request (or
// --root) supplies.
func (r *router) initialize(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, err
	}

	root := r.cfg.RootOverride
	if root == "" {
		if params.RootURI == nil {
			return nil, jsonrpc2.NewErrorf(jsonrpc2.CodeInvalidParams, "glsproxy: initialize sent no rootUri and no --root was given")
		}
		resolved, err := store.PathFromURI(*params.RootURI)
		if err != nil {
			return nil, fmt.Errorf("glsproxy: resolve rootUri: %w", err)
		}
		root = resolved
	}
	var rootURI protocol.DocumentURI
	if params.RootURI != nil {
		rootURI = *params.RootURI
	}

	var defaultSrc source.Source
	hasDefault := false
	if len(params.InitializationOptions) > 0 {
		var opts globalScriptOptions
		if err := json.Unmarshal(params.InitializationOptions, &opts); err == nil && opts.Proxy.GlobalScript != "" {
			defaultSrc = source.Source(opts.Proxy.GlobalScript)
			hasDefault = true
		}
	}

	readFile := func(path string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	docs := store.NewDocuments(root)
	builds := store.NewBuildStore(docs, readFile, defaultSrc, hasDefault)
	builds.SetDebug(r.cfg.Debug)
	pipeline := changes.New(builds)

	down, err := downstream.Dial(ctx, r.log, downstream.Config{
		ServerPath:            r.cfg.DownstreamCommand[0],
		ServerArgs:            r.cfg.DownstreamCommand[1:],
		RootURI:               rootURI,
		InitializationOptions: params.InitializationOptions,
	}, jsonrpc2.HandlerFunc(r.handleDownstream))
	if err != nil {
		return nil, fmt.Errorf("glsproxy: dial downstream: %w", err)
	}

	proxy := lspproxy.New(r.log, root, docs, builds, pipeline, down, readFile, defaultSrc, hasDefault)
	proxy.Debug = r.cfg.Debug
	proxy.EditorNotify = r.editorConn.Notify
	refs := wsrefs.New(r.log, root, docs, builds, down, r.editorConn, readFile, defaultSrc, hasDefault, proxy.CancelReceived)
	proxy.Refs = refs

	watcher, err := config.WatchProxyDir(root, r.log)
	if err != nil {
		r.log.V(2).Info("could not start .proxy directory watch", "error", err)
	}

	r.initMu.Lock()
	r.docs = docs
	r.builds = builds
	r.down = down
	r.refs = refs
	r.proxy = proxy
	r.watcher = watcher
	r.initMu.Unlock()

	return protocol.InitializeResult{
		Capabilities: down.Capabilities,
		ServerInfo:   &protocol.ServerInfo{Name: "glsproxy"},
	}, nil
}

// handleDownstream services requests and notifications the downstream
// server originates itself. textDocument/publishDiagnostics is not
// handled here: internal/downstream.Client's own handler intercepts it
// before this handler is ever tried (see lspproxy.Proxy.forwardDiagnostics).
func (r *router) handleDownstream(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	p := r.ready()
	switch req.Method {
	case "window/showMessage", "window/logMessage", "$/progress":
		return nil, r.editorConn.Notify(ctx, req.Method, req.Params)

	case "window/workDoneProgress/create":
		var result interface{}
		if err := r.editorConn.Call(ctx, req.Method, req.Params, &result); err != nil {
			return nil, err
		}
		return result, nil

	case "workspace/applyEdit":
		if p == nil {
			return nil, jsonrpc2.ErrNotHandled
		}
		var params protocol.ApplyWorkspaceEditParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		remapped, refused := p.RemapApplyEdit(params)
		if refused != nil {
			return refused, nil
		}
		var result protocol.ApplyWorkspaceEditResult
		if err := r.editorConn.Call(ctx, req.Method, remapped, &result); err != nil {
			return nil, err
		}
		return result, nil

	default:
		return nil, jsonrpc2.ErrNotHandled
	}
}
