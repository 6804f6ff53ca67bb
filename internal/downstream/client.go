package downstream

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/go-logr/logr"

	"github.com/glscript-lang/lsp-proxy/internal/jsonrpc2"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

// Config is everything needed to spawn and hand-shake with the
// downstream language server, equivalent to the teacher's
// LSPServiceClientConfig minus the provider-plugin fields this proxy
// has no use for (one fixed downstream collaborator, not a plugin
// registry).
type Config struct {
	ServerPath            string
	ServerArgs            []string
	RootURI               protocol.DocumentURI
	InitializationOptions json.RawMessage
}

// symbolCacheSize bounds the workspace-symbol LRU; matches the
// teacher's symbol_cache.go default capacity.
const symbolCacheSize = 512

// Client wraps one downstream jsonrpc2.Conn plus the pieces
// LSPServiceClientBase bundled alongside it: a diagnostics AwaitCache
// (§4.I "Diagnostics") and a workspace-symbol LRU cache, generalized
// from lsp/base_service_client/{base_service_client,document_symbol_cache,symbol_cache}.go.
// Unlike the teacher, Client has no Evaluate/FuncMap rule-engine layer:
// spec.md has no rule conditions to evaluate.
type Client struct {
	Log          logr.Logger
	Conn         *jsonrpc2.Conn
	Capabilities protocol.ServerCapabilities
	ServerInfo   *protocol.ServerInfo

	Diagnostics *AwaitCache[protocol.DocumentURI, protocol.PublishDiagnosticsParams]
	symbolCache *lru.Cache[string, []protocol.SymbolInformation]

	dialer *jsonrpc2.CmdDialer
}

// Dial spawns the downstream server, wires it into a jsonrpc2.Conn
// ahead of extraHandler (e.g. the proxy's own request router, so the
// router sees requests the Client itself doesn't special-case), runs
// the connection, and performs the initialize/initialized handshake.
func Dial(ctx context.Context, log logr.Logger, cfg Config, extraHandler jsonrpc2.Handler) (*Client, error) {
	dialer, err := jsonrpc2.NewCmdDialer(ctx, cfg.ServerPath, cfg.ServerArgs...)
	if err != nil {
		return nil, fmt.Errorf("downstream: spawn %s: %w", cfg.ServerPath, err)
	}

	cache, err := lru.New[string, []protocol.SymbolInformation](symbolCacheSize)
	if err != nil {
		return nil, fmt.Errorf("downstream: symbol cache: %w", err)
	}

	c := &Client{
		Log:         log.WithValues("component", "downstream"),
		Conn:        jsonrpc2.NewConn(jsonrpc2.NewHeaderStream(dialer, dialer), log),
		Diagnostics: NewAwaitCache[protocol.DocumentURI, protocol.PublishDiagnosticsParams](),
		symbolCache: cache,
		dialer:      dialer,
	}

	c.Conn.AddHandler(jsonrpc2.NewBackoffHandler(c.Log))
	if extraHandler != nil {
		c.Conn.AddHandler(extraHandler)
	}
	c.Conn.AddHandler(jsonrpc2.HandlerFunc(c.handle))

	go func() {
		if err := c.Conn.Run(ctx); err != nil {
			c.Log.V(2).Info("downstream connection closed", "error", err)
		}
	}()

	rootURI := cfg.RootURI
	pid := int32(os.Getpid())
	params := protocol.InitializeParams{
		ProcessID:             &pid,
		RootURI:               &rootURI,
		InitializationOptions: cfg.InitializationOptions,
	}
	var result protocol.InitializeResult
	if err := c.Conn.Call(ctx, "initialize", params, &result); err != nil {
		return nil, fmt.Errorf("downstream: initialize: %w", err)
	}
	c.Capabilities = result.Capabilities
	c.ServerInfo = result.ServerInfo

	if err := c.Conn.Notify(ctx, "initialized", struct{}{}); err != nil {
		return nil, fmt.Errorf("downstream: initialized: %w", err)
	}
	return c, nil
}

// handle intercepts textDocument/publishDiagnostics notifications into
// the Diagnostics AwaitCache; every other method is left for
// extraHandler (added to the chain before this one, so tried after it)
// or reported unhandled.
func (c *Client) handle(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	if req.Method != "textDocument/publishDiagnostics" {
		return nil, jsonrpc2.ErrNotHandled
	}
	var params protocol.PublishDiagnosticsParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, err
	}
	c.Diagnostics.Set(params.URI, params)
	return nil, nil
}

// CachedWorkspaceSymbols returns a previously cached workspace/symbol
// result for query, if present.
func (c *Client) CachedWorkspaceSymbols(query string) ([]protocol.SymbolInformation, bool) {
	return c.symbolCache.Get(query)
}

// CacheWorkspaceSymbols remembers a workspace/symbol result for query.
func (c *Client) CacheWorkspaceSymbols(query string, symbols []protocol.SymbolInformation) {
	c.symbolCache.Add(query, symbols)
}

// Stop shuts down the downstream process.
func (c *Client) Stop() error {
	return c.Conn.Close()
}
