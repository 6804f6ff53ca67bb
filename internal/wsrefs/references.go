// Package wsrefs implements the workspace-references engine (component
// J): given a cursor position, locate its declaration, derive a
// SourcePattern from the declaration's literal text, tree-shake a
// bundle per candidate file across the workspace, and fan out
// references requests to the downstream server in parallel, grounded on
// lsp/base_service_client/base_service_client.go's
// GetAllDeclarations/GetAllReferences/parallelWalk/processFile shape.
//
// wsrefs deliberately does not import internal/lspproxy — it duplicates
// the small slice of the eight-step scaffold (ensureBundle, forward/
// reverse position mapping) it needs so that internal/lspproxy can call
// into wsrefs (for textDocument/rename) without an import cycle.
package wsrefs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/glscript-lang/lsp-proxy/internal/build"
	"github.com/glscript-lang/lsp-proxy/internal/downstream"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/store"
)

// scanConcurrency bounds the parallel workspace walk and the parallel
// tree-shaken build fan-out (§5 "data-parallel thread pool"), played by
// golang.org/x/sync/errgroup's SetLimit rather than a bespoke pool.
const scanConcurrency = 8

// perFileTimeout bounds each unopened-candidate references request
// (§4.J step 4 "5 s per-file timeout").
const perFileTimeout = 5 * time.Second

// ignoredDirs are skipped outright during the workspace walk; this
// proxy carries no gitignore-file parser, so "respecting ignore
// files" is approximated by skipping the handful of directories no JS/TS
// project's source tree legitimately lives under.
var ignoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".proxy":       {},
}

// Engine holds the collaborators a references fan-out needs: the
// document and build stores, the downstream client, and the editor-
// facing connection progress/warnings are reported over.
type Engine struct {
	Log    logr.Logger
	Root   string
	Docs   *store.Documents
	Builds *store.BuildStore
	Down   *downstream.Client
	// Client is the editor-facing connection; used only to emit
	// $/progress and window/showMessage notifications (§4.J steps 4, 7).
	Client        jsonrpc2Notifier
	ReadFile      func(path string) (string, error)
	DefaultSource source.Source
	HasDefault    bool

	// CancelReceived polls the process-wide cancel_received flag
	// (spec.md §5 "Cancellation"); set by internal/lspproxy's
	// $/cancelRequest handler.
	CancelReceived func() bool
}

// jsonrpc2Notifier is the subset of *jsonrpc2.Conn the engine needs,
// named so the field above reads clearly; any *jsonrpc2.Conn satisfies
// it.
type jsonrpc2Notifier interface {
	Notify(ctx context.Context, method string, params interface{}) error
}

// New wires an Engine around its collaborators.
func New(log logr.Logger, root string, docs *store.Documents, builds *store.BuildStore, down *downstream.Client, client jsonrpc2Notifier, readFile func(string) (string, error), defaultSrc source.Source, hasDefault bool, cancelReceived func() bool) *Engine {
	return &Engine{
		Log:            log.WithValues("component", "wsrefs"),
		Root:           root,
		Docs:           docs,
		Builds:         builds,
		Down:           down,
		Client:         client,
		ReadFile:       readFile,
		DefaultSource:  defaultSrc,
		HasDefault:     hasDefault,
		CancelReceived: cancelReceived,
	}
}

// References runs the seven-step algorithm of spec.md §4.J.
//
// Second-request idempotency: some editors immediately re-issue a
// references request with includeDeclaration=false meaning to hide the
// declaration line from an already-rendered result; re-running the
// whole fan-out for that would both be wasteful and could return a
// different result set than what the user is already looking at, so it
// is short-circuited to Ok(null) to preserve the first response.
func (e *Engine) References(ctx context.Context, params protocol.ReferenceParams) ([]protocol.Location, error) {
	if !params.Context.IncludeDeclaration {
		return nil, nil
	}
	uri := params.TextDocument.URI
	doc, err := e.Docs.GetDoc(uri, e.ReadFile)
	if err != nil {
		var result []protocol.Location
		if callErr := e.Down.Conn.Call(ctx, "textDocument/references", params, &result); callErr != nil {
			return nil, fmt.Errorf("wsrefs: downstream: %w", callErr)
		}
		return result, nil
	}

	requesterBundle := e.ensureBundle(uri, doc.Source)

	// Step 1: locate the declaration.
	declResult, err := e.locateDeclaration(ctx, requesterBundle, params.Position)
	if err != nil {
		return nil, err
	}
	if declResult == nil {
		// No definition found; nothing to search for.
		return nil, nil
	}

	if strings.HasSuffix(string(declResult.source), ".d.ts") {
		// Steps 2-4 skipped: forward a plain reference request in
		// bundle coordinates.
		return e.referencesThroughBuild(ctx, requesterBundle, params.Position, doc.Source)
	}

	// Step 2: derive the pattern.
	declDoc, err := e.Docs.GetBySource(declResult.source, e.ReadFile)
	if err != nil {
		return nil, fmt.Errorf("wsrefs: declaration source %s: %w", declResult.source, err)
	}
	literal := declDoc.Buffer.Slice(declResult.selectionRange)
	if strings.TrimSpace(literal) == "" {
		return nil, nil
	}
	pattern := source.Pattern{Literal: literal, SourceOf: declResult.source.Hash()}

	if e.CancelReceived != nil && e.CancelReceived() {
		return nil, nil
	}

	// Step 3: scan the workspace for candidate files.
	candidates, err := e.scanWorkspace(ctx, literal)
	if err != nil {
		return nil, fmt.Errorf("wsrefs: workspace scan: %w", err)
	}

	var (
		mu      sync.Mutex
		results []protocol.Location
		failed  []string
	)
	addResults := func(locs []protocol.Location) {
		mu.Lock()
		results = append(results, locs...)
		mu.Unlock()
	}
	addFailure := func(label string) {
		mu.Lock()
		failed = append(failed, label)
		mu.Unlock()
	}

	total := len(candidates)

	// Step 4: query downstream for each unopened candidate, in parallel.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			if e.CancelReceived != nil && e.CancelReceived() {
				return nil
			}
			locs, err := e.queryCandidate(gctx, candidate, declResult.selectionRange, declResult.source, pattern)
			if err != nil {
				e.Log.V(5).Info("wsrefs: candidate query failed", "source", candidate, "error", err)
				addFailure(string(candidate))
				return nil
			}
			addResults(locs)
			e.reportProgress(ctx, params.WorkDoneToken, i+1, total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("wsrefs: candidate fan-out: %w", err)
	}

	if e.CancelReceived != nil && e.CancelReceived() {
		return nil, nil
	}

	// Step 5: query downstream for each already-open bundle containing
	// the declaration's Source.
	for _, b := range e.Builds.BundlesContainingSource(declResult.source) {
		if e.CancelReceived != nil && e.CancelReceived() {
			return nil, nil
		}
		ownerURI, ok := e.reverseEmitURI(b)
		if !ok {
			continue
		}
		locs, err := e.referencesThroughBuild(ctx, b, declResult.selectionRange.Start, declResult.source)
		if err != nil {
			addFailure(string(ownerURI))
			continue
		}
		addResults(locs)
	}

	// Step 7: dedup, surface partial-failure warning.
	deduped := dedupLocations(results)
	if len(failed) > 0 {
		e.warnPartialFailure(ctx, failed)
	}
	return deduped, nil
}

// declaration is what locateDeclaration extracts from a definition
// response: the declaration's owning Source and its selection range in
// that Source's own coordinates.
type declaration struct {
	source         source.Source
	selectionRange protocol.Range
}

// locateDeclaration issues textDocument/definition at pos (in the
// requester's bundle) and reverse-maps the first result.
func (e *Engine) locateDeclaration(ctx context.Context, b *build.Build, pos protocol.Position) (*declaration, error) {
	emitPos, ok := b.ForwardSrc(pos, b.Target)
	if !ok {
		return nil, fmt.Errorf("wsrefs: position does not map into the current build")
	}
	var result []protocol.LocationLink
	params := protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: b.EmitURI},
			Position:     emitPos,
		},
	}
	if err := e.Down.Conn.Call(ctx, "textDocument/definition", params, &result); err != nil {
		return nil, fmt.Errorf("wsrefs: definition: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}
	target := result[0]
	selRange := target.TargetSelectionRange
	targetBuild, ok := e.Builds.GetAnyBuildByEmitURI(target.TargetURI)
	if !ok {
		// A direct (non-synthesized) target, e.g. a .d.ts lib file
		// resolved straight by the downstream server.
		return &declaration{source: source.FromPath(e.Root, uriToPath(target.TargetURI)), selectionRange: selRange}, nil
	}
	r, src, ok := targetBuild.ForwardBuildRange(selRange)
	if !ok {
		return nil, nil
	}
	return &declaration{source: src, selectionRange: r}, nil
}

// ensureBundle mirrors internal/lspproxy.Proxy.ensureBundle's cache-or-
// build step without depending on it (see package doc): the caller has
// already loaded the Document, so there is no disk-read failure mode to
// fall back from here.
func (e *Engine) ensureBundle(uri protocol.DocumentURI, src source.Source) *build.Build {
	if b, ok := e.Builds.GetBundle(uri); ok {
		return b
	}
	return e.Builds.SetBundle(uri, src, store.EmitURIFor(e.Root, src))
}

// referencesThroughBuild forwards pos (in src's own coordinates) into
// b's emit coordinates and issues a references request, reverse-mapping
// every result.
func (e *Engine) referencesThroughBuild(ctx context.Context, b *build.Build, pos protocol.Position, src source.Source) ([]protocol.Location, error) {
	emitPos, ok := b.ForwardSrc(pos, src)
	if !ok {
		return nil, fmt.Errorf("wsrefs: position does not map into build %s", b.EmitURI)
	}
	var result []protocol.Location
	params := protocol.ReferenceParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: b.EmitURI},
			Position:     emitPos,
		},
		Context: protocol.ReferenceContext{IncludeDeclaration: true},
	}
	if err := e.Down.Conn.Call(ctx, "textDocument/references", params, &result); err != nil {
		return nil, fmt.Errorf("wsrefs: references: %w", err)
	}
	return e.reverseLocations(result), nil
}

// reverseLocations maps each downstream Location back to source
// coordinates, dropping results that land in a generated region or in
// the default document (no user-meaningful location to report there).
func (e *Engine) reverseLocations(locs []protocol.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		b, ok := e.Builds.GetAnyBuildByEmitURI(loc.URI)
		if !ok {
			out = append(out, loc)
			continue
		}
		r, src, ok := b.ForwardBuildRange(loc.Range)
		if !ok {
			continue
		}
		if e.HasDefault && src == e.DefaultSource {
			continue
		}
		uri, ok := e.Docs.URIForSource(src)
		if !ok {
			uri = store.SourceURI(e.Root, src)
		}
		out = append(out, protocol.Location{URI: uri, Range: r})
	}
	return out
}

// queryCandidate builds a tree-shaken bundle for candidate under a
// temporary URI, opens its emitted content as a document with the
// downstream server under a temporary emit URI (spec.md §4.J step 4
// "open the synthesized bundle under a temporary URI"), queries
// references, and tears the temporary downstream document and the build
// down on every exit path (§5 "Scoped resources").
func (e *Engine) queryCandidate(ctx context.Context, candidate source.Source, declSelRange protocol.Range, declSrc source.Source, pattern source.Pattern) ([]protocol.Location, error) {
	tempURI := protocol.DocumentURI(fmt.Sprintf("file:///.virtual/%s.js", uuid.NewString()))
	tempEmitURI := protocol.DocumentURI(fmt.Sprintf("file:///.virtual/refs-%s.js", uuid.NewString()))

	b := e.Builds.SetBundleWithPattern(tempURI, candidate, tempEmitURI, pattern)
	defer e.Builds.CloseBuild(tempURI)

	if !b.Contains(declSrc) {
		// Tree shaking decided this candidate's bundle can't reach the
		// declaration after all (the literal occurred in an unrelated
		// region); nothing to query.
		return nil, nil
	}

	fileCtx, cancel := context.WithTimeout(ctx, perFileTimeout)
	defer cancel()

	if err := e.Down.Conn.Notify(fileCtx, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        tempEmitURI,
			LanguageID: "javascript",
			Version:    1,
			Text:       b.Content,
		},
	}); err != nil {
		return nil, fmt.Errorf("didOpen %s: %w", tempEmitURI, err)
	}
	defer func() {
		_ = e.Down.Conn.Notify(context.Background(), "textDocument/didClose", protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: tempEmitURI},
		})
	}()

	return e.referencesThroughBuild(fileCtx, b, declSelRange.Start, declSrc)
}

// scanWorkspace walks the project root for .js/.d.ts files not already
// open whose text contains literal, in parallel (grounded on
// parallelWalk/processFile in base_service_client.go, generalized from a
// user regex query to a plain literal-containment test and from raw
// goroutines+channels to an errgroup).
func (e *Engine) scanWorkspace(ctx context.Context, literal string) ([]source.Source, error) {
	var (
		mu      sync.Mutex
		matches []source.Source
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	walkErr := filepath.Walk(e.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if _, skip := ignoredDirs[info.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !isCandidateExt(path) {
			return nil
		}
		src := source.FromPath(e.Root, path)
		if e.Docs.IsOpen(src) {
			return nil
		}
		g.Go(func() error {
			if gctx.Err() != nil || (e.CancelReceived != nil && e.CancelReceived()) {
				return nil
			}
			content, err := e.ReadFile(path)
			if err != nil {
				return nil
			}
			if strings.Contains(content, literal) {
				mu.Lock()
				matches = append(matches, src)
				mu.Unlock()
			}
			return nil
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matches, nil
}

// uriToPath converts a file:// DocumentURI this package never opened
// through internal/store (so store's own canonicalization isn't
// available) into a plain filesystem path good enough for
// source.FromPath's extension check and display label — e.g. a .d.ts
// library file the downstream server resolved directly rather than one
// of this proxy's own synthesized emit files.
func uriToPath(u protocol.DocumentURI) string {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return string(u)
	}
	if decoded, err := url.PathUnescape(parsed.Path); err == nil {
		return filepath.FromSlash(decoded)
	}
	return filepath.FromSlash(parsed.Path)
}

func isCandidateExt(path string) bool {
	return strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".d.ts")
}

func (e *Engine) reverseEmitURI(b *build.Build) (protocol.DocumentURI, bool) {
	uri, ok := e.Docs.URIForSource(b.Target)
	if !ok {
		return "", false
	}
	return uri, true
}

// reportProgress emits a $/progress notification carrying a
// WorkDoneProgressReport, if the client supplied a token (§4.J step 4).
func (e *Engine) reportProgress(ctx context.Context, token *protocol.ProgressToken, done, total int) {
	if token == nil || e.Client == nil || total == 0 {
		return
	}
	value, err := json.Marshal(protocol.WorkDoneProgressReport{
		Kind:       "report",
		Percentage: uint32(done * 100 / total),
		Message:    fmt.Sprintf("%d/%d files", done, total),
	})
	if err != nil {
		return
	}
	_ = e.Client.Notify(ctx, "$/progress", protocol.ProgressParams{Token: *token, Value: value})
}

// warnPartialFailure surfaces a window/showMessage warning listing the
// files that failed to sync during the fan-out (§4.J step 7,
// spec.md §7 "SyncFailure"), without failing the overall request.
func (e *Engine) warnPartialFailure(ctx context.Context, failed []string) {
	if e.Client == nil {
		return
	}
	msg := fmt.Sprintf("workspace references: %d file(s) could not be searched: %s", len(failed), strings.Join(failed, ", "))
	_ = e.Client.Notify(ctx, "window/showMessage", protocol.ShowMessageParams{Type: protocol.MessageWarning, Message: msg})
}

// dedupLocations implements spec.md §4.J step 7: dedup by canonicalized
// URI + range.
func dedupLocations(locs []protocol.Location) []protocol.Location {
	seen := make(map[string]struct{}, len(locs))
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		key := string(loc.URI) + fmt.Sprintf("|%d:%d-%d:%d", loc.Range.Start.Line, loc.Range.Start.Character, loc.Range.End.Line, loc.Range.End.Character)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, loc)
	}
	return out
}
