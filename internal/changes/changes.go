// Package changes implements the lazy change pipeline (component H):
// keystroke edits are deferred to the next request boundary instead of
// triggering an immediate rebuild-and-forward per edit, grounded on
// original_source/src/state/lazy_build_changes.rs.
package changes

import (
	"fmt"
	"sync"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/store"
)

// docChange is one queued edit against the document that originated
// it, tagged with whether the edit changed the document's
// transpile-relevant token set.
type docChange struct {
	source           source.Source
	edits            []protocol.TextDocumentContentChangeEvent
	transpileChanged bool
}

// Pipeline holds, per requesting path, the queue of document edits not
// yet folded into that path's bundle, and the resulting build-side
// edits not yet dispatched downstream (§4.H).
type Pipeline struct {
	mu                sync.Mutex
	builds            *store.BuildStore
	pendingDocChanges map[protocol.DocumentURI][]docChange
	pendingBuildEdits map[protocol.DocumentURI][]protocol.TextDocumentContentChangeEvent
}

// New returns an empty Pipeline over builds.
func New(builds *store.BuildStore) *Pipeline {
	return &Pipeline{
		builds:            builds,
		pendingDocChanges: make(map[protocol.DocumentURI][]docChange),
		pendingBuildEdits: make(map[protocol.DocumentURI][]protocol.TextDocumentContentChangeEvent),
	}
}

// Enqueue fans a document edit out to every path whose bundle currently
// includes src (§4.H steps 1–3). The caller has already applied the
// edit to the document rope, reparsed, and recomputed the transpile
// hash (that happens in store.Documents.SetDoc, immediately before this
// call); transpileChanged is that call's second return value.
func (p *Pipeline) Enqueue(src source.Source, transpileChanged bool, edits []protocol.TextDocumentContentChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, uri := range p.builds.PathsContainingSource(src) {
		p.pendingDocChanges[uri] = append(p.pendingDocChanges[uri], docChange{
			source:           src,
			edits:            edits,
			transpileChanged: transpileChanged,
		})
	}
}

// Drain folds every queued edit for requestURI into a single bundle
// rebuild, per the §4.H drain procedure: each queued change range is
// forwarded into the current bundle's emit coordinates via
// forward_src_range; if any forward fails, draining aborts (the queue
// is restored) so the next touch of this path retries. A transpile-hash
// change on any queued edit forces a whole-file re-sync instead of an
// incremental one, since transpile-affecting edits can shift content
// the downstream server has no other way to learn about precisely.
func (p *Pipeline) Drain(requestURI protocol.DocumentURI) error {
	p.mu.Lock()
	queued := p.pendingDocChanges[requestURI]
	delete(p.pendingDocChanges, requestURI)
	p.mu.Unlock()

	if len(queued) == 0 {
		return nil
	}

	b, ok := p.builds.GetBundle(requestURI)
	if !ok {
		return fmt.Errorf("changes: no bundle for %s", requestURI)
	}

	var forwarded []protocol.TextDocumentContentChangeEvent
	wholeFile := false
	for _, dc := range queued {
		if dc.transpileChanged {
			wholeFile = true
			continue
		}
		for _, ch := range dc.edits {
			if ch.IsWholeDocument() {
				wholeFile = true
				continue
			}
			fwdRange, ok := b.ForwardSrcRange(*ch.Range, dc.source)
			if !ok {
				p.mu.Lock()
				p.pendingDocChanges[requestURI] = append(queued, p.pendingDocChanges[requestURI]...)
				p.mu.Unlock()
				return fmt.Errorf("changes: forward_src_range failed for %s", dc.source)
			}
			forwarded = append(forwarded, protocol.TextDocumentContentChangeEvent{
				Range: &fwdRange,
				Text:  ch.Text,
			})
		}
	}

	newBuild := p.builds.SetBundle(requestURI, b.Target, b.EmitURI)

	p.mu.Lock()
	defer p.mu.Unlock()
	if wholeFile {
		p.pendingBuildEdits[requestURI] = append(p.pendingBuildEdits[requestURI], protocol.TextDocumentContentChangeEvent{
			Text: newBuild.Content,
		})
	} else {
		p.pendingBuildEdits[requestURI] = append(p.pendingBuildEdits[requestURI], forwarded...)
	}
	return nil
}

// Commit pops and returns requestURI's pendingBuildEdits in order, for
// the caller to dispatch as downstream did_change notifications tagged
// with the bundle's emit_uri and new version (§4.H "commit"). The
// caller is responsible for first calling Drain on every path it knows
// about whose queue might be non-empty; Commit itself only pops.
func (p *Pipeline) Commit(requestURI protocol.DocumentURI) []protocol.TextDocumentContentChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	edits := p.pendingBuildEdits[requestURI]
	delete(p.pendingBuildEdits, requestURI)
	return edits
}
