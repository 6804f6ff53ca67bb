// Package store implements the document and build stores (components F
// and G), grounded on original_source/src/state/{document,build,mod}.rs:
// per-file rope buffers with lazy loading and canonicalized path/URI
// memoization, and per-path bundle/transpile builds with a monotonic
// version counter.
package store

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

// Document is one open-or-cached file: its canonical Source identity,
// its mutable text buffer, the latest tokenization of that buffer, and
// a transpile hash used to short-circuit the change pipeline (§3
// "Document", §4.F).
type Document struct {
	URI           protocol.DocumentURI
	Source        source.Source
	Version       int32
	Buffer        *Rope
	Parse         *token.Parse
	TranspileHash uint64
}

func newDocument(uri protocol.DocumentURI, src source.Source, text string) *Document {
	d := &Document{URI: uri, Source: src, Buffer: NewRope(text)}
	d.reparse()
	return d
}

func (d *Document) reparse() {
	text := d.Buffer.String()
	p := token.Tokenize(text)
	d.Parse = &p
	d.TranspileHash = transpileHash(&p)
}

// transpileHash hashes only the IncludePath, RegionOpen, and RegionClose
// tokens' text, in order: edits entirely inside a Common run leave every
// token of these three kinds untouched, so the hash is unchanged (§4.F
// "unchanged when edits fall entirely outside these token ranges").
func transpileHash(p *token.Parse) uint64 {
	h := xxhash.New()
	for _, tok := range p.Tokens {
		switch tok.Kind {
		case token.IncludePath, token.RegionOpen, token.RegionClose:
			_, _ = h.WriteString(tok.Text)
			_, _ = h.Write([]byte{0})
		}
	}
	return h.Sum64()
}

// Documents is the document store: a canonicalized-path-keyed cache of
// Documents, memoizing URI↔Source both directions (§4.F).
type Documents struct {
	mu          sync.RWMutex
	root        string
	byURI       map[protocol.DocumentURI]*Document
	sourceToURI map[source.Source]protocol.DocumentURI
}

// NewDocuments returns an empty store rooted at root (used to derive
// each file's project-relative Source).
func NewDocuments(root string) *Documents {
	return &Documents{
		root:        root,
		byURI:       make(map[protocol.DocumentURI]*Document),
		sourceToURI: make(map[source.Source]protocol.DocumentURI),
	}
}

// Root returns the project root Sources are relative to.
func (d *Documents) Root() string { return d.root }

// Open creates or replaces the Document at uri from editor-supplied
// text (didOpen), independent of whatever is on disk.
func (d *Documents) Open(uri protocol.DocumentURI, text string) (*Document, error) {
	path, err := filePath(uri)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", uri, err)
	}
	src := source.FromPath(d.root, path)

	d.mu.Lock()
	defer d.mu.Unlock()
	doc := newDocument(uri, src, text)
	d.byURI[uri] = doc
	d.sourceToURI[src] = uri
	return doc, nil
}

// GetDoc returns the cached Document for uri, or reads it from disk via
// readFile, constructs a fresh Document, and caches it (§4.F).
func (d *Documents) GetDoc(uri protocol.DocumentURI, readFile func(path string) (string, error)) (*Document, error) {
	d.mu.RLock()
	if doc, ok := d.byURI[uri]; ok {
		d.mu.RUnlock()
		return doc, nil
	}
	d.mu.RUnlock()

	path, err := filePath(uri)
	if err != nil {
		return nil, fmt.Errorf("store: resolve %s: %w", uri, err)
	}
	text, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	src := source.FromPath(d.root, path)

	d.mu.Lock()
	defer d.mu.Unlock()
	if doc, ok := d.byURI[uri]; ok {
		return doc, nil
	}
	doc := newDocument(uri, src, text)
	d.byURI[uri] = doc
	d.sourceToURI[src] = uri
	return doc, nil
}

// GetBySource resolves src to its cached Document, loading it from disk
// via readFile on first reference.
func (d *Documents) GetBySource(src source.Source, readFile func(path string) (string, error)) (*Document, error) {
	d.mu.RLock()
	if uri, ok := d.sourceToURI[src]; ok {
		doc := d.byURI[uri]
		d.mu.RUnlock()
		return doc, nil
	}
	d.mu.RUnlock()
	return d.GetDoc(fileURI(joinSource(d.root, src)), readFile)
}

// SetDoc applies changes to uri's buffer, reparses, and reports whether
// the transpile-relevant token set changed (§4.F, §4.H step 2).
func (d *Documents) SetDoc(uri protocol.DocumentURI, version int32, changes []protocol.TextDocumentContentChangeEvent) (*Document, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.byURI[uri]
	if !ok {
		return nil, false, fmt.Errorf("store: set_doc on unknown document %s", uri)
	}
	oldHash := doc.TranspileHash
	for _, ch := range changes {
		if ch.IsWholeDocument() {
			doc.Buffer.SetText(ch.Text)
		} else {
			doc.Buffer.Replace(*ch.Range, ch.Text)
		}
	}
	doc.reparse()
	doc.Version = version
	return doc, doc.TranspileHash != oldHash, nil
}

// Close evicts uri's Document (didClose, §4.F/G eviction-on-close).
func (d *Documents) Close(uri protocol.DocumentURI) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if doc, ok := d.byURI[uri]; ok {
		delete(d.byURI, uri)
		delete(d.sourceToURI, doc.Source)
	}
}

// URIForSource returns the URI a Source is currently known under, if
// the document has been opened or loaded at least once.
func (d *Documents) URIForSource(src source.Source) (protocol.DocumentURI, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	uri, ok := d.sourceToURI[src]
	return uri, ok
}

// IsOpen reports whether src has a cached Document, used by the
// workspace-references workspace scan (§4.J step 3) to skip files the
// editor already has open (those are handled by step 5 instead, against
// their live buffer).
func (d *Documents) IsOpen(src source.Source) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.sourceToURI[src]
	return ok
}
