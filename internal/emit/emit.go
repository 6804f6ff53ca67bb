// Package emit implements the three-pass emitter (component D): bundle
// and transpile composition over the include graph, with cycle
// detection, region rewriting, and pattern-guided tree shaking, grounded
// on original_source/src/builder/emit/{mod,content,source_map,prepare}.rs.
package emit

import (
	"strings"

	"github.com/glscript-lang/lsp-proxy/internal/ident"
	"github.com/glscript-lang/lsp-proxy/internal/sourcemap"
	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

// Registry is everything the emitter needs from the document store,
// kept as an interface so this package does not import internal/store
// (which in turn depends on internal/build, which depends on this
// package).
type Registry interface {
	// Tokens returns the latest parse for src, if the document is known.
	Tokens(src source.Source) (*token.Parse, bool)
	// Resolve turns an include-path literal written inside from into the
	// Source it names, if resolvable.
	Resolve(from source.Source, literal string) (source.Source, bool)
	// Default returns the project-wide preamble document, if configured
	// (initializationOptions.proxy.globalScript, §6 "Configuration").
	Default() (source.Source, bool)
	// MayContainPattern reports whether src's subtree could possibly
	// contribute a match for pattern; used by tree-shaken bundles to
	// skip subtrees a prior build already proved irrelevant (§4.D
	// "Pattern tracking", design notes "pattern-driven tree shaking").
	// A Registry with no such knowledge should always return true.
	MayContainPattern(src source.Source, pattern source.Pattern) bool
}

// Options selects one of the three operating modes from §4.D's table.
type Options struct {
	// ResolveDeps: true for Bundle and Tree-shaken bundle, false for
	// Transpile.
	ResolveDeps bool
	// Pattern, when non-nil, makes this a tree-shaken bundle.
	Pattern *source.Pattern
	// Debug enables dev-artifact emission (caller writes the artifact;
	// this package only guarantees source contents are retained in the
	// resulting SourceMap when Debug is true).
	Debug bool
}

// Result is everything one Build needs from an emission.
type Result struct {
	Content  string
	SourceMap *sourcemap.SourceMap
	// IncludedSources is the set of Sources that actually contributed
	// mappings (§3 Build invariant iii); IncludedOrder is the same set
	// in first-visited order, which is what hash (§3 Build invariant iv,
	// "changes iff the set of included sources or their ordering
	// changes") is computed from.
	IncludedSources map[source.Source]struct{}
	IncludedOrder   []source.Source
	// PatternSources is the set of hashes this run directly confirmed to
	// contain the pattern literal; VisitedHashes is every hash this run
	// actually inspected (a superset, including ones it confirmed do NOT
	// contain it), plus every dependency it skipped because the Registry
	// reported it cannot contain the pattern. A hash absent from
	// VisitedHashes was never looked at by this run and carries no
	// information either way.
	PatternSources map[source.Hash]struct{}
	VisitedHashes  map[source.Hash]struct{}
}

// Emit runs the emitter over target's transitive include graph,
// preceded by the default document (unless target is the default),
// per §4.D.
func Emit(target source.Source, reg Registry, opts Options) *Result {
	e := &emitter{
		reg:            reg,
		opts:           opts,
		sm:             sourcemap.NewBuilder(),
		visited:        make(map[source.Hash]bool),
		included:       make(map[source.Source]struct{}),
		patternSources: make(map[source.Hash]struct{}),
		contents:       make(map[source.Source]string),
	}
	if def, ok := reg.Default(); ok && def != target {
		e.emitDoc(def)
	}
	e.emitDoc(target)

	visitedHashes := make(map[source.Hash]struct{}, len(e.visited))
	for h := range e.visited {
		visitedHashes[h] = struct{}{}
	}

	return &Result{
		Content:         e.out.String(),
		SourceMap:       e.sm.Finalize(opts.Debug, e.contents),
		IncludedSources: e.included,
		IncludedOrder:   e.includedOrder,
		PatternSources:  e.patternSources,
		VisitedHashes:   visitedHashes,
	}
}

type emitter struct {
	reg  Registry
	opts Options
	sm   *sourcemap.Builder
	out  strings.Builder

	line, col int // current destination position

	visited        map[source.Hash]bool
	included       map[source.Source]struct{}
	includedOrder  []source.Source
	patternSources map[source.Hash]struct{}
	contents       map[source.Source]string
}

// write emits text verbatim, advancing the emitter's destination
// line/column and the underlying source-map builder's line counter in
// lockstep (passes 2 and 3 run together in this implementation, as one
// synchronous walk).
func (e *emitter) write(text string) {
	e.out.WriteString(text)
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			e.col += token.UTF16Len(text)
			return
		}
		e.line++
		e.col = 0
		e.sm.LineBreak()
		text = text[idx+1:]
	}
}

func (e *emitter) mapping(srcID, srcLine, srcCol, dstCol int) {
	e.sm.AddToken(dstCol, srcLine, srcCol, srcID)
}

func (e *emitter) nilMapping(dstCol int) {
	e.sm.AddToken(dstCol, 0, 0, sourcemap.NilSource)
}

func padWord(word string, width int) string {
	if len(word) >= width {
		return word[:width]
	}
	return word + strings.Repeat(" ", width-len(word))
}

// emitDoc emits one document's declaration statement and body, guarded
// by the visited set so a circular include graph terminates (§4.D
// "Cycle control").
func (e *emitter) emitDoc(s source.Source) {
	h := s.Hash()
	if e.visited[h] {
		return
	}
	e.visited[h] = true
	e.included[s] = struct{}{}
	e.includedOrder = append(e.includedOrder, s)

	parse, ok := e.reg.Tokens(s)
	if !ok {
		return
	}
	e.contents[s] = parse.Text
	srcID := e.sm.AddSource(s)

	decl := ident.NewDeclarationStatement(s)
	e.nilMapping(e.col)
	e.write(decl.Text)

	var literalMatched bool
	skipNextLineTerm := false

	for _, tok := range parse.Tokens {
		switch tok.Kind {
		case token.EOI:
			// nothing to emit

		case token.Include:
			start := e.col
			width := token.UTF16Len(tok.Text)
			if e.opts.ResolveDeps {
				e.write(strings.Repeat(" ", width))
			} else {
				e.write(padWord("import", width))
			}
			e.mapping(srcID, tok.Span.Line, tok.Span.Col, start)

		case token.IncludePath:
			if !e.opts.ResolveDeps {
				start := e.col
				e.write("\"" + tok.Literal + "\"")
				e.mapping(srcID, tok.Span.Line, tok.Span.Col, start)
				break
			}
			e.emitResolvedInclude(s, srcID, tok)

		case token.RegionOpen:
			start := e.col
			width := token.UTF16Len(tok.Text)
			e.write(strings.Repeat(" ", width-1) + "`")
			e.mapping(srcID, tok.Span.Line, tok.Span.Col, start)
			skipNextLineTerm = true

		case token.RegionClose:
			start := e.col
			width := token.UTF16Len(tok.Text)
			e.write("`;" + strings.Repeat(" ", width-2))
			e.mapping(srcID, tok.Span.Line, tok.Span.Col, start)

		case token.LineTerminator:
			if skipNextLineTerm {
				skipNextLineTerm = false
				break
			}
			e.write("\n")

		case token.Common, token.CommonWithLineEnding:
			start := e.col
			e.write(tok.Text)
			e.mapping(srcID, tok.Span.Line, tok.Span.Col, start)
			if e.opts.Pattern != nil && strings.Contains(tok.Text, e.opts.Pattern.Literal) {
				literalMatched = true
			}
		}
	}

	// §4.D's rule ("literal ∧ source on the pattern owner, or literal on
	// any other document") reduces to just literalMatched: "source" is
	// definitionally true on the owner and irrelevant elsewhere.
	if e.opts.Pattern != nil && literalMatched {
		e.patternSources[h] = struct{}{}
	}
}

// emitResolvedInclude handles an IncludePath token in resolving
// (bundle) mode: write the dependency's link statement, recursively
// emit the dependency (unless tree-shaking proves it irrelevant), then
// restore column alignment for any trailing tokens on the source line.
func (e *emitter) emitResolvedInclude(s source.Source, srcID int, tok token.Token) {
	dep, resolved := e.reg.Resolve(s, tok.Literal)

	var link ident.LinkStatement
	if resolved {
		link = ident.NewLinkStatement(dep)
	} else {
		link = ident.UndefinedLinkStatement()
	}

	leftCol := token.UTF16Len(link.Text[1:link.LeftOffset])
	rightCol := token.UTF16Len(link.Text[1:link.RightOffset])
	e.write(link.Text)

	// link.Text starts with exactly one '\n', so leftCol/rightCol above
	// are already relative to the line the link statement lands on,
	// which e.write just finished advancing past.
	e.mapping(srcID, tok.Span.Line, tok.Span.Col, leftCol)
	e.nilMapping(rightCol)

	if resolved {
		shouldDescend := true
		if e.opts.Pattern != nil {
			shouldDescend = e.reg.MayContainPattern(dep, *e.opts.Pattern)
		}
		if shouldDescend {
			e.emitDoc(dep)
		} else {
			e.visited[dep.Hash()] = true
		}
	}

	e.write("\n" + strings.Repeat(" ", tok.End().Col))
}
