package store

import (
	"path"
	"strings"

	"github.com/glscript-lang/lsp-proxy/internal/source"
	"github.com/glscript-lang/lsp-proxy/internal/token"
)

// Registry adapts a Documents store, a configured default source, and
// (optionally) a prior tree-shaken build's proven-relevant set into
// emit.Registry, so a Build can be produced against live editor state
// (§4.D, §9 "pattern-driven tree shaking"). Built fresh per emission by
// BuildStore; cheap to construct.
type Registry struct {
	Docs          *Documents
	DefaultSource source.Source
	HasDefault    bool
	ReadFile func(path string) (string, error)
	// PatternVisited is the set of hashes a previous build with the same
	// pattern literal actually inspected; PatternMatched (a subset) is
	// the ones it confirmed contain the literal. MayContainPattern skips
	// a subtree only when its hash is in PatternVisited but not
	// PatternMatched — anything outside PatternVisited was never looked
	// at and always may contain the pattern. Both nil means "no prior
	// knowledge, always descend".
	PatternVisited map[source.Hash]struct{}
	PatternMatched map[source.Hash]struct{}
}

// Tokens resolves src to its latest Parse, loading it from disk on
// first reference if it is not already an open or cached Document.
func (r *Registry) Tokens(src source.Source) (*token.Parse, bool) {
	doc, err := r.Docs.GetBySource(src, r.ReadFile)
	if err != nil {
		return nil, false
	}
	return doc.Parse, true
}

// Resolve turns literal (the text of an IncludePath token written
// inside from) into the Source it names, relative to from's directory,
// and confirms it actually exists by attempting to load it.
func (r *Registry) Resolve(from source.Source, literal string) (source.Source, bool) {
	dir := path.Dir(string(from))
	joined := path.Join(dir, literal)
	target := source.Source(strings.ToLower(joined))
	if _, ok := r.Tokens(target); !ok {
		return "", false
	}
	return target, true
}

// Default returns the project-wide preamble document, if configured.
func (r *Registry) Default() (source.Source, bool) {
	return r.DefaultSource, r.HasDefault
}

// MayContainPattern reports whether src's subtree could still
// contribute a match for pattern: true unless a prior build already
// inspected src itself and found no match. A hash this registry has no
// record of inspecting always returns true, regardless of what any
// other candidate's build happened to prove for a different subtree
// sharing the same pattern literal.
func (r *Registry) MayContainPattern(src source.Source, pattern source.Pattern) bool {
	h := src.Hash()
	if _, visited := r.PatternVisited[h]; !visited {
		return true
	}
	_, matched := r.PatternMatched[h]
	return matched
}
