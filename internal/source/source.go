// Package source defines Source, the canonical project-relative file
// identity used throughout this proxy instead of a URI (§3 "Source"),
// and SourceHash, its compact 64-bit key.
package source

import (
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Source is a lowercase, forward-slash-normalized project-relative
// path. It is immutable once constructed.
type Source string

// FromPath builds a Source from a filesystem path and the project root
// it is relative to, lowercasing and forward-slash-normalizing it so two
// different-cased or differently-separated references to the same file
// collapse to one Source.
func FromPath(root, path string) Source {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	return Source(strings.ToLower(rel))
}

// Hash returns the 64-bit SourceHash of this Source, used as a compact
// key in visited-sets and SourcePattern (§3 "SourceHash").
func (s Source) Hash() Hash {
	return Hash(xxhash.Sum64String(string(s)))
}

func (s Source) String() string { return string(s) }

// Hash is a 64-bit hash of a Source string.
type Hash uint64

// Pattern filters a tree-shaken bundle to subtrees that can contribute a
// match for Literal, originally defined in the document whose source
// hash is SourceOf (§3 "SourcePattern").
type Pattern struct {
	Literal  string
	SourceOf Hash
}
