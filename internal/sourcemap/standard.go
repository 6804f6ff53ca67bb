package sourcemap

import "encoding/json"

// standardJSON mirrors the v3 source-map fields debug tooling expects
// (https://sourcemaps.info/spec.html); this package stores the same
// information in RawToken form for O(log n) lookups, and only encodes
// it into this shape on demand for the debug artifact.
type standardJSON struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// StandardJSON renders the map as a standard v3 source map, for debug
// artifact emission (spec.md §6 "Configuration", "--debug"). file names
// the generated document the map describes. lastGeneratedLine must be
// the emitted content's final line index, so trailing unmapped lines
// still produce their semicolon.
func (sm *SourceMap) StandardJSON(file string, lastGeneratedLine int) ([]byte, error) {
	sources := make([]string, len(sm.sources))
	for i, s := range sm.sources {
		sources[i] = string(s)
	}
	out := standardJSON{
		Version:  3,
		File:     file,
		Sources:  sources,
		Names:    []string{},
		Mappings: encodeMappings(sm.tokens, lastGeneratedLine),
	}
	if sm.contents != nil {
		out.SourcesContent = make([]string, len(sm.sources))
		for i, s := range sm.sources {
			out.SourcesContent[i] = sm.contents[s]
		}
	}
	return json.Marshal(out)
}
