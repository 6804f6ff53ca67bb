package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concat(p Parse) string {
	var b strings.Builder
	for _, t := range p.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain javascript with no directives at all\n",
		"import \"b.js\";\nfn();",
		"#include <shared/util.js>\nconsole.log(1);\n",
		"#text\nhello\n#endtext\n",
		"#sql\nselect * from t\n#endsql\n",
		"const s = \"has #include inside a string\";\n",
		"const t = `template #text literal`;\n",
		"// a comment mentioning #include should stay opaque\nlet x = 1;\n",
		"/* block #sql comment\nspanning lines */\nlet y = 2;\n",
		"const esc = \"a\\\"b\";\n",
		"line one\r\nline two\r\n",
		"import 'b.js';\n#include <c.js>\nimport \"d.js\";\n",
	}
	for _, src := range cases {
		p := Tokenize(src)
		require.Equal(t, src, concat(p), "round trip for %q", src)
		require.Equal(t, EOI, p.Tokens[len(p.Tokens)-1].Kind)
	}
}

func TestIncludeDirectives(t *testing.T) {
	p := Tokenize("import \"b.js\";\nfn();")
	var kinds []Kind
	var literal string
	for _, tok := range p.Tokens {
		kinds = append(kinds, tok.Kind)
		if tok.Kind == IncludePath {
			literal = tok.Literal
		}
	}
	assert.Equal(t, "b.js", literal)
	assert.Contains(t, kinds, Include)
	assert.Contains(t, kinds, IncludePath)
}

func TestRegionMarkersNotMatchedInsideStrings(t *testing.T) {
	p := Tokenize("const s = \"#text should not open a region\";\n")
	for _, tok := range p.Tokens {
		assert.NotEqual(t, RegionOpen, tok.Kind)
		assert.NotEqual(t, RegionClose, tok.Kind)
	}
}

func TestRegionMarkersNotMatchedInsideComments(t *testing.T) {
	p := Tokenize("// #sql should not open a region here\nlet z = 1;\n")
	for _, tok := range p.Tokens {
		assert.NotEqual(t, RegionOpen, tok.Kind)
	}
}

func TestRegionMarkersNotMatchedInsideTemplateLiterals(t *testing.T) {
	p := Tokenize("const t = `#endtext inside a template`;\n")
	for _, tok := range p.Tokens {
		assert.NotEqual(t, RegionClose, tok.Kind)
	}
}

func TestRegionOpenClose(t *testing.T) {
	p := Tokenize("#text\nbody\n#endtext\n")
	var kinds []Kind
	for _, tok := range p.Tokens {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, RegionOpen)
	assert.Contains(t, kinds, RegionClose)
}

func TestFirstTokenStartsAtOrigin(t *testing.T) {
	p := Tokenize("ab\ncd")
	// first Common run covers "ab" at line 0 col 0
	require.True(t, len(p.Tokens) > 0)
	first := p.Tokens[0]
	assert.Equal(t, 0, first.Span.Line)
	assert.Equal(t, 0, first.Span.Col)
}

func TestEOIPositionAfterTrailingNewline(t *testing.T) {
	p := Tokenize("a\n")
	eoi := p.Tokens[len(p.Tokens)-1]
	assert.Equal(t, EOI, eoi.Kind)
	assert.Equal(t, 1, eoi.Span.Line)
	assert.Equal(t, 0, eoi.Span.Col)
}
