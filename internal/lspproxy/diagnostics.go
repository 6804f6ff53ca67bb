package lspproxy

import (
	"encoding/json"
	"strconv"

	"github.com/glscript-lang/lsp-proxy/internal/build"
	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

// diagnosticCodeTable downgrades certain downstream codes (spec.md §4.I
// "Diagnostics"): "any" type-inference and "cannot find name" become
// warnings; remapOneDiagnostic forces syntactic 1xxx codes to error. No
// code is hidden: every diagnostic that maps back is kept.
// Keyed on the TS/JS diagnostic code as a string since Diagnostic.Code
// is left as raw JSON (it may be a number or a string depending on the
// downstream server).
var diagnosticCodeTable = map[string]protocol.DiagnosticSeverity{
	"7006": protocol.SeverityWarning, // implicit any parameter
	"7005": protocol.SeverityWarning, // implicit any variable
	"2304": protocol.SeverityWarning, // cannot find name
}

// RemapDiagnostics reverse-maps a publishDiagnostics payload addressed
// at an emit URI back to the owning source document, discarding
// diagnostics that don't land on it, adjusting severities per the table
// above, and remapping RelatedInformation the same way (spec.md
// §4.I "Diagnostics").
func (p *Proxy) RemapDiagnostics(params protocol.PublishDiagnosticsParams) (protocol.PublishDiagnosticsParams, bool) {
	b, ok := p.Builds.GetAnyBuildByEmitURI(params.URI)
	if !ok {
		return protocol.PublishDiagnosticsParams{}, false
	}

	out := make([]protocol.Diagnostic, 0, len(params.Diagnostics))
	for _, diag := range params.Diagnostics {
		mapped, ok := p.remapOneDiagnostic(b, diag)
		if ok {
			out = append(out, mapped)
		}
	}

	uri, ok := p.Docs.URIForSource(b.Target)
	if !ok {
		return protocol.PublishDiagnosticsParams{}, false
	}
	return protocol.PublishDiagnosticsParams{URI: uri, Diagnostics: out}, true
}

func (p *Proxy) remapOneDiagnostic(b *build.Build, diag protocol.Diagnostic) (protocol.Diagnostic, bool) {
	r, src, ok := b.ForwardBuildRange(diag.Range)
	if !ok || src != b.Target {
		return protocol.Diagnostic{}, false
	}
	if code := diagnosticCodeString(diag.Code); code != "" {
		if sev, ok := diagnosticCodeTable[code]; ok {
			diag.Severity = sev
		} else if len(code) == 4 && code[0] == '1' {
			diag.Severity = protocol.SeverityError
		}
	}
	diag.Range = r

	related := make([]protocol.DiagnosticRelatedInformation, 0, len(diag.RelatedInformation))
	for _, ri := range diag.RelatedInformation {
		rb, ok := p.Builds.GetAnyBuildByEmitURI(ri.Location.URI)
		if !ok {
			continue
		}
		rr, rsrc, ok := rb.ForwardBuildRange(ri.Location.Range)
		if !ok {
			continue
		}
		rURI, ok := p.Docs.URIForSource(rsrc)
		if !ok {
			continue
		}
		related = append(related, protocol.DiagnosticRelatedInformation{
			Location: protocol.Location{URI: rURI, Range: rr},
			Message:  ri.Message,
		})
	}
	diag.RelatedInformation = related
	return diag, true
}

// diagnosticCodeString normalizes a Diagnostic.Code (a string or number
// in the wire format) to a plain string key for diagnosticCodeTable.
func diagnosticCodeString(raw *json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var asString string
	if err := json.Unmarshal(*raw, &asString); err == nil {
		return asString
	}
	var asNumber int64
	if err := json.Unmarshal(*raw, &asNumber); err == nil {
		return strconv.FormatInt(asNumber, 10)
	}
	return ""
}
