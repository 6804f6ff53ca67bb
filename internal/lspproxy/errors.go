package lspproxy

import (
	"fmt"

	"github.com/glscript-lang/lsp-proxy/internal/jsonrpc2"
)

// The error taxonomy below is surfaced as LSP ResponseErrors (spec.md §7).
// Handlers return one of these directly rather than a bare error so the
// jsonrpc2 Conn's dispatch never has to guess at a code.

// MappingFailure means a coordinate could not be translated: a request
// position lies inside a generated region, or a build is stale. Surfaced
// as request_failed; the request does not fall back.
func MappingFailure(format string, args ...interface{}) *jsonrpc2.Error {
	return jsonrpc2.NewErrorf(jsonrpc2.CodeInvalidParams, "request_failed: "+format, args...)
}

// UnexpectedSource means the returned or requested Source's extension is
// neither .js nor .d.ts where one was expected.
func UnexpectedSource(format string, args ...interface{}) *jsonrpc2.Error {
	return jsonrpc2.NewErrorf(jsonrpc2.CodeInvalidParams, "request_failed: unexpected source: "+format, args...)
}

// DownstreamError wraps any error surfaced by the downstream server,
// preserving its message.
func DownstreamError(err error) *jsonrpc2.Error {
	return jsonrpc2.NewErrorf(jsonrpc2.CodeInternalError, "downstream: %s", err.Error())
}

// ErrDocumentMissing signals the document is not cached and the file
// read failed; the caller falls back to forwarding the raw request.
var ErrDocumentMissing = fmt.Errorf("lspproxy: document missing")

// ErrCancelled is returned by the references fan-out when cancellation
// was observed; the caller must translate this into a bare Ok(null), not
// an error response (spec.md §7 "Cancelled").
var ErrCancelled = fmt.Errorf("lspproxy: cancelled")

// ErrSyncFailure collects the per-file failures of a references fan-out
// (spec.md §7 "SyncFailure"); it is never returned as the request's
// error — it is surfaced as a window/showMessage warning alongside
// partial results.
type ErrSyncFailure struct {
	Failed []string
}

func (e *ErrSyncFailure) Error() string {
	return fmt.Sprintf("lspproxy: %d file(s) failed to sync during references", len(e.Failed))
}
