package jsonrpc2

import "strings"

// IsRPCClosed reports whether err is the kind of transport error seen when
// the peer end of a Stream has gone away (the downstream server process
// exited, or the editor closed its pipe), matching
// `jsonrpc2/rpcerr.go`'s classification in the teacher.
func IsRPCClosed(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.HasSuffix(msg, "file already closed") ||
		strings.HasSuffix(msg, "broken pipe") ||
		strings.HasSuffix(msg, "EOF")
}

// IsOOMError reports whether a wire Error's Data payload carries a marker
// for a JVM or Node out-of-memory failure, so the proxy can log a clear
// diagnosis instead of a bare transport error when a downstream language
// server dies under memory pressure.
func IsOOMError(err *Error) bool {
	if err == nil || err.Data == nil {
		return false
	}
	data := string(*err.Data)
	return strings.Contains(data, "java.lang.OutOfMemoryError") ||
		strings.Contains(data, "JavaScript heap out of memory") ||
		strings.Contains(data, "FATAL ERROR: Ineffective mark-compacts")
}
