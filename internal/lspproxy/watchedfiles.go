package lspproxy

import (
	"path/filepath"
	"strings"

	"github.com/glscript-lang/lsp-proxy/internal/protocol"
)

// FilterWatchedFiles drops events for synthetic bundle files or
// sourcemaps before forwarding (spec.md §4.I
// "did_change_watched_files").
func (p *Proxy) FilterWatchedFiles(params protocol.DidChangeWatchedFilesParams) protocol.DidChangeWatchedFilesParams {
	out := make([]protocol.FileEvent, 0, len(params.Changes))
	for _, ev := range params.Changes {
		if isProxyArtifact(string(ev.URI)) {
			continue
		}
		out = append(out, ev)
	}
	return protocol.DidChangeWatchedFilesParams{Changes: out}
}

func isProxyArtifact(uri string) bool {
	path := filepath.ToSlash(uri)
	if strings.Contains(path, "/.proxy/") {
		return true
	}
	return strings.HasSuffix(path, ".js.emitted") || strings.HasSuffix(path, ".map")
}
