package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// ProxyDirWatcher is a belt-and-suspenders supplement to
// lspproxy.FilterWatchedFiles: that filter only strips synthetic-file
// events the editor itself reports, so an external tool (a formatter, a
// linter's own file watcher) writing into .proxy/ while the editor's
// watch glob excludes it would go unnoticed. This watches .proxy/
// directly and logs such writes instead of silently ignoring them,
// grounded on fsnotify's presence in the pack for exactly this
// directory-watch role.
type ProxyDirWatcher struct {
	watcher *fsnotify.Watcher
	log     logr.Logger
	done    chan struct{}
}

// WatchProxyDir creates root's .proxy directory if needed and starts
// watching it. Call Close to stop.
func WatchProxyDir(root string, log logr.Logger) (*ProxyDirWatcher, error) {
	dir := filepath.Join(root, ".proxy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	pw := &ProxyDirWatcher{watcher: w, log: log, done: make(chan struct{})}
	go pw.run()
	return pw, nil
}

func (pw *ProxyDirWatcher) run() {
	defer close(pw.done)
	for {
		select {
		case ev, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.log.V(9).Info("external write under .proxy", "path", ev.Name, "op", ev.Op.String())
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.log.V(2).Info("proxy directory watch error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (pw *ProxyDirWatcher) Close() error {
	err := pw.watcher.Close()
	<-pw.done
	return err
}
