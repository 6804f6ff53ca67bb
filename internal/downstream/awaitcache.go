// Package downstream is the proxy's collaborator on the other side of
// the bridge: a generalized `LSPServiceClientBase` (minus the
// rule-engine `Evaluate`/FuncMap machinery, which has no SPEC_FULL.md
// use) that spawns, handshakes with, and talks to the downstream JS/TS
// language server, grounded on
// lsp/base_service_client/base_service_client.go.
package downstream

import "sync"

// AwaitCache is a generic cache whose values can be awaited until set,
// matching lsp/base_service_client/await_cache.go. Used here for the
// diagnostics cache (§4.I "Diagnostics": the proxy must wait for a
// `publishDiagnostics` notification the downstream server emits
// asynchronously after a build is sent).
type AwaitCache[K comparable, V any] struct {
	mu    sync.Mutex
	cache map[K]*awaitCacheValue[V]
}

// NewAwaitCache returns an empty AwaitCache.
func NewAwaitCache[K comparable, V any]() *AwaitCache[K, V] {
	return &AwaitCache[K, V]{cache: make(map[K]*awaitCacheValue[V])}
}

// Get returns the entry for key, creating an unset one if absent.
func (ac *AwaitCache[K, V]) Get(key K) *awaitCacheValue[V] {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.cache[key] == nil {
		ac.cache[key] = newAwaitCacheValue[V]()
	}
	return ac.cache[key]
}

// Set stores val under key, waking any goroutine blocked in Await.
func (ac *AwaitCache[K, V]) Set(key K, val V) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.cache[key] == nil {
		ac.cache[key] = newAwaitCacheValue[V]()
	}
	ac.cache[key].setValue(val)
}

// Delete evicts key.
func (ac *AwaitCache[K, V]) Delete(key K) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	delete(ac.cache, key)
}

type awaitCacheValue[V any] struct {
	value     V
	readyChan chan struct{}
	readyOnce sync.Once
}

func newAwaitCacheValue[V any]() *awaitCacheValue[V] {
	return &awaitCacheValue[V]{readyChan: make(chan struct{})}
}

// Await blocks until a value has been Set, or ctxDone fires.
func (acv *awaitCacheValue[V]) Await(ctxDone <-chan struct{}) (V, bool) {
	select {
	case <-acv.readyChan:
		return acv.value, true
	case <-ctxDone:
		var zero V
		return zero, false
	}
}

func (acv *awaitCacheValue[V]) setValue(value V) {
	acv.value = value
	acv.readyOnce.Do(func() { close(acv.readyChan) })
}

// IsReady reports whether a value has been Set, without blocking.
func (acv *awaitCacheValue[V]) IsReady() bool {
	select {
	case <-acv.readyChan:
		return true
	default:
		return false
	}
}
