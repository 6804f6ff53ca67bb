package jsonrpc2

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// requestKey identifies a request by method and params, so repeated
// identical requests (as the workspace-references engine's per-file
// fan-out issues) share one backoff timer.
type requestKey struct {
	method string
	params string
}

type backoffTimer struct {
	retries           int
	lastAttemptedTime time.Time
	lastDurationTime  time.Duration
}

const (
	backoffMaxDuration  = 5 * time.Minute
	backoffResetIdleGap = time.Minute
)

// backoffRequest returns how long the caller should wait before retrying,
// starting at one second and doubling on every call (capped at
// backoffMaxDuration); once backoffResetIdleGap has passed since the last
// attempt, the retry count resets and the wait starts over at one second.
func (t *backoffTimer) backoffRequest(now time.Time) time.Duration {
	if !t.lastAttemptedTime.IsZero() && now.Sub(t.lastAttemptedTime) > backoffResetIdleGap {
		t.retries = 0
	}
	wait := time.Duration(1<<uint(t.retries)) * time.Second
	if wait > backoffMaxDuration {
		wait = backoffMaxDuration
	}
	t.retries++
	t.lastAttemptedTime = now
	t.lastDurationTime = wait
	return wait
}

type backoffCtxKey struct{}

// BackoffHandler installs exponential backoff (capped at 5 minutes) in
// front of requests keyed by method+params, matching
// `jsonrpc2/backoff_handler.go`. It is installed around the
// workspace-references engine's per-file definition/reference fan-out
// (spec.md §4.J step 4), so a downstream server failing requests under
// fan-out load is throttled instead of hammered.
type BackoffHandler struct {
	defaultHandler
	mu             sync.Mutex
	failedRequests map[requestKey]*backoffTimer
	log            logr.Logger
}

func NewBackoffHandler(log logr.Logger) *BackoffHandler {
	return &BackoffHandler{
		failedRequests: make(map[requestKey]*backoffTimer),
		log:            log,
	}
}

func keyFor(req *WireRequest) requestKey {
	var params string
	if req.Params != nil {
		params = string(*req.Params)
	}
	return requestKey{method: req.Method, params: params}
}

func (b *BackoffHandler) Request(ctx context.Context, conn *Conn, dir Direction, req *WireRequest) context.Context {
	if dir != Send {
		return ctx
	}
	key := keyFor(req)
	b.mu.Lock()
	timer, ok := b.failedRequests[key]
	b.mu.Unlock()
	if !ok {
		return context.WithValue(ctx, backoffCtxKey{}, key)
	}
	wait := timer.backoffRequest(time.Now())
	if wait > 0 {
		b.log.V(9).Info("backing off request", "method", req.Method, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
	return context.WithValue(ctx, backoffCtxKey{}, key)
}

func (b *BackoffHandler) Done(ctx context.Context, err error) {
	key, ok := ctx.Value(backoffCtxKey{}).(requestKey)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failedRequests, key)
		return
	}
	if _, exists := b.failedRequests[key]; !exists {
		b.failedRequests[key] = &backoffTimer{}
	}
}
