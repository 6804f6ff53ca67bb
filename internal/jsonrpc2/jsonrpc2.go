// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 is a minimal, bidirectional implementation of the JSON
// RPC 2 spec (https://www.jsonrpc.org/specification) sufficient to speak LSP
// over stdio in both directions: a Conn can simultaneously be the "client"
// issuing Call/Notify and the "server" dispatching incoming requests and
// notifications to a Handler chain.
package jsonrpc2

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// Conn is a JSON RPC 2 client/server connection. Conn is bidirectional; it
// does not have a designated server or client end.
type Conn struct {
	seq       int64 // must only be accessed using atomic operations
	handlers  []Handler
	stream    Stream
	pendingMu sync.Mutex // protects the pending map
	pending   map[ID]chan *WireResponse
	logger    logr.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewConn creates a new connection object around the supplied stream. You
// must call Run for the connection to be active.
func NewConn(s Stream, log logr.Logger) *Conn {
	return &Conn{
		handlers: []Handler{defaultHandler{}},
		stream:   s,
		pending:  make(map[ID]chan *WireResponse),
		logger:   log,
	}
}

// AddHandler adds a new handler to the set the connection will invoke.
// Handlers are invoked in the reverse order of how they were added, so the
// most recent addition is the first one to attempt to handle a message.
func (c *Conn) AddHandler(handler Handler) {
	c.handlers = append([]Handler{handler}, c.handlers...)
}

// Notify sends a notification request over the connection. It returns as
// soon as the notification has been sent, as no response is possible.
func (c *Conn) Notify(ctx context.Context, method string, params interface{}) (err error) {
	jsonParams, err := marshalToRaw(params)
	if err != nil {
		return fmt.Errorf("marshalling notify parameters: %v", err)
	}
	request := &WireRequest{Method: method, Params: jsonParams}
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshalling notify request: %v", err)
	}
	for _, h := range c.handlers {
		ctx = h.Request(ctx, c, Send, request)
	}
	defer func() {
		for _, h := range c.handlers {
			h.Done(ctx, err)
		}
	}()

	n, err := c.stream.Write(ctx, data)
	for _, h := range c.handlers {
		ctx = h.Wrote(ctx, int32(n))
	}
	return err
}

// RPCUnmarshalError is returned when a response payload cannot be decoded
// into the caller's result type.
type RPCUnmarshalError struct {
	Json string
	Err  error
}

func (e *RPCUnmarshalError) Error() string {
	return fmt.Sprintf("tried to unmarshal: %v\ngot error: %v", e.Json, e.Err)
}

// Call sends a request over the connection and waits for a response. If the
// response is not an error, it is decoded into result, which must be of a
// type you can pass to json.Unmarshal.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) (err error) {
	id := ID{Number: atomic.AddInt64(&c.seq, 1)}
	jsonParams, err := marshalToRaw(params)
	if err != nil {
		return fmt.Errorf("marshalling call parameters: %v", err)
	}
	request := &WireRequest{ID: &id, Method: method, Params: jsonParams}
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshalling call request: %v", err)
	}
	for _, h := range c.handlers {
		ctx = h.Request(ctx, c, Send, request)
	}

	// Register before sending so we never race the response.
	rchan := make(chan *WireResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = rchan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		for _, h := range c.handlers {
			h.Done(ctx, err)
		}
	}()

	n, err := c.stream.Write(ctx, data)
	for _, h := range c.handlers {
		ctx = h.Wrote(ctx, int32(n))
	}
	if err != nil {
		return err
	}

	select {
	case response := <-rchan:
		for _, h := range c.handlers {
			ctx = h.Response(ctx, c, Receive, response)
		}
		if response.Error != nil {
			return response.Error
		}
		if result == nil || response.Result == nil {
			return nil
		}
		if err := json.Unmarshal(*response.Result, result); err != nil {
			return &RPCUnmarshalError{string(*response.Result), err}
		}
		return nil
	case <-ctx.Done():
		cancelled := false
		for _, h := range c.handlers {
			if h.Cancel(ctx, c, id, cancelled) {
				cancelled = true
			}
		}
		return ctx.Err()
	}
}

// combined has all the fields of both Request and Response; we decode this
// and work out which one it is.
type combined struct {
	VersionTag VersionTag       `json:"jsonrpc"`
	ID         *ID              `json:"id,omitempty"`
	Method     string           `json:"method"`
	Params     *json.RawMessage `json:"params,omitempty"`
	Result     *json.RawMessage `json:"result,omitempty"`
	Error      *Error           `json:"error,omitempty"`
}

// Run blocks until the connection is terminated, and returns any error that
// caused the termination. It must be called exactly once per Conn. Unlike a
// pure response-correlating client, Run also dispatches incoming requests
// and notifications to the handler chain, so a single Conn can serve as
// both ends of the proxy bridge described in spec.md §9 ("two Service-like
// channels bridged by a Router").
func (c *Conn) Run(runCtx context.Context) error {
	c.logger.V(5).Info("starting to run rpc connection")
	for {
		data, _, err := c.stream.Read(runCtx)
		if err != nil {
			return err
		}
		msg := &combined{}
		if err := json.Unmarshal(data, msg); err != nil {
			for _, h := range c.handlers {
				h.Error(runCtx, fmt.Errorf("unmarshal failed: %v", err))
			}
			continue
		}

		switch {
		case msg.ID != nil && msg.Method == "":
			// a response to one of our own pending calls
			c.pendingMu.Lock()
			rchan, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.pendingMu.Unlock()
			if ok {
				rchan <- &WireResponse{Result: msg.Result, Error: msg.Error, ID: msg.ID}
				close(rchan)
			}
		case msg.Method != "":
			// an incoming request (msg.ID != nil) or notification (msg.ID == nil)
			req := &Request{ID: msg.ID, Method: msg.Method, Params: derefRaw(msg.Params)}
			go c.dispatch(runCtx, req)
		default:
			for _, h := range c.handlers {
				h.Error(runCtx, fmt.Errorf("message not a call, notify or response, ignoring"))
			}
		}
	}
}

func (c *Conn) dispatch(ctx context.Context, req *Request) {
	var result interface{}
	var err error = ErrNotHandled
	for _, h := range c.handlers {
		result, err = h.Handle(ctx, req)
		if err != ErrNotHandled {
			break
		}
	}
	if req.ID == nil {
		if err != nil && err != ErrNotHandled {
			for _, h := range c.handlers {
				h.Error(ctx, fmt.Errorf("notification %s failed: %w", req.Method, err))
			}
		}
		return
	}

	resp := &WireResponse{ID: req.ID}
	if err != nil {
		resp.Error = asRPCError(err)
	} else {
		raw, mErr := marshalToRaw(result)
		if mErr != nil {
			resp.Error = NewErrorf(CodeInternalError, "marshalling response: %v", mErr)
		} else {
			resp.Result = raw
		}
	}
	data, mErr := json.Marshal(resp)
	if mErr != nil {
		for _, h := range c.handlers {
			h.Error(ctx, fmt.Errorf("marshalling response: %v", mErr))
		}
		return
	}
	if _, wErr := c.stream.Write(ctx, data); wErr != nil {
		for _, h := range c.handlers {
			h.Error(ctx, fmt.Errorf("writing response: %v", wErr))
		}
	}
}

// Close closes the underlying stream exactly once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.stream.Close()
	})
	return c.closeErr
}

func derefRaw(r *json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return *r
}

func marshalToRaw(obj interface{}) (*json.RawMessage, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage(data)
	return &raw, nil
}

func asRPCError(err error) *Error {
	if rpcErr, ok := err.(*Error); ok {
		return rpcErr
	}
	return NewErrorf(CodeInternalError, "%s", err.Error())
}
