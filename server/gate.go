// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"sync"
)

// gate admits requests until it is closed, and tracks the requests it
// has admitted so a shutdown can wait for them to finish. enter and
// leave are called from many request goroutines concurrently; each is
// a counter update under a short critical section, and the drain wait
// happens on a channel rather than the counter itself.
type gate struct {
	mu       sync.Mutex
	closed   bool
	inflight int
	idle     chan struct{}
}

// enter tries to admit a request. It reports false once the gate has
// been closed; admitted requests must call leave when they complete.
func (g *gate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.inflight++
	return true
}

func (g *gate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight--
	if g.inflight == 0 && g.idle != nil {
		close(g.idle)
		g.idle = nil
	}
}

// close stops admitting new requests. Requests admitted before close
// continue to run.
func (g *gate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// open admits requests again after a close.
func (g *gate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = false
}

// drain blocks until every admitted request has left or the context
// is done, whichever happens first.
func (g *gate) drain(ctx context.Context) error {
	g.mu.Lock()
	if g.inflight == 0 {
		g.mu.Unlock()
		return nil
	}
	if g.idle == nil {
		g.idle = make(chan struct{})
	}
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
