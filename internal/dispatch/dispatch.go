// Package dispatch runs accepted operations on background goroutines
// and funnels their results onto a single ordered channel. Admission
// (at most one in-flight operation per target) is the state package's
// job and must happen before Dispatch is called; the dispatcher itself
// never serializes unrelated operations.
package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/smileynet/snapdash/internal/snapper"
)

// Gateway executes one request against the backend. Implemented by
// *snapper.Client in production and by stubs in tests.
type Gateway interface {
	Execute(ctx context.Context, req snapper.Request) snapper.Result
}

// defaultBuffer sizes the result channel. Results are consumed one at a
// time by the UI loop; the buffer only absorbs bursts from operations
// finishing while the loop is mid-render.
const defaultBuffer = 16

// Handle lifecycle states.
const (
	statePending int32 = iota
	stateStarted
	stateCancelled
)

// Handle tracks one dispatched request. Cancel withdraws the request
// only if its worker has not yet invoked the gateway; a running
// external operation is allowed to finish.
type Handle struct {
	req   snapper.Request
	state atomic.Int32
}

// Request returns the request this handle tracks.
func (h *Handle) Request() snapper.Request { return h.req }

// Cancel marks a pending request cancelled. It reports whether the
// withdrawal won: if false, the gateway call has already started and
// its real result will arrive instead.
func (h *Handle) Cancel() bool {
	return h.state.CompareAndSwap(statePending, stateCancelled)
}

// Dispatcher owns the result channel and spawns one goroutine per
// accepted request.
type Dispatcher struct {
	gw      Gateway
	results chan snapper.Result
}

// New creates a Dispatcher over the given gateway.
func New(gw Gateway) *Dispatcher {
	return &Dispatcher{
		gw:      gw,
		results: make(chan snapper.Result, defaultBuffer),
	}
}

// Results is the channel the reconciler drains. Results for different
// targets may arrive in any order; results for the same target cannot
// overtake each other because admission allows only one in flight.
func (d *Dispatcher) Results() <-chan snapper.Result {
	return d.results
}

// Dispatch spawns one worker for the request. The caller must have
// passed the admission gate first so the check-then-spawn sequence has
// no race window: both happen on the calling thread before any
// background work exists.
func (d *Dispatcher) Dispatch(ctx context.Context, req snapper.Request) *Handle {
	h := &Handle{req: req}
	go func() {
		if !h.state.CompareAndSwap(statePending, stateStarted) {
			d.results <- snapper.Failed{Request: req, Err: snapper.ErrCancelled}
			return
		}
		d.results <- d.gw.Execute(ctx, req)
	}()
	return h
}
