// Package flight provides the in-flight operation registry that coalesces
// concurrent fetches for the same fingerprint into a single shared operation.
package flight

import (
	"context"
	"sync"
)

// Group coalesces concurrent calls for the same key so that fn runs at most
// once per key at any time. The first caller for a key becomes the owner and
// runs fn with its own context; later callers attach to the shared result.
//
// Cancellation policy:
//   - The owner's context is the operation's cancellation signal. If it is
//     cancelled, fn observes the cancellation, the resulting error is
//     published to every attached caller, and the registry entry is removed.
//   - An attached caller cancelling its own context detaches only itself;
//     the shared operation is unaffected.
//
// Publishing (val, err) happens-before close(c.done), so attached callers
// that return after <-done observe the final values. The registry entry is
// removed exactly once, in a deferred step, regardless of how fn terminates.
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// NewGroup creates an empty registry.
func NewGroup[V any]() *Group[V] {
	return &Group[V]{m: make(map[string]*call[V])}
}

// Do runs fn once for the given key. Concurrent calls with the same key wait
// for the shared result. The returned bool reports whether this caller
// attached to an operation started by someone else.
//
// fn must return rather than panic: a panic is not recovered, and attached
// callers waiting on the shared result would block until their own contexts
// end. Report failures through the error return.
func (g *Group[V]) Do(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, bool, error) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		done := c.done
		g.mu.Unlock()

		select {
		case <-done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, true, ctx.Err()
		}
	}

	// We are the owner for this key.
	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
	}()

	// Execute fn outside the lock, threading the owner's context so that
	// cancelling it terminates the shared operation for every caller.
	v, err := fn(ctx)

	c.val, c.err = v, err
	close(c.done)

	return v, false, err
}

// Pending reports whether an operation is currently in flight for key.
func (g *Group[V]) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}
