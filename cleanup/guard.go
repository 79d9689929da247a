// Package cleanup makes teardown of externally owned handles idempotent.
//
// A Guard wraps the destructive call for one resource (a chat channel, a call
// session, a mounted widget). Concurrent callers race on a single lock: the
// first one runs the teardown, everyone else returns immediately. A resource
// the remote side already released counts as torn down.
package cleanup

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
)

type Guard struct {
	mu          sync.Mutex
	tearingDown bool
	tornDown    bool
	done        chan struct{}
}

func NewGuard() *Guard {
	return &Guard{done: make(chan struct{})}
}

// Run executes fn unless a teardown is already in progress or finished, in
// which case it is a no-op returning nil. An ErrAlreadyGone style error from fn
// is reported as success. Any other error, or a panic, releases the guard so a
// later call may retry; the panic is re-raised.
func (g *Guard) Run(ctx context.Context, fn func(context.Context) error) (err error) {
	if !g.begin() {
		return nil
	}

	finished := false
	defer func() {
		if !finished {
			g.finish(false)
		}
	}()

	err = fn(ctx)
	if apperrors.IsGone(err) {
		err = nil
	}
	finished = true
	g.finish(err == nil)
	return err
}

func (g *Guard) finish(ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tearingDown = false
	if ok {
		g.tornDown = true
		close(g.done)
	}
}

func (g *Guard) begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tearingDown || g.tornDown {
		return false
	}
	g.tearingDown = true
	return true
}

// Done is closed once the teardown has completed successfully.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

func (g *Guard) TornDown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tornDown
}

func (g *Guard) InProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tearingDown
}

// Active reports whether the guarded resource has neither started nor finished
// tearing down.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.tearingDown && !g.tornDown
}
