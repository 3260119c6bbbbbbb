package iox

import (
	"context"
	"errors"
	"sync"
)

// ErrGateClosed is returned by Gate operations after Close.
var ErrGateClosed = errors.New("gate closed")

// Gate is a pause switch for a producer loop. The producer calls Wait
// before each unit of work; any goroutine may Pause or Resume it.
// Safe for concurrent use.
type Gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
	closed bool
}

// NewGate returns an open, unpaused gate.
func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Pause makes subsequent Wait calls block until Resume or Close.
func (g *Gate) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGateClosed
	}
	g.paused = true
	return nil
}

// Resume releases blocked Wait calls.
func (g *Gate) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGateClosed
	}
	g.paused = false
	g.cond.Broadcast()
	return nil
}

// Paused reports whether the gate is paused.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused. It returns ctx.Err() if ctx is
// cancelled first. A closed gate never blocks.
func (g *Gate) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused && !g.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.cond.Wait()
	}
	return ctx.Err()
}

// Close releases all waiters and makes Pause and Resume fail.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.paused = false
	g.cond.Broadcast()
	g.mu.Unlock()
}
