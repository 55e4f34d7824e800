package sim

import (
	"context"
	"sync"
)

// gate is a pausable barrier for the tick loop. Open by default;
// waiters block while paused and are all released on resume.
type gate struct {
	mu     sync.Mutex
	resume chan struct{}
	paused bool
}

func newGate() *gate {
	return &gate{resume: make(chan struct{})}
}

func (g *gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = true
}

func (g *gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
	g.resume = make(chan struct{})
}

func (g *gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused. Returns false if the context
// was cancelled while waiting.
func (g *gate) Wait(ctx context.Context) bool {
	for {
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return true
		}
		resume := g.resume
		g.mu.Unlock()
		select {
		case <-resume:
		case <-ctx.Done():
			return false
		}
	}
}
