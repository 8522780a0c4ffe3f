package audio

import "sync"

// gate forwards device data to a callback until it is shut. Shutting waits
// for an in-flight delivery to return.
type gate struct {
	mu   sync.RWMutex
	cb   DataCallback
	open bool
}

func newGate(cb DataCallback) *gate {
	return &gate{cb: cb, open: true}
}

func (g *gate) deliver(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.open && g.cb != nil {
		g.cb(chunk)
	}
}

func (g *gate) shut() {
	g.mu.Lock()
	g.open = false
	g.mu.Unlock()
}
