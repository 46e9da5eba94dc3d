package chat

import "sync"

// Gate admits one holder per key at a time. Requests for a busy key are
// refused instead of queued.
type Gate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewGate() *Gate {
	return &Gate{busy: make(map[string]struct{})}
}

// TryAcquire returns a release func, or false when key is already held.
// An empty key is never gated.
func (g *Gate) TryAcquire(key string) (func(), bool) {
	if key == "" {
		return func() {}, true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return nil, false
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, true
}
