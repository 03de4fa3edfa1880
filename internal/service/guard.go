package service

import "sync"

// withdrawGuard tracks positions with a withdrawal in flight within this
// process. The database row lock already serializes concurrent withdrawals;
// the guard additionally rejects a nested withdrawal of the same position
// issued while the first one is still mid-flight, so the second attempt
// fails fast instead of queueing on the row lock.
type withdrawGuard struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func newWithdrawGuard() *withdrawGuard {
	return &withdrawGuard{inFlight: make(map[int64]struct{})}
}

// TryAcquire reports whether the caller now owns the in-flight slot for id.
func (g *withdrawGuard) TryAcquire(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[id]; busy {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

func (g *withdrawGuard) Release(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}
