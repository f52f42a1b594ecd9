package selector

import (
	"sync"
)

// Connections is a read-only snapshot of active work per task id. Absent ids
// carry zero load.
type Connections map[string]int64

func (c Connections) Get(id string) int64 {
	if c == nil {
		return 0
	}
	return c[id]
}

// Total sums the load of the given candidates only.
func (c Connections) Total(tasks []Task) int64 {
	var total int64
	for _, t := range tasks {
		total += c.Get(t.ID)
	}
	return total
}

// ConnTracker counts in-flight work per task. It is owned by the dispatching
// side; selection only ever sees a Snapshot.
type ConnTracker struct {
	mu    sync.RWMutex
	conns map[string]int64
}

func NewConnTracker() *ConnTracker {
	return &ConnTracker{conns: make(map[string]int64)}
}

func (t *ConnTracker) Inc(id string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[id]++
	return t.conns[id]
}

// Done decrements the counter for id, never below zero.
func (t *ConnTracker) Done(id string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[id] > 0 {
		t.conns[id]--
	}
	return t.conns[id]
}

func (t *ConnTracker) Count(id string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conns[id]
}

func (t *ConnTracker) Forget(id string) {
	t.mu.Lock()
	delete(t.conns, id)
	t.mu.Unlock()
}

func (t *ConnTracker) Snapshot() Connections {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := make(Connections, len(t.conns))
	for k, v := range t.conns {
		if v > 0 {
			snap[k] = v
		}
	}
	return snap
}
