package selector

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Source is the random source a balancer draws from. *rand.Rand satisfies it;
// tests inject fixed sources.
type Source interface {
	Float64() float64
	Int63n(n int64) int64
}

// State is the mutable memory of one balancer instance. It must not be
// shared between selectors fed with different task registries because
// weightIndex is only meaningful against one weight total.
type State struct {
	mu sync.Mutex

	weightIndex   atomic.Uint64
	rotationIndex atomic.Uint64

	r Source
}

func NewState(src Source) *State {
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &State{r: src}
}

// WeightIndex is safe to call while selections are running.
func (s *State) WeightIndex() uint64 {
	return s.weightIndex.Load()
}

func (s *State) RotationIndex() uint64 {
	return s.rotationIndex.Load()
}

// Reset rewinds both counters. Replacing the registry does not call it; the
// owner of the registry decides whether a new task set restarts the cycle.
func (s *State) Reset() {
	s.mu.Lock()
	s.weightIndex.Store(0)
	s.rotationIndex.Store(0)
	s.mu.Unlock()
}

// The methods below are called by balancers while the selector holds mu.

// NextRotation returns the current rotation slot for n candidates and
// advances the counter modulo n.
func (s *State) NextRotation(n int) int {
	cur := s.rotationIndex.Load() % uint64(n)
	s.rotationIndex.Store((cur + 1) % uint64(n))
	return int(cur)
}

// NextWeight returns the current position in a cycle of length modulus and
// advances it, wrapping modulo modulus.
func (s *State) NextWeight(modulus uint64) uint64 {
	cur := s.weightIndex.Load() % modulus
	s.weightIndex.Store((cur + 1) % modulus)
	return cur
}

func (s *State) Float64() float64 {
	return s.r.Float64()
}

func (s *State) Int63n(n int64) int64 {
	return s.r.Int63n(n)
}
