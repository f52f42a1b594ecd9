// Package selectortest provides deterministic random sources for testing
// balancers.
package selectortest

import (
	"sync"

	"github.com/kanengo/jobbalance/selector"
)

var (
	_ selector.Source = (*FixedSource)(nil)
	_ selector.Source = (*SeqSource)(nil)
)

// FixedSource always returns the same draws.
type FixedSource struct {
	F float64
	N int64
}

func (s FixedSource) Float64() float64 {
	return s.F
}

// Int63n returns N clamped into [0, n).
func (s FixedSource) Int63n(n int64) int64 {
	return s.N % n
}

// SeqSource replays Floats and Ints in order, wrapping around, and records
// every Float64 it handed out.
type SeqSource struct {
	mu     sync.Mutex
	Floats []float64
	Ints   []int64
	fi, ii int
	Drawn  []float64
}

func (s *SeqSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f float64
	if len(s.Floats) > 0 {
		f = s.Floats[s.fi%len(s.Floats)]
		s.fi++
	}
	s.Drawn = append(s.Drawn, f)
	return f
}

func (s *SeqSource) Int63n(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	return v % n
}

// Tasks builds a registry from id/weight pairs given as alternating
// arguments: Tasks("a", 3, "b", 1).
func Tasks(pairs ...any) []selector.Task {
	tasks := make([]selector.Task, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tasks = append(tasks, selector.Task{ID: pairs[i].(string), Weight: int64(pairs[i+1].(int))})
	}
	return tasks
}

// IDs flattens tasks to their ids.
func IDs(tasks []selector.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
