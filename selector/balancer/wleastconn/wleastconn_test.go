package wleastconn

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanengo/jobbalance/selector"
	"github.com/kanengo/jobbalance/selector/selectortest"
)

func TestZeroDrawTieKeepsFirst(t *testing.T) {
	tasks := selectortest.Tasks("A", 1, "B", 1)
	s := selector.New(Name, Builder{}.Build(), selector.WithSource(selectortest.FixedSource{F: 0}))

	got, err := s.Select(context.Background(), tasks, selector.Connections{})
	require.NoError(t, err)
	assert.Equal(t, "A", got.ID)
	assert.Equal(t, uint64(1), s.State().WeightIndex())
}

func TestScoreWithoutConnections(t *testing.T) {
	in := &selector.Input{
		Tasks:       selectortest.Tasks("A", 2, "B", 1),
		WeightTotal: 3,
	}
	s := Score(in.Tasks[0], in, 0.5)
	assert.False(t, math.IsNaN(s) || math.IsInf(s, 0))
	assert.Equal(t, 3.5, s)
}

func TestChosenScoreIsMinimum(t *testing.T) {
	tasks := selectortest.Tasks("A", 4, "B", 1, "C", 2, "D", 3)
	conns := selector.Connections{"A": 1, "B": 6, "C": 0, "D": 2}
	src := &selectortest.SeqSource{Floats: []float64{0.91, 0.13, 0.57, 0.02, 0.44, 0.76, 0.3}}
	s := selector.New(Name, Builder{}.Build(), selector.WithSource(src))
	ctx := context.Background()

	in := &selector.Input{
		Tasks:            tasks,
		WeightTotal:      selector.WeightTotal(tasks),
		Connections:      conns,
		ConnectionsTotal: conns.Total(tasks),
	}
	for round := 0; round < 10; round++ {
		got, err := s.Select(ctx, tasks, conns)
		require.NoError(t, err)

		draws := src.Drawn[round*len(tasks) : (round+1)*len(tasks)]
		best := math.Inf(1)
		bestID := ""
		for i, task := range tasks {
			if sc := Score(task, in, draws[i]); sc < best {
				best = sc
				bestID = task.ID
			}
		}
		assert.Equal(t, bestID, got.ID, "round %d", round)
	}
}

func TestWeightIndexWraps(t *testing.T) {
	tasks := selectortest.Tasks("A", 1, "B", 1)
	s := selector.New(Name, Builder{}.Build(), selector.WithSeed(3))

	// modulus is weightTotal+1 = 3
	for i := 1; i <= 7; i++ {
		_, err := s.Select(context.Background(), tasks, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(i%3), s.State().WeightIndex())
	}
}

func TestWeightIndexConcurrent(t *testing.T) {
	tasks := selectortest.Tasks("A", 2, "B", 1, "C", 1)
	conns := selector.Connections{"A": 3, "B": 1}
	s := selector.New(Name, Builder{}.Build(), selector.WithSeed(9))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				if _, err := s.Select(context.Background(), tasks, conns); err != nil {
					t.Error(err)
					return
				}
				if idx := s.State().WeightIndex(); idx > 4 {
					t.Errorf("weight index %d out of range", idx)
				}
			}
		}()
	}
	wg.Wait()

	// 2000 ticks modulo 5
	assert.Equal(t, uint64(0), s.State().WeightIndex())
}

func TestAllZeroWeightsStillLoadAware(t *testing.T) {
	tasks := selectortest.Tasks("a", 0, "b", 0)
	conns := selector.Connections{"a": 100}
	s := selector.New(Name, Builder{}.Build(), selector.WithSource(selectortest.FixedSource{F: 0}))

	got, err := s.Select(context.Background(), tasks, conns)
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	in := &selector.Input{Tasks: tasks, Connections: conns, ConnectionsTotal: 100}
	assert.Equal(t, 3.0, Score(tasks[0], in, 0))
	assert.Equal(t, 1.0, Score(tasks[1], in, 0))
}
