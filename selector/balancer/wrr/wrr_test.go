package wrr

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanengo/jobbalance/selector"
	"github.com/kanengo/jobbalance/selector/selectortest"
)

func TestWeightsPollingCycle(t *testing.T) {
	tasks := selectortest.Tasks("a", 3, "b", 1)
	s := selector.New(Name, Builder{}.Build())
	ctx := context.Background()

	start := s.State().WeightIndex()
	for cycle := 0; cycle < 3; cycle++ {
		picked, err := s.SelectN(ctx, tasks, nil, 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "a", "a", "b"}, selectortest.IDs(picked))
		assert.Equal(t, start, s.State().WeightIndex()%4)
	}
}

func TestWeightsPollingZeroWeight(t *testing.T) {
	tasks := selectortest.Tasks("a", 0, "b", 2, "c", 1)
	s := selector.New(Name, Builder{}.Build())

	picked, err := s.SelectN(context.Background(), tasks, nil, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b", "c", "b", "b", "c"}, selectortest.IDs(picked))
}

func TestWeightsPollingAllZero(t *testing.T) {
	tasks := selectortest.Tasks("a", 0, "b", 0)
	s := selector.New(Name, Builder{}.Build())

	picked, err := s.SelectN(context.Background(), tasks, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, selectortest.IDs(picked))
}

func TestWeightsPollingConcurrent(t *testing.T) {
	tasks := selectortest.Tasks("a", 3, "b", 1, "c", 2)
	s := selector.New(Name, Builder{}.Build())

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[string]int{}
	)
	for g := 0; g < 6; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 600; i++ {
				got, err := s.Select(context.Background(), tasks, nil)
				if err != nil {
					t.Error(err)
					return
				}
				if idx := s.State().WeightIndex(); idx >= 6 {
					t.Errorf("weight index %d out of range", idx)
				}
				mu.Lock()
				counts[got.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 3600 selections is exactly 600 cycles of 6.
	assert.Equal(t, map[string]int{"a": 1800, "b": 600, "c": 1200}, counts)
	assert.Equal(t, uint64(0), s.State().WeightIndex())
}
