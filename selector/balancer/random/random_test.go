package random

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanengo/jobbalance/selector"
	"github.com/kanengo/jobbalance/selector/selectortest"
)

func TestRandomIgnoresWeight(t *testing.T) {
	tasks := selectortest.Tasks("a", 100, "b", 0, "c", 1)
	s := selector.New(Name, Builder{}.Build(), selector.WithSeed(1))

	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		got, err := s.Select(context.Background(), tasks, nil)
		require.NoError(t, err)
		counts[got.ID]++
	}
	for _, id := range []string{"a", "b", "c"} {
		assert.InDelta(t, 1000, counts[id], 200, id)
	}
}

func TestRandomFixedDraw(t *testing.T) {
	tasks := selectortest.Tasks("a", 1, "b", 1, "c", 1)
	s := selector.New(Name, Builder{}.Build(), selector.WithSource(selectortest.FixedSource{N: 2}))
	got, err := s.Select(context.Background(), tasks, nil)
	require.NoError(t, err)
	assert.Equal(t, "c", got.ID)
}
