// Package weights picks a task with probability proportional to its weight
// using one draw over the cumulative weights. It serves both the weights and
// weightsRandom names.
package weights

import (
	"context"

	"github.com/kanengo/jobbalance/selector"
)

const (
	Name       = selector.Weights
	RandomName = selector.WeightsRandom
)

var _ selector.Balancer = (*Balancer)(nil)

type Builder struct{}

func (Builder) Build() selector.Balancer {
	return &Balancer{}
}

type Balancer struct{}

func (b *Balancer) Pick(_ context.Context, in *selector.Input, st *selector.State) (int, error) {
	n := len(in.Tasks)
	if n == 0 {
		return -1, selector.ErrNoAvailable
	}
	weight, total := selector.EffectiveWeights(in)

	r := st.Int63n(total)
	for i := 0; i < n; i++ {
		r -= weight(i)
		if r < 0 {
			return i, nil
		}
	}
	// unreachable while total is the sum of weights
	return n - 1, nil
}
