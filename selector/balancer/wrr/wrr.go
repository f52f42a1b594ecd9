// Package wrr is deterministic weighted round-robin. One cycle is
// weightTotal selections long and task i fills weight(i) consecutive slots
// of it, in registry order.
package wrr

import (
	"context"

	"github.com/kanengo/jobbalance/selector"
)

const Name = selector.WeightsPolling

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

	slot := int64(st.NextWeight(uint64(total)))
	var cum int64
	for i := 0; i < n; i++ {
		cum += weight(i)
		if slot < cum {
			return i, nil
		}
	}
	return n - 1, nil
}
