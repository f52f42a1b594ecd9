package random

import (
	"context"

	"github.com/kanengo/jobbalance/selector"
)

const Name = selector.Random

var _ selector.Balancer = (*Balancer)(nil)

type Builder struct{}

func (Builder) Build() selector.Balancer {
	return &Balancer{}
}

// Balancer picks uniformly, ignoring weights.
type Balancer struct{}

func (b *Balancer) Pick(_ context.Context, in *selector.Input, st *selector.State) (int, error) {
	if len(in.Tasks) == 0 {
		return -1, selector.ErrNoAvailable
	}
	return int(st.Int63n(int64(len(in.Tasks)))), nil
}
