// Package leastconn implements the minimumConnection algorithm.
package leastconn

import (
	"context"

	"github.com/kanengo/jobbalance/selector"
)

const Name = selector.MinimumConnection

var _ selector.Balancer = (*Balancer)(nil)

type Builder struct{}

func (Builder) Build() selector.Balancer {
	return &Balancer{}
}

type Balancer struct{}

// Pick returns the least loaded task. On ties the earliest task in registry
// order wins.
func (b *Balancer) Pick(_ context.Context, in *selector.Input, _ *selector.State) (int, error) {
	if len(in.Tasks) == 0 {
		return -1, selector.ErrNoAvailable
	}
	best := 0
	lowest := in.Connections.Get(in.Tasks[0].ID)
	for i := 1; i < len(in.Tasks); i++ {
		if c := in.Connections.Get(in.Tasks[i].ID); c < lowest {
			lowest = c
			best = i
		}
	}
	return best, nil
}
