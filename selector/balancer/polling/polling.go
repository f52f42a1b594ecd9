// Package polling is plain round-robin in registry order; weights are
// ignored.
package polling

import (
	"context"

	"github.com/kanengo/jobbalance/selector"
)

const Name = selector.Polling

var _ selector.Balancer = (*Balancer)(nil)

type Builder struct{}

func (Builder) Build() selector.Balancer {
	return &Balancer{}
}

type Balancer struct{}

func (b *Balancer) Pick(_ context.Context, in *selector.Input, st *selector.State) (int, error) {
	if len(in.Tasks) == 0 {
		return -1, selector.ErrNoAvailable
	}
	return st.NextRotation(len(in.Tasks)), nil
}
