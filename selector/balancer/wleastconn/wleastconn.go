// Package wleastconn implements weightsMinimumConnection: every task gets a
// score mixing its weight, a random term and its share of the current load,
// and the lowest score wins.
package wleastconn

import (
	"context"

	"github.com/kanengo/jobbalance/selector"
)

const Name = selector.WeightsMinimumConnection

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
	best := -1
	var lowest float64
	for i, t := range in.Tasks {
		s := Score(t, in, st.Float64())
		if best < 0 || s < lowest {
			lowest = s
			best = i
		}
	}

	// weightIndex feeds nothing here; it is kept as an observable tick count.
	st.NextWeight(uint64(in.WeightTotal) + 1)

	return best, nil
}

// Score computes weight + draw*W + conns*W/C for one task, where W and C are
// the weight and connection totals of the call. When every weight is zero
// each task weighs 1 and W is the task count. The load term is zero when no
// task has connections.
func Score(t selector.Task, in *selector.Input, draw float64) float64 {
	w, wt := float64(t.Weight), float64(in.WeightTotal)
	if in.WeightTotal <= 0 {
		w, wt = 1, float64(len(in.Tasks))
	}
	s := w + draw*wt
	if in.ConnectionsTotal > 0 {
		s += float64(in.Connections.Get(t.ID)) * wt / float64(in.ConnectionsTotal)
	}
	return s
}
