package selector

import (
	"context"
)

// Input is what every balancer sees on one selection. The totals are
// computed once per call by the Selector.
type Input struct {
	Tasks            []Task
	WeightTotal      int64
	Connections      Connections
	ConnectionsTotal int64
	// Target is the sticky task id used by the specify algorithm.
	Target string
}

// Balancer picks one task out of in.Tasks and returns its index. Balancers
// keep no state of their own; anything that has to survive between calls
// lives in State, which the Selector locks around Pick.
type Balancer interface {
	Pick(ctx context.Context, in *Input, st *State) (int, error)
}

type BalancerBuilder interface {
	Build() Balancer
}

// BalancerFunc adapts a plain function to Balancer and BalancerBuilder.
type BalancerFunc func(ctx context.Context, in *Input, st *State) (int, error)

func (f BalancerFunc) Pick(ctx context.Context, in *Input, st *State) (int, error) {
	return f(ctx, in, st)
}

func (f BalancerFunc) Build() Balancer {
	return f
}
