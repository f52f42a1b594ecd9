package selector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/metadata"
)

var (
	ErrNoAvailable   = errors.ServiceUnavailable("NO_CANDIDATES", "no available task")
	ErrUnknownTarget = errors.NotFound("UNKNOWN_TARGET", "target task not in registry")
	ErrBalancerPanic = errors.InternalServer("BALANCER_PANIC", "balancer panicked")
	ErrInvalidCount  = errors.BadRequest("INVALID_COUNT", "selection count must not be negative")
)

// IsNoSelection reports whether err is one of the recoverable outcomes of a
// selection: nothing to pick from, or the sticky target is gone.
func IsNoSelection(err error) bool {
	return errors.Reason(err) == ErrNoAvailable.Reason || errors.Reason(err) == ErrUnknownTarget.Reason
}

// Selector is the engine entry point. It is safe for concurrent use; the
// task list and connection snapshot are values supplied per call.
type Selector struct {
	algorithm Algorithm
	balancer  Balancer
	state     *State
}

func New(algorithm Algorithm, balancer Balancer, opts ...Option) *Selector {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	st := o.state
	if st == nil {
		st = NewState(o.src)
	}
	return &Selector{
		algorithm: algorithm,
		balancer:  balancer,
		state:     st,
	}
}

func (s *Selector) Algorithm() Algorithm {
	return s.algorithm
}

func (s *Selector) State() *State {
	return s.state
}

func (s *Selector) Select(ctx context.Context, tasks []Task, conns Connections, opts ...SelectOption) (Task, error) {
	var options SelectOptions
	for _, opt := range opts {
		opt(&options)
	}

	candidates := tasks
	for _, filter := range options.TaskFilters {
		candidates = filter(ctx, candidates)
	}
	if len(candidates) == 0 {
		return Task{}, ErrNoAvailable
	}

	target := options.Target
	if target == "" {
		target = metadata.Target(ctx)
	}

	weightTotal, err := CheckWeights(candidates)
	if err != nil {
		return Task{}, err
	}

	in := &Input{
		Tasks:            candidates,
		WeightTotal:      weightTotal,
		Connections:      conns,
		ConnectionsTotal: conns.Total(candidates),
		Target:           target,
	}

	idx, err := s.pick(ctx, in)
	if err != nil {
		return Task{}, err
	}
	if idx < 0 || idx >= len(candidates) {
		return Task{}, ErrBalancerPanic.WithCause(fmt.Errorf("%s returned index %d of %d", s.algorithm, idx, len(candidates)))
	}

	return candidates[idx], nil
}

// SelectN runs count successive selections. Stateful algorithms advance once
// per selection, so the result follows their rotation.
func (s *Selector) SelectN(ctx context.Context, tasks []Task, conns Connections, count int, opts ...SelectOption) ([]Task, error) {
	if count < 0 {
		return nil, ErrInvalidCount.WithMetadata(map[string]string{"count": strconv.Itoa(count)})
	}
	selected := make([]Task, 0, count)
	for i := 0; i < count; i++ {
		t, err := s.Select(ctx, tasks, conns, opts...)
		if err != nil {
			return selected, err
		}
		selected = append(selected, t)
	}
	return selected, nil
}

func (s *Selector) pick(ctx context.Context, in *Input) (idx int, err error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = ErrBalancerPanic.WithCause(fmt.Errorf("%s: %v", s.algorithm, r))
		}
	}()
	return s.balancer.Pick(ctx, in, s.state)
}
