// Package specify routes to the task named by the caller (sticky routing).
package specify

import (
	"context"

	"github.com/kanengo/jobbalance/selector"
)

const Name = selector.Specify

var _ selector.Balancer = (*Balancer)(nil)

type Builder struct{}

func (Builder) Build() selector.Balancer {
	return &Balancer{}
}

type Balancer struct{}

func (b *Balancer) Pick(_ context.Context, in *selector.Input, _ *selector.State) (int, error) {
	if len(in.Tasks) == 0 {
		return -1, selector.ErrNoAvailable
	}
	for i, t := range in.Tasks {
		if t.ID == in.Target {
			return i, nil
		}
	}
	return -1, selector.ErrUnknownTarget.WithMetadata(map[string]string{"target": in.Target})
}
