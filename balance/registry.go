// Package balance is the algorithm registry: it maps an algorithm name from
// configuration to the balancer implementing it and builds selectors.
package balance

import (
	"github.com/kanengo/jobbalance/selector"
	"github.com/kanengo/jobbalance/selector/balancer/leastconn"
	"github.com/kanengo/jobbalance/selector/balancer/polling"
	"github.com/kanengo/jobbalance/selector/balancer/random"
	"github.com/kanengo/jobbalance/selector/balancer/specify"
	"github.com/kanengo/jobbalance/selector/balancer/weights"
	"github.com/kanengo/jobbalance/selector/balancer/wleastconn"
	"github.com/kanengo/jobbalance/selector/balancer/wrr"
)

// Builder resolves the balancer builder for a. Every Algorithm constant has a
// case here; anything else is a configuration error.
func Builder(a selector.Algorithm) (selector.BalancerBuilder, error) {
	switch a {
	case polling.Name:
		return polling.Builder{}, nil
	case weights.Name, weights.RandomName:
		return weights.Builder{}, nil
	case random.Name:
		return random.Builder{}, nil
	case specify.Name:
		return specify.Builder{}, nil
	case leastconn.Name:
		return leastconn.Builder{}, nil
	case wrr.Name:
		return wrr.Builder{}, nil
	case wleastconn.Name:
		return wleastconn.Builder{}, nil
	}
	return nil, selector.ErrUnknownAlgorithm.WithMetadata(map[string]string{"algorithm": string(a)})
}

// New builds a selector for the named algorithm. An unknown name fails here,
// never at the first selection.
func New(name string, opts ...selector.Option) (*selector.Selector, error) {
	a, err := selector.ParseAlgorithm(name)
	if err != nil {
		return nil, err
	}
	b, err := Builder(a)
	if err != nil {
		return nil, err
	}
	return selector.New(a, b.Build(), opts...), nil
}

// MustNew is New for algorithm names known at compile time.
func MustNew(a selector.Algorithm, opts ...selector.Option) *selector.Selector {
	s, err := New(string(a), opts...)
	if err != nil {
		panic(err)
	}
	return s
}
