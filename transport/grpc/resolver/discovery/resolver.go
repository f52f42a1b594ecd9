package discovery

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/attributes"
	"google.golang.org/grpc/resolver"

	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/registry"
)

var _ resolver.Resolver = (*discoveryResolver)(nil)

type discoveryResolver struct {
	w  registry.Watcher
	cc resolver.ClientConn

	ctx    context.Context
	cancel context.CancelFunc

	scheme string
}

func (r *discoveryResolver) ResolveNow(options resolver.ResolveNowOptions) {

}

func (r *discoveryResolver) Close() {
	r.cancel()
	err := r.w.Stop()
	if err != nil {
		log.Error("[resolver] failed to stop watcher", zap.Error(err))
	}
}

func (r *discoveryResolver) watch() {
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		ins, err := r.w.Next()
		if err != nil {
			if errors.Is(err, context.Canceled) || r.ctx.Err() != nil {
				return
			}
			log.Error("[resolver] failed to watch discovery", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		r.update(ins)
	}
}

func (r *discoveryResolver) update(ins []*registry.ServiceInstance) {
	addrs := buildAddresses(ins, r.scheme)
	if len(addrs) == 0 {
		log.Warn("[resolver] no endpoint found, keeping previous addresses", zap.Int("instances", len(ins)))
		return
	}

	err := r.cc.UpdateState(resolver.State{
		Addresses: addrs,
	})
	if err != nil {
		log.Error("[resolver] failed to update state", zap.Error(err))
	}
}

// buildAddresses keeps the first endpoint with scheme of every instance and
// attaches its weight for the balancer.
func buildAddresses(ins []*registry.ServiceInstance, scheme string) []resolver.Address {
	addrs := make([]resolver.Address, 0, len(ins))
	endpoints := make(map[string]struct{})

	for _, in := range ins {
		if in == nil {
			continue
		}
		ept, err := parseEndpoint(in.Endpoints, scheme)
		if err != nil {
			log.Error("[resolver] failed to parse discovery endpoint", zap.String("instance", in.ID), zap.Error(err))
			continue
		}
		if ept == "" {
			continue
		}
		if _, ok := endpoints[ept]; ok {
			continue
		}
		endpoints[ept] = struct{}{}

		var attrs *attributes.Attributes
		if w, ok := in.Metadata[registry.WeightKey]; ok {
			attrs = attributes.New(registry.WeightKey, w)
		}
		addrs = append(addrs, resolver.Address{
			Addr:               ept,
			ServerName:         in.Name,
			BalancerAttributes: attrs,
		})
	}
	return addrs
}

// parseEndpoint returns the host of the first endpoint using scheme, or ""
// when the instance exposes none.
func parseEndpoint(endpoints []string, scheme string) (string, error) {
	for _, e := range endpoints {
		u, err := url.Parse(e)
		if err != nil {
			return "", err
		}
		if u.Scheme == scheme {
			return u.Host, nil
		}
	}
	return "", nil
}
