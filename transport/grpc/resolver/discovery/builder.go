// Package discovery resolves discovery:///<service> targets from a
// registry.Discovery and hands each instance's weight to the balancer.
package discovery

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/resolver"

	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/registry"
)

var _ resolver.Builder = (*builder)(nil)

const (
	name = "discovery"
)

var ErrWatchTimeout = errors.ServiceUnavailable("DISCOVERY_TIMEOUT", "discovery create watcher timeout")

type Option func(o *builder)

func WithTimeout(timeout time.Duration) Option {
	return func(o *builder) {
		o.timeout = timeout
	}
}

// WithScheme selects which endpoint of an instance is dialled, grpc by default.
func WithScheme(scheme string) Option {
	return func(o *builder) {
		o.scheme = scheme
	}
}

type builder struct {
	timeout   time.Duration
	discovery registry.Discovery
	scheme    string
}

func NewBuilder(d registry.Discovery, opts ...Option) resolver.Builder {
	b := &builder{
		timeout:   time.Second * 10,
		discovery: d,
		scheme:    "grpc",
	}

	for _, o := range opts {
		o(b)
	}

	return b
}

func (b *builder) Build(target resolver.Target, cc resolver.ClientConn, opts resolver.BuildOptions) (resolver.Resolver, error) {
	watchRes := &struct {
		w   registry.Watcher
		err error
	}{}
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	serviceName := strings.TrimPrefix(target.URL.Path, "/")
	go func() {
		w, err := b.discovery.Watch(ctx, serviceName)
		watchRes.w = w
		watchRes.err = err
		close(done)
	}()

	var err error
	select {
	case <-done:
		err = watchRes.err
	case <-time.After(b.timeout):
		err = ErrWatchTimeout.WithMetadata(map[string]string{"service": serviceName})
	}
	if err != nil {
		cancel()
		log.Error("[resolver] discovery watch failed", zap.String("service", serviceName), zap.Error(err))
		return nil, err
	}

	r := &discoveryResolver{
		w:      watchRes.w,
		cc:     cc,
		ctx:    ctx,
		cancel: cancel,
		scheme: b.scheme,
	}

	go r.watch()

	return r, nil
}

func (b *builder) Scheme() string {
	return name
}
