// Package grpc routes gRPC calls across the instances of a service with the
// job balancing algorithms.
package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcinsecure "google.golang.org/grpc/credentials/insecure"

	"github.com/kanengo/jobbalance/middleware"
	"github.com/kanengo/jobbalance/registry"
	"github.com/kanengo/jobbalance/selector"
	"github.com/kanengo/jobbalance/transport/grpc/resolver/discovery"
)

type ClientOption func(options *clientOptions)

// WithEndpoint sets the dial target, e.g. discovery:///workers.
func WithEndpoint(endpoint string) ClientOption {
	return func(options *clientOptions) {
		options.endpoint = endpoint
	}
}

func WithAlgorithm(alg selector.Algorithm) ClientOption {
	return func(options *clientOptions) {
		options.balancerName = BalancerName(alg)
	}
}

func WithTlsConfig(tlsConfig *tls.Config) ClientOption {
	return func(options *clientOptions) {
		options.tlsConf = tlsConfig
	}
}

// WithTimeout bounds every unary call; zero disables it.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(options *clientOptions) {
		options.timeout = timeout
	}
}

func WithMiddleware(ms ...middleware.Middleware) ClientOption {
	return func(options *clientOptions) {
		options.middleware = ms
	}
}

// WithDiscovery resolves discovery:/// targets through d.
func WithDiscovery(d registry.Discovery) ClientOption {
	return func(options *clientOptions) {
		options.discovery = d
	}
}

func WithUnaryInterceptor(in ...grpc.UnaryClientInterceptor) ClientOption {
	return func(options *clientOptions) {
		options.ints = in
	}
}

func WithOptions(opts ...grpc.DialOption) ClientOption {
	return func(options *clientOptions) {
		options.grpcOpts = opts
	}
}

type clientOptions struct {
	endpoint     string
	tlsConf      *tls.Config
	timeout      time.Duration
	middleware   []middleware.Middleware
	ints         []grpc.UnaryClientInterceptor
	grpcOpts     []grpc.DialOption
	discovery    registry.Discovery
	balancerName string
}

func Dial(ctx context.Context, opts ...ClientOption) (*grpc.ClientConn, error) {
	return dial(ctx, false, opts...)
}

func DialInsecure(ctx context.Context, opts ...ClientOption) (*grpc.ClientConn, error) {
	return dial(ctx, true, opts...)
}

func dial(ctx context.Context, insecure bool, opts ...ClientOption) (*grpc.ClientConn, error) {
	options := clientOptions{
		timeout:      2 * time.Second,
		balancerName: BalancerName(selector.Polling),
	}
	for _, o := range opts {
		o(&options)
	}

	ints := []grpc.UnaryClientInterceptor{
		unaryClientInterceptor(options.middleware, options.timeout),
	}

	if len(options.ints) > 0 {
		ints = append(ints, options.ints...)
	}

	grpcOpts := []grpc.DialOption{
		grpc.WithDefaultServiceConfig(fmt.Sprintf(`{"loadBalancingConfig": [{"%s":{}}]}`, options.balancerName)),
		grpc.WithChainUnaryInterceptor(ints...),
	}

	if options.discovery != nil {
		grpcOpts = append(grpcOpts, grpc.WithResolvers(discovery.NewBuilder(options.discovery)))
	}

	if insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(grpcinsecure.NewCredentials()))
	}

	if options.tlsConf != nil {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(credentials.NewTLS(options.tlsConf)))
	}

	if len(options.grpcOpts) > 0 {
		grpcOpts = append(grpcOpts, options.grpcOpts...)
	}

	return grpc.DialContext(ctx, options.endpoint, grpcOpts...)
}

// unaryClientInterceptor runs the job middleware around every call. The
// middleware sees the request message and the call context, so a target set
// with metadata.WithTarget reaches the specify picker.
func unaryClientInterceptor(ms []middleware.Middleware, timeout time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		h := func(ctx context.Context, req any) (any, error) {
			return reply, invoker(ctx, method, req, reply, cc, opts...)
		}

		if len(ms) > 0 {
			h = middleware.Chain(ms...)(h)
		}

		_, err := h(ctx, req)

		return err
	}
}
