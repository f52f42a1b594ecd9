package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/balance"
	"github.com/kanengo/jobbalance/config"
	"github.com/kanengo/jobbalance/dispatcher"
	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/middleware"
	"github.com/kanengo/jobbalance/middleware/logging"
	"github.com/kanengo/jobbalance/middleware/ratelimit"
	"github.com/kanengo/jobbalance/middleware/ratelimit/leakybucket"
	"github.com/kanengo/jobbalance/middleware/ratelimit/tokenbucket"
	"github.com/kanengo/jobbalance/middleware/recovery"
	"github.com/kanengo/jobbalance/registry/etcd"
	"github.com/kanengo/jobbalance/selector"
)

// loadConfig reads the config file named by the root flags and installs the
// configured logger.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	logger, err := log.New(cfg.Logging.Log())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.SetLogger(logger)
	return cfg, nil
}

func newEtcdRegistry(cfg config.RegistryConfig) (*etcd.Registry, func(), error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect etcd: %w", err)
	}
	r := etcd.New(client, etcd.Namespace(cfg.Namespace), etcd.RegisterTTL(cfg.TTL), etcd.Timeout(cfg.DialTimeout))
	return r, func() { _ = client.Close() }, nil
}

func limiter(cfg config.RateLimitConfig) ratelimit.Limiter {
	switch cfg.Kind {
	case "leakybucket":
		return leakybucket.NewLeakyBucket(cfg.Capacity, cfg.FillRate)
	case "tokenbucket":
		return tokenbucket.New(cfg.Rate, cfg.Burst)
	}
	return nil
}

// newDispatcher wires the selector, middleware, metrics and task source
// described by cfg. The returned cleanup releases the etcd client, if any.
func newDispatcher(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*dispatcher.Dispatcher, func(), error) {
	var opts []selector.Option
	if cfg.Balancer.Seed != 0 {
		opts = append(opts, selector.WithSeed(cfg.Balancer.Seed))
	}
	sel, err := balance.New(cfg.Balancer.Algorithm, opts...)
	if err != nil {
		return nil, nil, err
	}

	metrics, err := dispatcher.NewMetrics(cfg.Metrics.Namespace, reg)
	if err != nil {
		return nil, nil, err
	}

	ms := []middleware.Middleware{recovery.Recovery(), logging.Logging()}
	if l := limiter(cfg.RateLimit); l != nil {
		ms = append(ms, ratelimit.RateLimit(l))
	}
	d := dispatcher.New(sel, dispatcher.WithMiddleware(ms...), dispatcher.WithMetrics(metrics))

	tasks, err := cfg.BuildTasks()
	if err != nil {
		return nil, nil, err
	}
	if err := d.Apply(tasks); err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if cfg.Registry.Enabled() {
		r, closeFn, err := newEtcdRegistry(cfg.Registry)
		if err != nil {
			return nil, nil, err
		}
		watchCtx, cancel := context.WithCancel(ctx)
		if err := d.WatchDiscovery(watchCtx, r, cfg.Registry.Service); err != nil {
			cancel()
			closeFn()
			return nil, nil, fmt.Errorf("watch %s: %w", cfg.Registry.Service, err)
		}
		cleanup = func() {
			cancel()
			closeFn()
		}
	}

	log.Info("dispatcher ready",
		zap.String("algorithm", sel.Algorithm().String()),
		zap.Int("tasks", len(d.Tasks())),
		zap.String("ratelimit", cfg.RateLimit.Kind),
	)
	return d, cleanup, nil
}
