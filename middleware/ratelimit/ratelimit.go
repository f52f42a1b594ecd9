package ratelimit

import (
	"context"

	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/middleware"
)

type Limiter interface {
	Allow() error
}

var ErrTriggerLimit = errors.ServiceUnavailable("RATE_LIMITED", "dispatch rate limit reached, please try again later")

// RateLimit rejects jobs before they reach the balancer once limiter runs dry.
func RateLimit(limiter Limiter) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			if err := limiter.Allow(); err != nil {
				return nil, ErrTriggerLimit.WithCause(err)
			}
			return handler(ctx, req)
		}
	}
}
