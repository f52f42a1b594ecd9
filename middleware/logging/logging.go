package logging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/middleware"
)

// Logging records every dispatched job with its duration. Failures are
// logged at warn with the error code and reason.
func Logging() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			reply, err := handler(ctx, req)
			fields := []zap.Field{
				zap.Any("req", req),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				se := errors.FromError(err)
				log.Warn("[dispatch] job failed", append(fields,
					zap.Int32("code", se.Code),
					zap.String("reason", se.Reason),
					zap.Error(err),
				)...)
				return reply, err
			}
			log.Debug("[dispatch] job done", fields...)
			return reply, nil
		}
	}
}
