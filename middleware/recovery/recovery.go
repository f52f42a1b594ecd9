package recovery

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/middleware"
)

var ErrUnknownPanic = errors.InternalServer("BALANCER_PANIC", "unknown panic during dispatch")

type HandlerFunc func(ctx context.Context, req, p any) error

type Option func(*options)

type options struct {
	handler HandlerFunc
}

// WithHandler customises the error returned for a recovered panic.
func WithHandler(h HandlerFunc) Option {
	return func(o *options) {
		o.handler = h
	}
}

// Recovery turns a panic anywhere below it into an error and logs the stack,
// so a faulty runner or balancer never takes the dispatching goroutine down.
func Recovery(opts ...Option) middleware.Middleware {
	op := options{
		handler: func(ctx context.Context, req, p any) error {
			return ErrUnknownPanic.WithCause(fmt.Errorf("%v", p))
		},
	}
	for _, o := range opts {
		o(&op)
	}
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (reply any, err error) {
			defer func() {
				if p := recover(); p != nil {
					buf := make([]byte, 64<<10)
					n := runtime.Stack(buf, false)
					log.Error("[recovery] dispatch panicked", zap.Any("panic", p), zap.ByteString("stack", buf[:n]))
					err = op.handler(ctx, req, p)
				}
			}()
			return handler(ctx, req)
		}
	}
}
