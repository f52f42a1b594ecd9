// Package tokenbucket adapts golang.org/x/time/rate to ratelimit.Limiter.
package tokenbucket

import (
	"golang.org/x/time/rate"

	"github.com/kanengo/jobbalance/middleware/ratelimit"
)

var _ ratelimit.Limiter = (*TokenBucket)(nil)

type TokenBucket struct {
	limiter *rate.Limiter
}

// New allows r jobs per second with bursts of up to burst jobs.
func New(r float64, burst int) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

func (tb *TokenBucket) Allow() error {
	if !tb.limiter.Allow() {
		return ratelimit.ErrTriggerLimit
	}
	return nil
}
