package leakybucket

import (
	"sync"
	"time"

	"github.com/kanengo/jobbalance/middleware/ratelimit"
)

var (
	_ ratelimit.Limiter = (*LeakyBucket)(nil)
)

// LeakyBucket admits up to capacity jobs at once and regains one slot every
// fillRate.
type LeakyBucket struct {
	mu         sync.Mutex
	capacity   int64
	slots      int64
	fillRate   time.Duration
	lastFilled time.Time
	now        func() time.Time
}

func NewLeakyBucket(capacity int64, fillRate time.Duration) *LeakyBucket {
	return newLeakyBucket(capacity, fillRate, time.Now)
}

func newLeakyBucket(capacity int64, fillRate time.Duration, now func() time.Time) *LeakyBucket {
	return &LeakyBucket{
		capacity:   capacity,
		slots:      capacity,
		fillRate:   fillRate,
		lastFilled: now(),
		now:        now,
	}
}

// Allow takes one slot. The rejection carries the time until the next slot
// frees up as retry_after metadata.
func (lb *LeakyBucket) Allow() error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.acquire(1) {
		return nil
	}
	return ratelimit.ErrTriggerLimit.WithMetadata(map[string]string{
		"retry_after": lb.wait(1).String(),
	})
}

func (lb *LeakyBucket) TryAcquire(n int64) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.acquire(n)
}

// GetWaitTime reports how long until n slots are free.
func (lb *LeakyBucket) GetWaitTime(n int64) time.Duration {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.refill()
	return lb.wait(n)
}

func (lb *LeakyBucket) acquire(n int64) bool {
	lb.refill()
	if lb.slots < n {
		return false
	}
	lb.slots -= n
	return true
}

// refill credits whole slots only; the remainder of a partial interval is
// kept in lastFilled.
func (lb *LeakyBucket) refill() {
	elapsed := lb.now().Sub(lb.lastFilled)
	freed := int64(elapsed / lb.fillRate)
	if freed <= 0 {
		return
	}
	lb.slots = min(lb.slots+freed, lb.capacity)
	lb.lastFilled = lb.lastFilled.Add(time.Duration(freed) * lb.fillRate)
}

func (lb *LeakyBucket) wait(n int64) time.Duration {
	if lb.slots >= n {
		return 0
	}
	partial := lb.now().Sub(lb.lastFilled)
	return time.Duration(n-lb.slots)*lb.fillRate - partial
}
