// Package middleware provides HTTP middleware for traceboard.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// maxClientBuckets caps the number of tracked client IPs so an address
	// scan cannot grow the table without bound.
	maxClientBuckets = 100_000

	// Idle buckets older than bucketIdleAge are evicted on each sweep.
	bucketIdleAge  = 10 * time.Minute
	bucketSweepGap = 5 * time.Minute
)

// RateLimiter is a per-client-IP token bucket limiter.
type RateLimiter struct {
	mu     sync.Mutex
	perIP  map[string]*tokenBucket
	perSec int
	burst  int
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing ratePerSec sustained requests
// with the given burst per client IP. A background sweeper evicts idle
// buckets until ctx is cancelled.
func NewRateLimiter(ctx context.Context, ratePerSec, burst int) *RateLimiter {
	rl := &RateLimiter{
		perIP:  make(map[string]*tokenBucket),
		perSec: ratePerSec,
		burst:  burst,
	}
	go rl.sweep(ctx)

	return rl
}

// take spends one token for ip. tableFull reports that the client table was
// at capacity and the ip is not being tracked at all.
func (rl *RateLimiter) take(ip string) (allowed, tableFull bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.perIP[ip]
	if !ok {
		if len(rl.perIP) >= maxClientBuckets {
			return false, true
		}
		b = &tokenBucket{tokens: rl.burst, lastRefill: time.Now()}
		rl.perIP[ip] = b
	}

	now := time.Now()
	refill := int(now.Sub(b.lastRefill).Seconds() * float64(rl.perSec))
	if refill > 0 {
		b.tokens = min(b.tokens+refill, rl.burst)
		b.lastRefill = now
	}

	if b.tokens == 0 {
		return false, false
	}
	b.tokens--

	return true, false
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(bucketSweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.perIP {
				if now.Sub(b.lastRefill) > bucketIdleAge {
					delete(rl.perIP, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Handler returns Gin middleware enforcing the limiter per client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// ClientIP is spoof-safe here: the router calls
		// SetTrustedProxies(nil), so forwarded-for headers are ignored.
		allowed, tableFull := rl.take(c.ClientIP())
		if tableFull {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many clients")
			return
		}
		if !allowed {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}

		c.Next()
	}
}
