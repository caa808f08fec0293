package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter hands out one token bucket per key.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*bucket
	limit rate.Limit
	burst int
	idle  time.Duration
}

// New creates a keyed limiter allowing perSec events with the given burst.
// Buckets unused for idle are evicted on the next Allow.
func New(perSec float64, burst int, idle time.Duration) *Limiter {
	return &Limiter{m: make(map[string]*bucket), limit: rate.Limit(perSec), burst: burst, idle: idle}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = b
	}
	b.seen = now
	l.evict(now)
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

func (l *Limiter) evict(now time.Time) {
	if l.idle <= 0 {
		return
	}
	for k, b := range l.m {
		if now.Sub(b.seen) > l.idle {
			delete(l.m, k)
		}
	}
}

// Size returns the number of tracked keys.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
