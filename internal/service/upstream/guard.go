package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("upstream circuit open")

// Settings tunes a Guard.
type Settings struct {
	Name            string
	RatePerSec      float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Guard paces outbound calls and trips after consecutive failures.
type Guard struct {
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

func NewGuard(s Settings) *Guard {
	if s.Burst <= 0 {
		s.Burst = 1
	}
	lim := rate.Inf
	if s.RatePerSec > 0 {
		lim = rate.Limit(s.RatePerSec)
	}
	failures := s.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	st := gobreaker.Settings{Name: s.Name, Timeout: s.BreakerTimeout}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	return &Guard{
		limiter: rate.NewLimiter(lim, s.Burst),
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// Wait blocks until the limiter grants a token or ctx ends.
func (g *Guard) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Do runs fn through the breaker.
func Do[T any](g *Guard, fn func() (T, error)) (T, error) {
	var zero T
	out, err := g.cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %w", g.cb.Name(), ErrCircuitOpen)
		}
		return zero, err
	}
	return out.(T), nil
}

// State reports the breaker state name.
func (g *Guard) State() string { return g.cb.State().String() }
