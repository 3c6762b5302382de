package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound analytics requests with one token bucket per endpoint
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     float64
	burst   int
}

// NewLimiter creates a limiter allowing rps requests per second per endpoint
// with the given burst capacity.
func NewLimiter(rps float64, burst int) (*Limiter, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("rps must be positive, got %f", rps)
	}
	if burst < 1 {
		return nil, fmt.Errorf("burst must be at least 1, got %d", burst)
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rps,
		burst:   burst,
	}, nil
}

func (l *Limiter) bucket(endpoint string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[endpoint]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.buckets[endpoint] = b
	}
	return b
}

// Wait blocks until a request to endpoint may proceed or ctx is done
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	return l.bucket(endpoint).Wait(ctx)
}

// Tokens returns the tokens currently available for endpoint
func (l *Limiter) Tokens(endpoint string) float64 {
	return l.bucket(endpoint).Tokens()
}
