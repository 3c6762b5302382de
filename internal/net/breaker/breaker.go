package breaker

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
)

// Config controls when the analytics API breaker trips and how long it stays open
type Config struct {
	Name                string
	ConsecutiveFailures uint32
	Interval            time.Duration
	OpenTimeout         time.Duration
}

// Breaker guards calls to the analytics API. Only failures the callback
// returns as errors count toward tripping.
type Breaker struct{ cb *cb.CircuitBreaker }

func New(cfg Config) *Breaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 3
	}
	st := cb.Settings{Name: cfg.Name}
	st.Interval = cfg.Interval
	st.Timeout = cfg.OpenTimeout
	if st.Timeout <= 0 {
		st.Timeout = 30 * time.Second
	}
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State returns "closed", "half-open" or "open"
func (b *Breaker) State() string { return b.cb.State().String() }

// IsOpen reports whether err was produced by the breaker refusing a call
func IsOpen(err error) bool {
	return errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests)
}
