// Package panel implements the per-panel fetch/view-state machine.
//
// A Controller is generic over its dependency snapshot D and result type T.
// Every Observe with new dependencies moves the panel to Loading and issues a
// fetch tagged with a sequence number; a response only commits when its tag
// still matches the controller's latest request. Superseded requests are not
// cancelled, their results are dropped on arrival.
package panel

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Fetcher loads the panel data for one dependency snapshot
type Fetcher[D comparable, T any] func(ctx context.Context, deps D) (T, error)

// Listener receives every committed state. It runs while the controller
// lock is held and must not call back into the controller.
type Listener[T any] func(State[T])

// Hooks observe the state machine for metrics and logging
type Hooks struct {
	OnTransition func(Phase)
	OnStale      func()
}

// Option configures a Controller
type Option func(*options)

type options struct {
	hooks Hooks
}

// WithHooks installs transition and stale-response callbacks
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// Controller owns the Loading/Ready/Failed lifecycle of one panel
type Controller[D comparable, T any] struct {
	name  string
	ctx   context.Context
	fetch Fetcher[D, T]
	hooks Hooks

	mu        sync.Mutex
	seq       uint64
	deps      D
	observed  bool
	closed    bool
	state     State[T]
	listeners []Listener[T]

	inflight sync.WaitGroup
}

// NewController creates an unmounted controller. ctx bounds every fetch it issues.
func NewController[D comparable, T any](ctx context.Context, name string, fetch Fetcher[D, T], opts ...Option) *Controller[D, T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[D, T]{
		name:  name,
		ctx:   ctx,
		fetch: fetch,
		hooks: o.hooks,
	}
}

// Subscribe registers a listener for committed states
func (c *Controller[D, T]) Subscribe(l Listener[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.listeners = append(c.listeners, l)
}

// Observe reports the current dependency snapshot. The first call and every
// call with deps different from the previous snapshot discard the current
// state, commit Loading and start a new fetch. It returns whether a fetch was issued.
func (c *Controller[D, T]) Observe(deps D) bool {
	c.mu.Lock()
	if c.closed || (c.observed && deps == c.deps) {
		c.mu.Unlock()
		return false
	}
	c.observed = true
	c.deps = deps
	c.seq++
	seq := c.seq
	c.commitLocked(Loading[T]{})
	c.inflight.Add(1)
	c.mu.Unlock()

	go c.run(seq, deps)
	return true
}

func (c *Controller[D, T]) run(seq uint64, deps D) {
	defer c.inflight.Done()

	next := c.load(deps)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.seq || deps != c.deps {
		if c.hooks.OnStale != nil {
			c.hooks.OnStale()
		}
		log.Debug().
			Str("panel", c.name).
			Uint64("seq", seq).
			Uint64("current_seq", c.seq).
			Msg("Discarding superseded panel response")
		return
	}
	c.commitLocked(next)
}

// load runs the fetcher and folds its outcome, including a panic, into a state
func (c *Controller[D, T]) load(deps D) (next State[T]) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panel", c.name).Interface("panic", r).Msg("Panel fetch panicked")
			next = Failed[T]{Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	data, err := c.fetch(c.ctx, deps)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error"
		}
		log.Warn().Str("panel", c.name).Err(err).Msg("Panel fetch failed")
		return Failed[T]{Message: msg}
	}
	return Ready[T]{Data: data}
}

func (c *Controller[D, T]) commitLocked(s State[T]) {
	c.state = s
	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(s.Phase())
	}
	for _, l := range c.listeners {
		l(s)
	}
}

// State returns the committed state, or nil before the first Observe
func (c *Controller[D, T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the committed state together with the dependency snapshot
// it belongs to, read under a single lock
func (c *Controller[D, T]) Snapshot() (D, State[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deps, c.state, c.observed
}

// Close unmounts the panel. Responses arriving afterwards are dropped and
// listeners are released.
func (c *Controller[D, T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.listeners = nil
}

// Wait blocks until every issued fetch has returned
func (c *Controller[D, T]) Wait() {
	c.inflight.Wait()
}
