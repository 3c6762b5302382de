// Package dashboard composes the four analytics panels behind one Selection.
//
// A Shell is mounted per browser session or terminal snapshot. It owns the
// Selection, feeds it to the P&L panel as that panel's dependency snapshot and
// fetches the sweep, seasonal and spread panels once. Panels load and fail
// independently of each other.
package dashboard

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundboard/internal/analytics"
	"github.com/sawpanic/fundboard/internal/metrics"
	"github.com/sawpanic/fundboard/internal/panel"
	"github.com/sawpanic/fundboard/internal/render"
)

type none = struct{}

// Shell is the top-level dashboard for one session
type Shell struct {
	id      string
	kind    string
	initial analytics.Selection
	metrics *metrics.Registry
	mounted map[string]bool

	ctx    context.Context
	cancel context.CancelFunc

	pnl      *panel.Controller[analytics.Selection, analytics.PnlSeries]
	sweep    *panel.Controller[none, []analytics.SweepRow]
	seasonal *panel.Controller[none, []analytics.WeekStat]
	spread   *panel.Controller[none, analytics.SpreadMetrics]

	// input serializes SetSelection so observes reach the P&L panel in input order
	input sync.Mutex

	mu        sync.Mutex
	selection analytics.Selection
	revisions map[string]uint64
	wake      chan struct{}
	closed    bool
}

// Option configures a Shell
type Option func(*Shell)

// WithMetrics records panel transitions, stale responses and session counts
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Shell) { s.metrics = m }
}

// WithKind labels the session in metrics and logs ("page", "websocket", "snapshot")
func WithKind(kind string) Option {
	return func(s *Shell) {
		if kind != "" {
			s.kind = kind
		}
	}
}

// WithPanels mounts only the named panels. Unknown names are ignored; the
// others never fetch and render as loading.
func WithPanels(names ...string) Option {
	return func(s *Shell) {
		s.mounted = make(map[string]bool, len(names))
		for _, n := range names {
			s.mounted[n] = true
		}
	}
}

// New mounts a shell for sel and starts the first fetch of every panel.
// Empty selection fields take the defaults. Close releases the shell.
func New(ctx context.Context, src analytics.Source, sel analytics.Selection, opts ...Option) *Shell {
	sel = sel.WithDefaults()
	ctx, cancel := context.WithCancel(ctx)

	s := &Shell{
		id:        uuid.NewString(),
		kind:      "page",
		initial:   sel,
		ctx:       ctx,
		cancel:    cancel,
		selection: sel,
		revisions: make(map[string]uint64, len(render.Panels)),
		wake:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	symbol := sel.Symbol
	s.pnl = panel.NewController[analytics.Selection, analytics.PnlSeries](ctx, render.PanelPnl,
		func(ctx context.Context, sel analytics.Selection) (analytics.PnlSeries, error) {
			return analytics.FetchPnl(ctx, src, sel)
		}, s.hooks(render.PanelPnl))
	s.sweep = panel.NewController[none, []analytics.SweepRow](ctx, render.PanelSweep,
		func(ctx context.Context, _ none) ([]analytics.SweepRow, error) {
			return analytics.FetchSweep(ctx, src, symbol)
		}, s.hooks(render.PanelSweep))
	s.seasonal = panel.NewController[none, []analytics.WeekStat](ctx, render.PanelSeasonal,
		func(ctx context.Context, _ none) ([]analytics.WeekStat, error) {
			return analytics.FetchWeekStats(ctx, src, symbol)
		}, s.hooks(render.PanelSeasonal))
	s.spread = panel.NewController[none, analytics.SpreadMetrics](ctx, render.PanelSpread,
		func(ctx context.Context, _ none) (analytics.SpreadMetrics, error) {
			return analytics.FetchSpreadMetrics(ctx, src)
		}, s.hooks(render.PanelSpread))

	s.pnl.Subscribe(func(panel.State[analytics.PnlSeries]) { s.bump(render.PanelPnl) })
	s.sweep.Subscribe(func(panel.State[[]analytics.SweepRow]) { s.bump(render.PanelSweep) })
	s.seasonal.Subscribe(func(panel.State[[]analytics.WeekStat]) { s.bump(render.PanelSeasonal) })
	s.spread.Subscribe(func(panel.State[analytics.SpreadMetrics]) { s.bump(render.PanelSpread) })

	s.metrics.SessionStarted(s.kind)
	log.Debug().
		Str("session", s.id).
		Str("kind", s.kind).
		Str("symbol", sel.Symbol).
		Str("strategy", sel.Strategy).
		Msg("Dashboard mounted")

	if s.isMounted(render.PanelPnl) {
		s.pnl.Observe(sel)
	}
	if s.isMounted(render.PanelSweep) {
		s.sweep.Observe(none{})
	}
	if s.isMounted(render.PanelSeasonal) {
		s.seasonal.Observe(none{})
	}
	if s.isMounted(render.PanelSpread) {
		s.spread.Observe(none{})
	}

	return s
}

func (s *Shell) isMounted(name string) bool {
	return s.mounted == nil || s.mounted[name]
}

// Panels lists the mounted panels in page order
func (s *Shell) Panels() []string {
	out := make([]string, 0, len(render.Panels))
	for _, name := range render.Panels {
		if s.isMounted(name) {
			out = append(out, name)
		}
	}
	return out
}

func (s *Shell) hooks(name string) panel.Option {
	return panel.WithHooks(panel.Hooks{
		OnTransition: func(p panel.Phase) { s.metrics.RecordTransition(name, p.String()) },
		OnStale:      func() { s.metrics.RecordStale(name) },
	})
}

// bump runs inside a controller listener, so it must only touch shell state
func (s *Shell) bump(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.revisions[name]++
	close(s.wake)
	s.wake = make(chan struct{})
}

// ID identifies the session in logs
func (s *Shell) ID() string {
	return s.id
}

// Selection returns the current selection
func (s *Shell) Selection() analytics.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SetSelection applies user input. Empty fields keep their current value.
// Only the P&L panel depends on the selection; it refetches when the pair
// changes and ignores an identical one. It returns whether a fetch was issued.
func (s *Shell) SetSelection(sel analytics.Selection) bool {
	s.input.Lock()
	defer s.input.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if sel.Symbol == "" {
		sel.Symbol = s.selection.Symbol
	}
	if sel.Strategy == "" {
		sel.Strategy = s.selection.Strategy
	}
	s.selection = sel
	s.mu.Unlock()

	if !s.isMounted(render.PanelPnl) {
		return false
	}
	issued := s.pnl.Observe(sel)
	if issued {
		log.Debug().
			Str("session", s.id).
			Str("symbol", sel.Symbol).
			Str("strategy", sel.Strategy).
			Msg("Selection changed")
	}
	return issued
}

// Views renders the mounted panels in page order
func (s *Shell) Views() []render.View {
	names := s.Panels()
	views := make([]render.View, 0, len(names))
	for _, name := range names {
		v, _ := s.View(name)
		views = append(views, v)
	}
	return views
}

// View renders one panel by name
func (s *Shell) View(name string) (render.View, bool) {
	switch name {
	case render.PanelPnl:
		// The title shows the selection the displayed state belongs to
		sel, st, _ := s.pnl.Snapshot()
		return render.PnL(st, sel), true
	case render.PanelSweep:
		return render.SweepSummary(s.sweep.State()), true
	case render.PanelSeasonal:
		return render.SeasonalPattern(s.seasonal.State()), true
	case render.PanelSpread:
		return render.SpreadMetrics(s.spread.State()), true
	}
	return render.View{}, false
}

// Updates returns a channel closed on the next committed panel state.
// Take it before reading Revisions so no change is missed.
func (s *Shell) Updates() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wake
}

// Revisions returns, per panel, how many states it has committed
func (s *Shell) Revisions() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.revisions))
	for k, v := range s.revisions {
		out[k] = v
	}
	return out
}

// Settled reports whether no mounted panel is loading
func (s *Shell) Settled() bool {
	for _, name := range s.Panels() {
		var ok bool
		switch name {
		case render.PanelPnl:
			ok = settled(s.pnl.State())
		case render.PanelSweep:
			ok = settled(s.sweep.State())
		case render.PanelSeasonal:
			ok = settled(s.seasonal.State())
		case render.PanelSpread:
			ok = settled(s.spread.State())
		}
		if !ok {
			return false
		}
	}
	return true
}

func settled(st panel.Phased) bool {
	return st != nil && st.Phase() != panel.PhaseLoading
}

// Settle blocks until every panel is Ready or Failed, or ctx ends
func (s *Shell) Settle(ctx context.Context) error {
	for {
		wake := s.Updates()
		if s.Settled() {
			return nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

// Done is closed when the shell is closed
func (s *Shell) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close unmounts every panel and cancels their in-flight fetches
func (s *Shell) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.pnl.Close()
	s.sweep.Close()
	s.seasonal.Close()
	s.spread.Close()
	s.cancel()

	s.metrics.SessionEnded()
	log.Debug().Str("session", s.id).Msg("Dashboard unmounted")
}

// Wait blocks until every fetch the shell issued has returned
func (s *Shell) Wait() {
	s.pnl.Wait()
	s.sweep.Wait()
	s.seasonal.Wait()
	s.spread.Wait()
}
