package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundboard/internal/analytics"
	"github.com/sawpanic/fundboard/internal/metrics"
	"github.com/sawpanic/fundboard/internal/render"
)

type handlerFunc func(ctx context.Context, query map[string]string) (json.RawMessage, error)

// fakeSource dispatches by endpoint and records every call
type fakeSource struct {
	mu       sync.Mutex
	handlers map[analytics.Endpoint]handlerFunc
	calls    []call
}

type call struct {
	endpoint analytics.Endpoint
	query    map[string]string
}

func newFakeSource() *fakeSource {
	ok := func(body string) handlerFunc {
		return func(context.Context, map[string]string) (json.RawMessage, error) {
			return json.RawMessage(body), nil
		}
	}
	return &fakeSource{handlers: map[analytics.Endpoint]handlerFunc{
		analytics.EndpointPnl:           ok(`[{"date":"2024-01-02","value":100}]`),
		analytics.EndpointSweepSummary:  ok(`[{"period":20,"devfactor":2,"stake":1,"total_return":0.1,"sharpe":1.2,"max_drawdown":-0.05}]`),
		analytics.EndpointSeasonalStats: ok(`[{"weekday":"Monday","avg_return":0.001,"t_stat":1.5}]`),
		analytics.EndpointSpreadMetrics: ok(`{"symbol1":"KO","symbol2":"PEP","sharpe":1.1}`),
	}}
}

func (f *fakeSource) handle(ep analytics.Endpoint, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[ep] = h
}

func (f *fakeSource) Fetch(ctx context.Context, ep analytics.Endpoint, query map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{endpoint: ep, query: query})
	h := f.handlers[ep]
	f.mu.Unlock()
	return h(ctx, query)
}

func (f *fakeSource) callsTo(ep analytics.Endpoint) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.endpoint == ep {
			out = append(out, c)
		}
	}
	return out
}

func settle(t *testing.T, s *Shell) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

func viewOf(t *testing.T, s *Shell, name string) render.View {
	t.Helper()
	v, ok := s.View(name)
	require.True(t, ok)
	return v
}

func TestShell_MountLoadsEveryPanel(t *testing.T) {
	src := newFakeSource()
	s := New(context.Background(), src, analytics.Selection{})
	defer s.Close()

	assert.Equal(t, analytics.DefaultSelection(), s.Selection())
	settle(t, s)

	views := s.Views()
	require.Len(t, views, 4)
	assert.Equal(t, render.KindChart, views[0].Kind)
	assert.Equal(t, "P&L (AAPL, mean_reversion)", views[0].Title)
	assert.Equal(t, render.KindTable, views[1].Kind)
	assert.Equal(t, render.KindTable, views[2].Kind)
	assert.Equal(t, "Spread Metrics KO/PEP", views[3].Card.Title)

	pnl := src.callsTo(analytics.EndpointPnl)
	require.Len(t, pnl, 1)
	assert.Equal(t, map[string]string{"symbol": "AAPL", "strategy": "mean_reversion"}, pnl[0].query)

	sweep := src.callsTo(analytics.EndpointSweepSummary)
	require.Len(t, sweep, 1)
	assert.Equal(t, "AAPL", sweep[0].query["symbol"])
}

func TestShell_FailingPanelDoesNotBlockOthers(t *testing.T) {
	src := newFakeSource()
	src.handle(analytics.EndpointSpreadMetrics, func(ctx context.Context, _ map[string]string) (json.RawMessage, error) {
		return nil, &analytics.ClientError{Kind: analytics.KindNetwork, Message: "timeout of 5000ms exceeded"}
	})

	s := New(context.Background(), src, analytics.DefaultSelection())
	defer s.Close()
	settle(t, s)

	spread := viewOf(t, s, render.PanelSpread)
	assert.Equal(t, render.KindError, spread.Kind)
	assert.Equal(t, "Error: timeout of 5000ms exceeded", spread.Message)

	assert.Equal(t, render.KindChart, viewOf(t, s, render.PanelPnl).Kind)
	assert.Equal(t, render.KindTable, viewOf(t, s, render.PanelSweep).Kind)
	assert.Equal(t, "ready", viewOf(t, s, render.PanelSeasonal).State)
}

func TestShell_SelectionChangeRefetchesOnlyPnl(t *testing.T) {
	src := newFakeSource()
	gate := make(chan struct{})
	src.handle(analytics.EndpointPnl, func(ctx context.Context, q map[string]string) (json.RawMessage, error) {
		if q["symbol"] == "MSFT" {
			<-gate
		}
		return json.RawMessage(`[]`), nil
	})

	s := New(context.Background(), src, analytics.DefaultSelection())
	defer s.Close()
	settle(t, s)

	assert.True(t, s.SetSelection(analytics.Selection{Symbol: "MSFT"}))
	assert.Equal(t, analytics.Selection{Symbol: "MSFT", Strategy: "mean_reversion"}, s.Selection())

	v := viewOf(t, s, render.PanelPnl)
	assert.Equal(t, render.MsgLoadingPnl, v.Message)
	assert.Equal(t, "P&L (MSFT, mean_reversion)", v.Title)
	assert.False(t, s.Settled())

	assert.False(t, s.SetSelection(analytics.Selection{Symbol: "MSFT", Strategy: "mean_reversion"}), "identical selection is a no-op")

	close(gate)
	settle(t, s)
	assert.Equal(t, render.MsgNoPnlData, viewOf(t, s, render.PanelPnl).Message)

	assert.Len(t, src.callsTo(analytics.EndpointPnl), 2)
	assert.Len(t, src.callsTo(analytics.EndpointSweepSummary), 1)
	assert.Len(t, src.callsTo(analytics.EndpointSeasonalStats), 1)
	assert.Len(t, src.callsTo(analytics.EndpointSpreadMetrics), 1)
}

func TestShell_LastSelectionWins(t *testing.T) {
	src := newFakeSource()
	gates := map[string]chan struct{}{"AAA": make(chan struct{}), "BBB": make(chan struct{})}
	src.handle(analytics.EndpointPnl, func(ctx context.Context, q map[string]string) (json.RawMessage, error) {
		if g, ok := gates[q["symbol"]]; ok {
			<-g
		}
		return json.RawMessage(`[{"date":"2024-01-02","value":1},{"date":"2024-01-03","value":2}]`), nil
	})
	reg := metrics.NewRegistry()

	s := New(context.Background(), src, analytics.Selection{Symbol: "AAA"}, WithMetrics(reg))
	defer s.Close()

	s.SetSelection(analytics.Selection{Symbol: "BBB"})
	close(gates["BBB"])
	settle(t, s)
	assert.Equal(t, "P&L (BBB, mean_reversion)", viewOf(t, s, render.PanelPnl).Title)

	close(gates["AAA"])
	s.Wait()

	v := viewOf(t, s, render.PanelPnl)
	assert.Equal(t, "P&L (BBB, mean_reversion)", v.Title)
	assert.Equal(t, render.KindChart, v.Kind)
}

func TestShell_UpdatesAndRevisions(t *testing.T) {
	src := newFakeSource()
	s := New(context.Background(), src, analytics.DefaultSelection())
	defer s.Close()
	settle(t, s)

	before := s.Revisions()
	for _, name := range render.Panels {
		assert.GreaterOrEqual(t, before[name], uint64(2), name)
	}

	wake := s.Updates()
	s.SetSelection(analytics.Selection{Strategy: "mean_reversion_rsi"})

	select {
	case <-wake:
	case <-time.After(2 * time.Second):
		t.Fatal("no update after selection change")
	}
	settle(t, s)

	after := s.Revisions()
	assert.Greater(t, after[render.PanelPnl], before[render.PanelPnl])
	assert.Equal(t, before[render.PanelSpread], after[render.PanelSpread])
}

func TestShell_CloseDropsLateResults(t *testing.T) {
	src := newFakeSource()
	gate := make(chan struct{})
	src.handle(analytics.EndpointSweepSummary, func(ctx context.Context, _ map[string]string) (json.RawMessage, error) {
		<-gate
		return json.RawMessage(`[]`), nil
	})

	s := New(context.Background(), src, analytics.DefaultSelection())
	s.Close()
	close(gate)
	s.Wait()

	assert.Equal(t, "loading", viewOf(t, s, render.PanelSweep).State)
	assert.False(t, s.SetSelection(analytics.Selection{Symbol: "MSFT"}))

	select {
	case <-s.Done():
	default:
		t.Fatal("closed shell should report done")
	}
}

func TestShell_SettleHonoursContext(t *testing.T) {
	src := newFakeSource()
	src.handle(analytics.EndpointSeasonalStats, func(ctx context.Context, _ map[string]string) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	s := New(context.Background(), src, analytics.DefaultSelection())
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Settle(ctx), context.DeadlineExceeded)
	assert.Equal(t, "loading", viewOf(t, s, render.PanelSeasonal).State)
}

func TestShell_UnknownPanel(t *testing.T) {
	s := New(context.Background(), newFakeSource(), analytics.DefaultSelection())
	defer s.Close()

	_, ok := s.View("nope")
	assert.False(t, ok)
}

func TestShell_SessionMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	s := New(context.Background(), newFakeSource(), analytics.DefaultSelection(), WithMetrics(reg), WithKind("snapshot"))
	settle(t, s)

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	var active float64 = -1
	for _, mf := range families {
		if mf.GetName() == "fundboard_active_sessions" {
			active = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, active)

	s.Close()
	s.Close()
	families, err = reg.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "fundboard_active_sessions" {
			assert.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestShell_WithPanelsMountsSubset(t *testing.T) {
	src := newFakeSource()
	s := New(context.Background(), src, analytics.DefaultSelection(), WithPanels(render.PanelSpread))
	defer s.Close()
	settle(t, s)

	assert.Equal(t, []string{render.PanelSpread}, s.Panels())
	views := s.Views()
	require.Len(t, views, 1)
	assert.Equal(t, render.KindCard, views[0].Kind)

	assert.Empty(t, src.callsTo(analytics.EndpointPnl))
	assert.Empty(t, src.callsTo(analytics.EndpointSweepSummary))
	assert.False(t, s.SetSelection(analytics.Selection{Symbol: "MSFT"}))
}

func TestShell_PnlTitleMatchesChartUnderSelectionChurn(t *testing.T) {
	values := map[string]float64{"AAPL": 101, "MSFT": 202}
	src := newFakeSource()
	src.handle(analytics.EndpointPnl, func(ctx context.Context, q map[string]string) (json.RawMessage, error) {
		body, err := json.Marshal([]analytics.PnlPoint{{Date: "2024-01-02", Value: values[q["symbol"]]}})
		return body, err
	})

	s := New(context.Background(), src, analytics.DefaultSelection())
	defer s.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		symbols := []string{"MSFT", "AAPL"}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			s.SetSelection(analytics.Selection{Symbol: symbols[i%2], Strategy: "mean_reversion"})
		}
	}()

	for i := 0; i < 2000; i++ {
		v := viewOf(t, s, render.PanelPnl)
		if v.Kind != render.KindChart {
			continue
		}
		require.Len(t, v.Chart.Values, 1)
		switch v.Title {
		case "P&L (AAPL, mean_reversion)":
			require.Equal(t, values["AAPL"], v.Chart.Values[0])
		case "P&L (MSFT, mean_reversion)":
			require.Equal(t, values["MSFT"], v.Chart.Values[0])
		default:
			t.Fatalf("unexpected title %q", v.Title)
		}
	}
	close(stop)
	<-done
	s.Wait()
}
