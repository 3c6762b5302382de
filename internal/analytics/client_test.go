package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundboard/internal/metrics"
	"github.com/sawpanic/fundboard/internal/net/breaker"
	"github.com/sawpanic/fundboard/internal/net/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return client, srv
}

func TestNewClient_Validation(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, 5000*time.Millisecond, c.Timeout())

	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)

	_, err = NewClient("http://")
	assert.Error(t, err)
}

func TestClient_FetchSuccess(t *testing.T) {
	var gotPath, gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"date":"2024-03-07","value":101.5}]`))
	})

	body, err := client.Fetch(context.Background(), EndpointPnl, map[string]string{
		"symbol":   "AAPL",
		"strategy": "mean_reversion",
		"empty":    "",
	})
	require.NoError(t, err)

	assert.Equal(t, "/pnl", gotPath)
	assert.Equal(t, "strategy=mean_reversion&symbol=AAPL", gotQuery, "empty values are omitted")
	assert.JSONEq(t, `[{"date":"2024-03-07","value":101.5}]`, string(body))
}

func TestClient_BaseURLWithPathPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api/")
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), EndpointSpreadMetrics, nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/spread_metrics", gotPath)
}

func TestClient_UnknownEndpointMakesNoCall(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := client.Fetch(context.Background(), Endpoint("/admin"), nil)
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_HTTPErrorCarriesStatusAndDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"pnl_aapl_breakout.json not found"}`))
	})

	_, err := client.Fetch(context.Background(), EndpointPnl, nil)
	require.Error(t, err)

	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindHTTP, ce.Kind)
	assert.Equal(t, http.StatusNotFound, ce.Status)
	assert.Equal(t, "Request failed with status code 404: pnl_aapl_breakout.json not found", ce.Error())
}

func TestClient_HTTPErrorWithoutDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Fetch(context.Background(), EndpointSweepSummary, nil)
	require.Error(t, err)
	assert.Equal(t, KindHTTP, KindOf(err))
	assert.Equal(t, "Request failed with status code 502", err.Error())
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	start := time.Now()
	_, err := client.Fetch(context.Background(), EndpointSpreadMetrics, nil)
	require.Error(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, "timeout of 50ms exceeded", err.Error())
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, err := NewClient(addr)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), EndpointSeasonalStats, nil)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "Network Error")
}

func TestClient_InvalidJSONIsDecodeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := client.Fetch(context.Background(), EndpointPnl, nil)
	require.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestClient_NoRetryOnFailure(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Fetch(context.Background(), EndpointPnl, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "exactly one network call per invocation")
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	b := breaker.New(breaker.Config{Name: "analytics", ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithBreaker(b))

	for i := 0; i < 2; i++ {
		_, err := client.Fetch(context.Background(), EndpointPnl, nil)
		assert.Equal(t, KindHTTP, KindOf(err))
	}

	_, err := client.Fetch(context.Background(), EndpointPnl, nil)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_BreakerIgnoresClientErrors(t *testing.T) {
	b := breaker.New(breaker.Config{Name: "analytics", ConsecutiveFailures: 1})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, WithBreaker(b))

	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background(), EndpointPnl, nil)
		assert.Equal(t, KindHTTP, KindOf(err))
	}
	assert.Equal(t, "closed", b.State())
}

func TestClient_Guards(t *testing.T) {
	plain, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	gs := plain.Guards()
	assert.Equal(t, CircuitDisabled, gs.Circuit)
	assert.Nil(t, gs.Tokens)

	b := breaker.New(breaker.Config{Name: "analytics", ConsecutiveFailures: 1, OpenTimeout: time.Minute})
	limiter, err := ratelimit.NewLimiter(0.01, 2)
	require.NoError(t, err)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, WithBreaker(b), WithRateLimiter(limiter))

	gs = client.Guards()
	assert.Equal(t, "closed", gs.Circuit)
	assert.Len(t, gs.Tokens, 4)
	assert.InDelta(t, 2.0, gs.Tokens["/pnl"], 0.01)

	_, err = client.Fetch(context.Background(), EndpointPnl, nil)
	require.Error(t, err)

	gs = client.Guards()
	assert.Equal(t, "open", gs.Circuit)
	assert.InDelta(t, 1.0, gs.Tokens["/pnl"], 0.01)
	assert.InDelta(t, 2.0, gs.Tokens["/spread_metrics"], 0.01)
}

func TestClient_RateLimiterBoundedByTimeout(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(0.01, 1)
	require.NoError(t, err)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, WithRateLimiter(limiter), WithTimeout(50*time.Millisecond))

	_, err = client.Fetch(context.Background(), EndpointSweepSummary, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), EndpointSweepSummary, nil)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "rate limit")
}

func TestClient_RecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, WithMetrics(reg))

	_, err := client.Fetch(context.Background(), EndpointSweepSummary, nil)
	require.NoError(t, err)

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "fundboard_fetch_total" {
			found = true
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
