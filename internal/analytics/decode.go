package analytics

import (
	"context"
	"encoding/json"
	"fmt"
)

// DecodePnl decodes a /pnl body. A JSON null becomes an empty series.
func DecodePnl(raw json.RawMessage) (PnlSeries, error) {
	var series PnlSeries
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, decodeError(EndpointPnl, err)
	}
	if series == nil {
		series = PnlSeries{}
	}
	return series, nil
}

// DecodeSweep decodes a /sweep_summary body
func DecodeSweep(raw json.RawMessage) ([]SweepRow, error) {
	var rows []SweepRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, decodeError(EndpointSweepSummary, err)
	}
	if rows == nil {
		rows = []SweepRow{}
	}
	return rows, nil
}

// DecodeWeekStats decodes a /seasonal_stats body and rejects duplicate weekdays
func DecodeWeekStats(raw json.RawMessage) ([]WeekStat, error) {
	var stats []WeekStat
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, decodeError(EndpointSeasonalStats, err)
	}
	seen := make(map[string]bool, len(stats))
	for _, s := range stats {
		if seen[s.Weekday] {
			return nil, decodeError(EndpointSeasonalStats, fmt.Errorf("duplicate weekday %q", s.Weekday))
		}
		seen[s.Weekday] = true
	}
	if stats == nil {
		stats = []WeekStat{}
	}
	return stats, nil
}

// DecodeSpreadMetrics coerces a /spread_metrics body into the optional-field
// record. The body must be a JSON object; absent or null fields stay nil.
func DecodeSpreadMetrics(raw json.RawMessage) (SpreadMetrics, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return SpreadMetrics{}, decodeError(EndpointSpreadMetrics, fmt.Errorf("expected an object: %w", err))
	}
	if fields == nil {
		return SpreadMetrics{}, decodeError(EndpointSpreadMetrics, fmt.Errorf("expected an object, got null"))
	}

	var m SpreadMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return SpreadMetrics{}, decodeError(EndpointSpreadMetrics, err)
	}
	return m, nil
}

// FetchPnl fetches and decodes the series for sel
func FetchPnl(ctx context.Context, src Source, sel Selection) (PnlSeries, error) {
	raw, err := src.Fetch(ctx, EndpointPnl, map[string]string{
		"symbol":   sel.Symbol,
		"strategy": sel.Strategy,
	})
	if err != nil {
		return nil, err
	}
	return DecodePnl(raw)
}

// FetchSweep fetches the sweep summary; symbol may be empty
func FetchSweep(ctx context.Context, src Source, symbol string) ([]SweepRow, error) {
	raw, err := src.Fetch(ctx, EndpointSweepSummary, map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	return DecodeSweep(raw)
}

// FetchWeekStats fetches the weekday seasonality table; symbol may be empty
func FetchWeekStats(ctx context.Context, src Source, symbol string) ([]WeekStat, error) {
	raw, err := src.Fetch(ctx, EndpointSeasonalStats, map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	return DecodeWeekStats(raw)
}

// FetchSpreadMetrics fetches the pairs-spread summary
func FetchSpreadMetrics(ctx context.Context, src Source) (SpreadMetrics, error) {
	raw, err := src.Fetch(ctx, EndpointSpreadMetrics, nil)
	if err != nil {
		return SpreadMetrics{}, err
	}
	return DecodeSpreadMetrics(raw)
}
