package render

import (
	"fmt"

	"github.com/sawpanic/fundboard/internal/analytics"
	"github.com/sawpanic/fundboard/internal/format"
	"github.com/sawpanic/fundboard/internal/panel"
)

const errorPrefix = "Error: "

// Loading and empty-result messages shown by the panels
const (
	MsgLoadingPnl      = "Loading P&L…"
	MsgLoadingSeasonal = "Loading seasonal stats…"
	MsgLoadingSpread   = "Loading metrics..."
	MsgNoPnlData       = "No P&L data available."
)

var (
	sweepHeaders    = []string{"Period", "DevFactor", "Stake", "Total Return", "Sharpe", "Max Drawdown"}
	seasonalHeaders = []string{"Weekday", "Avg Return", "t-Statistic"}
)

func phaseName(st panel.Phased) string {
	if st == nil {
		return panel.PhaseLoading.String()
	}
	return st.Phase().String()
}

func errorView(v View, msg string) View {
	v.Kind = KindError
	v.Message = errorPrefix + msg
	return v
}

// PnL renders the profit-and-loss panel for the selection it was fetched under
func PnL(st panel.State[analytics.PnlSeries], sel analytics.Selection) View {
	v := View{
		Panel: PanelPnl,
		Title: fmt.Sprintf("P&L (%s, %s)", sel.Symbol, sel.Strategy),
		State: phaseName(st),
	}

	switch s := st.(type) {
	case panel.Ready[analytics.PnlSeries]:
		if len(s.Data) == 0 {
			v.Kind = KindMessage
			v.Message = MsgNoPnlData
			return v
		}
		chart := &Chart{
			Labels:     make([]string, len(s.Data)),
			TickLabels: make([]string, len(s.Data)),
			Values:     make([]float64, len(s.Data)),
		}
		for i, p := range s.Data {
			chart.Labels[i] = p.Date
			chart.TickLabels[i] = format.AxisLabel(p.Date)
			chart.Values[i] = p.Value
		}
		v.Kind = KindChart
		v.Chart = chart
		return v
	case panel.Failed[analytics.PnlSeries]:
		return errorView(v, s.Message)
	default:
		v.Kind = KindMessage
		v.Message = MsgLoadingPnl
		return v
	}
}

// SweepSummary renders the parameter-sweep table. While loading it shows the
// headers with no rows.
func SweepSummary(st panel.State[[]analytics.SweepRow]) View {
	v := View{
		Panel: PanelSweep,
		Title: "Parameter Sweep Summary",
		State: phaseName(st),
	}

	switch s := st.(type) {
	case panel.Failed[[]analytics.SweepRow]:
		return errorView(v, s.Message)
	case panel.Ready[[]analytics.SweepRow]:
		rows := make([][]string, 0, len(s.Data))
		for _, r := range s.Data {
			rows = append(rows, []string{
				format.Plain(r.Period),
				format.Plain(r.DevFactor),
				format.Plain(r.Stake),
				format.Percent(r.TotalReturn),
				format.Ratio(r.Sharpe),
				format.Percent(r.MaxDrawdown),
			})
		}
		v.Kind = KindTable
		v.Table = &Table{Headers: sweepHeaders, Rows: rows}
		return v
	default:
		v.Kind = KindTable
		v.Table = &Table{Headers: sweepHeaders, Rows: [][]string{}}
		return v
	}
}

// SeasonalPattern renders the weekday seasonality table
func SeasonalPattern(st panel.State[[]analytics.WeekStat]) View {
	v := View{
		Panel: PanelSeasonal,
		Title: "Seasonal Pattern",
		State: phaseName(st),
	}

	switch s := st.(type) {
	case panel.Ready[[]analytics.WeekStat]:
		rows := make([][]string, 0, len(s.Data))
		for _, w := range s.Data {
			rows = append(rows, []string{w.Weekday, format.Percent(w.AvgReturn), format.Ratio(w.TStat)})
		}
		v.Kind = KindTable
		v.Table = &Table{Headers: seasonalHeaders, Rows: rows}
		return v
	case panel.Failed[[]analytics.WeekStat]:
		return errorView(v, s.Message)
	default:
		v.Kind = KindMessage
		v.Message = MsgLoadingSeasonal
		return v
	}
}

// SpreadMetrics renders the pairs-spread card
func SpreadMetrics(st panel.State[analytics.SpreadMetrics]) View {
	v := View{
		Panel: PanelSpread,
		Title: "Spread Metrics",
		State: phaseName(st),
	}

	switch s := st.(type) {
	case panel.Ready[analytics.SpreadMetrics]:
		m := s.Data
		title := "Spread Metrics"
		if pair, ok := symbolPair(m); ok {
			title += " " + pair
		}
		v.Kind = KindCard
		v.Card = &Card{
			Title: title,
			Fields: []Field{
				{Label: "Total Return", Value: format.PercentOptional(m.TotalReturn)},
				{Label: "Sharpe Ratio", Value: format.RatioOptional(format.ResolveSharpe(m))},
				{Label: "Max Drawdown", Value: format.PercentOptional(m.MaxDrawdown)},
			},
		}
		return v
	case panel.Failed[analytics.SpreadMetrics]:
		return errorView(v, s.Message)
	default:
		v.Kind = KindMessage
		v.Message = MsgLoadingSpread
		return v
	}
}

// symbolPair returns "S1/S2" when both symbols are present and non-empty
func symbolPair(m analytics.SpreadMetrics) (string, bool) {
	if m.Symbol1 == nil || m.Symbol2 == nil || *m.Symbol1 == "" || *m.Symbol2 == "" {
		return "", false
	}
	return *m.Symbol1 + "/" + *m.Symbol2, true
}
