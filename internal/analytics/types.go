package analytics

// Default selection used when the shell is mounted without user input
const (
	DefaultSymbol   = "AAPL"
	DefaultStrategy = "mean_reversion"
)

// Selection is the pair of global parameters chosen on the dashboard shell
type Selection struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
}

// DefaultSelection returns the AAPL / mean_reversion selection
func DefaultSelection() Selection {
	return Selection{Symbol: DefaultSymbol, Strategy: DefaultStrategy}
}

// WithDefaults fills empty fields from DefaultSelection
func (s Selection) WithDefaults() Selection {
	if s.Symbol == "" {
		s.Symbol = DefaultSymbol
	}
	if s.Strategy == "" {
		s.Strategy = DefaultStrategy
	}
	return s
}

// PnlPoint is one day of portfolio value
type PnlPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// PnlSeries keeps source order. An empty non-nil series is a valid result.
type PnlSeries []PnlPoint

// SweepRow is one parameter-sweep configuration and its backtested outcome
type SweepRow struct {
	Period      float64 `json:"period"`
	DevFactor   float64 `json:"devfactor"`
	Stake       float64 `json:"stake"`
	TotalReturn float64 `json:"total_return"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// WeekStat is the weekday seasonality statistic for one weekday
type WeekStat struct {
	Weekday   string  `json:"weekday"`
	AvgReturn float64 `json:"avg_return"`
	TStat     float64 `json:"t_stat"`
}

// SpreadMetrics is the pairs-spread summary. Every field is optional;
// Sharpe and SharpeRatio are two historical names for the same value.
type SpreadMetrics struct {
	Symbol1     *string  `json:"symbol1,omitempty"`
	Symbol2     *string  `json:"symbol2,omitempty"`
	TotalReturn *float64 `json:"total_return,omitempty"`
	Sharpe      *float64 `json:"sharpe,omitempty"`
	SharpeRatio *float64 `json:"sharpe_ratio,omitempty"`
	MaxDrawdown *float64 `json:"max_drawdown,omitempty"`
}
