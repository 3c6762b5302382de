// Package format turns raw analytics numbers into display strings.
package format

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/fundboard/internal/analytics"
)

// NotAvailable is shown for absent optional values
const NotAvailable = "N/A"

var hundred = decimal.NewFromInt(100)

// Percent renders a fraction as a percentage with two decimals: 0.1234 -> "12.34%"
func Percent(x float64) string {
	if s, ok := nonFinite(x); ok {
		return s + "%"
	}
	return decimal.NewFromFloat(x).Mul(hundred).StringFixed(2) + "%"
}

// PercentOptional is Percent, or "N/A" when x is nil
func PercentOptional(x *float64) string {
	if x == nil {
		return NotAvailable
	}
	return Percent(*x)
}

// Ratio renders x with two decimals and no scaling (Sharpe, t-statistics)
func Ratio(x float64) string {
	if s, ok := nonFinite(x); ok {
		return s
	}
	return decimal.NewFromFloat(x).StringFixed(2)
}

// RatioOptional is Ratio, or "N/A" when x is nil
func RatioOptional(x *float64) string {
	if x == nil {
		return NotAvailable
	}
	return Ratio(*x)
}

// Plain renders a sweep parameter in its shortest exact form: 20, 2.5
func Plain(x float64) string {
	if s, ok := nonFinite(x); ok {
		return s
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// ResolveSharpe returns Sharpe when present, else SharpeRatio, else nil.
// Older backends only emit sharpe_ratio.
func ResolveSharpe(m analytics.SpreadMetrics) *float64 {
	if m.Sharpe != nil {
		return m.Sharpe
	}
	return m.SharpeRatio
}

// AxisLabel drops the "YYYY-" prefix of an ISO date for compact chart ticks:
// "2024-03-07" -> "03-07". Strings of five bytes or fewer yield "".
func AxisLabel(date string) string {
	if len(date) <= 5 {
		return ""
	}
	return date[5:]
}

func nonFinite(x float64) (string, bool) {
	switch {
	case math.IsNaN(x):
		return "NaN", true
	case math.IsInf(x, 1):
		return "Infinity", true
	case math.IsInf(x, -1):
		return "-Infinity", true
	}
	return "", false
}
