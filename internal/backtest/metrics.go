package backtest

import (
	"math"
	"time"

	"tradesim/internal/domain"
)

// equityPoint is one mark-to-market observation of total portfolio value.
type equityPoint struct {
	ts    time.Time
	value float64
}

// tradingDaysPerYear is the annualization factor for Sharpe, and
// daysPerYear the calendar basis for CAGR.
const (
	tradingDaysPerYear = 252.0
	daysPerYear        = 365.25
)

// computeMetrics derives the canonical metric set from an equity curve.
// Percentages are expressed in points (12.5 = 12.5%).
func computeMetrics(initial float64, curve []equityPoint, tradeCount int) map[string]float64 {
	m := map[string]float64{
		domain.MetricROI:         0,
		domain.MetricCAGR:        0,
		domain.MetricSharpe:      0,
		domain.MetricMaxDrawdown: 0,
		domain.MetricEndingValue: initial,
		domain.MetricTradeCount:  float64(tradeCount),
	}
	if len(curve) == 0 || initial <= 0 {
		return m
	}

	ending := curve[len(curve)-1].value
	m[domain.MetricEndingValue] = ending
	m[domain.MetricROI] = (ending - initial) / initial * 100

	years := curve[len(curve)-1].ts.Sub(curve[0].ts).Hours() / 24 / daysPerYear
	if years > 0 && ending > 0 {
		m[domain.MetricCAGR] = (math.Pow(ending/initial, 1/years) - 1) * 100
	}

	m[domain.MetricSharpe] = sharpe(curve)
	m[domain.MetricMaxDrawdown] = maxDrawdown(initial, curve)
	return m
}

// sharpe computes the annualized Sharpe ratio of the per-bar returns,
// assuming a zero risk-free rate.
func sharpe(curve []equityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].value
		if prev <= 0 {
			return 0
		}
		returns = append(returns, curve[i].value/prev-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the largest peak-to-trough decline over the curve, in
// percentage points. The starting value counts as the initial peak.
func maxDrawdown(initial float64, curve []equityPoint) float64 {
	peak := initial
	maxDD := 0.0
	for _, p := range curve {
		if p.value > peak {
			peak = p.value
		}
		if peak > 0 {
			dd := (peak - p.value) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
