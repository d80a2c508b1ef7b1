package backtest

import (
	"fmt"
	"math"
	"strings"

	"tradesim/internal/domain"
)

// Tolerances bounds the acceptable disagreement between two engines running
// the same request. Metric tolerances are absolute deltas in the metric's
// own unit (percentage points for roi/cagr/max_drawdown); trade counts must
// match exactly.
type Tolerances struct {
	ROI         float64 `yaml:"roi"`
	CAGR        float64 `yaml:"cagr"`
	MaxDrawdown float64 `yaml:"max_drawdown"`
	Sharpe      float64 `yaml:"sharpe"`
}

// DefaultTolerances returns the standard parity thresholds.
func DefaultTolerances() Tolerances {
	return Tolerances{
		ROI:         0.1,
		CAGR:        0.1,
		MaxDrawdown: 0.5,
		Sharpe:      0.02,
	}
}

// Check is the comparison of one metric across the two results.
type Check struct {
	Metric    string  `json:"metric"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	Delta     float64 `json:"delta"` // absolute difference
	Tolerance float64 `json:"tolerance"`
	Pass      bool    `json:"pass"`
}

// Report is the outcome of a parity comparison. A failed comparison is a
// diagnostic result, not an error: callers decide what to do with it.
type Report struct {
	EngineA string  `json:"engine_a"`
	EngineB string  `json:"engine_b"`
	Checks  []Check `json:"checks"`
	Pass    bool    `json:"pass"`
}

// String renders the report as a fixed-width table, one line per check.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parity %s vs %s: ", r.EngineA, r.EngineB)
	if r.Pass {
		b.WriteString("PASS\n")
	} else {
		b.WriteString("FAIL\n")
	}
	for _, c := range r.Checks {
		status := "ok"
		if !c.Pass {
			status = "MISMATCH"
		}
		fmt.Fprintf(&b, "  %-14s a=%-14.6f b=%-14.6f delta=%-12.6f tol=%-8.4f %s\n",
			c.Metric, c.A, c.B, c.Delta, c.Tolerance, status)
	}
	return b.String()
}

// Compare checks two run results of the same request against each other.
// Every metric is reported, including passing ones, so a reader can see how
// close the engines actually were.
func Compare(a, b *domain.RunResult, tol Tolerances) *Report {
	rep := &Report{
		EngineA: a.Engine,
		EngineB: b.Engine,
		Pass:    true,
	}
	for _, c := range []struct {
		metric string
		tol    float64
	}{
		{domain.MetricROI, tol.ROI},
		{domain.MetricCAGR, tol.CAGR},
		{domain.MetricMaxDrawdown, tol.MaxDrawdown},
		{domain.MetricSharpe, tol.Sharpe},
		{domain.MetricTradeCount, 0},
	} {
		va, vb := a.Metrics[c.metric], b.Metrics[c.metric]
		delta := math.Abs(va - vb)
		check := Check{
			Metric:    c.metric,
			A:         va,
			B:         vb,
			Delta:     delta,
			Tolerance: c.tol,
			Pass:      delta <= c.tol,
		}
		rep.Checks = append(rep.Checks, check)
		if !check.Pass {
			rep.Pass = false
		}
	}
	return rep
}
