package engine

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

// RiskChecker enforces pre-trade risk rules: a kill-switch, single-symbol
// position limits, portfolio exposure limits, and drawdown limits. It keeps
// per-run state (peak portfolio value, daily baseline) that the caller
// updates after fills and at day boundaries. One RiskChecker serves exactly
// one simulation run.
type RiskChecker struct {
	cfg domain.RiskConfig
	log *slog.Logger

	peakValue       decimal.Decimal
	dailyStartValue decimal.Decimal
	tradingEnabled  bool
}

// NewRiskChecker creates a RiskChecker seeded with the starting portfolio
// value as both peak and daily baseline.
func NewRiskChecker(cfg domain.RiskConfig, initialValue decimal.Decimal, log *slog.Logger) *RiskChecker {
	return &RiskChecker{
		cfg:             cfg,
		log:             log,
		peakValue:       initialValue,
		dailyStartValue: initialValue,
		tradingEnabled:  cfg.TradingEnabled,
	}
}

// EnableTrading clears the kill-switch. Idempotent.
func (rc *RiskChecker) EnableTrading() {
	rc.tradingEnabled = true
}

// DisableTrading sets the kill-switch; every subsequent order is rejected
// until trading is re-enabled. Idempotent.
func (rc *RiskChecker) DisableTrading() {
	rc.tradingEnabled = false
}

// TradingEnabled reports the kill-switch state.
func (rc *RiskChecker) TradingEnabled() bool {
	return rc.tradingEnabled
}

// UpdateState records a new portfolio value after a fill. The peak only
// ratchets upward. If isNewDay is set, the daily baseline is reset as well.
func (rc *RiskChecker) UpdateState(portfolioValue decimal.Decimal, isNewDay bool) {
	if portfolioValue.GreaterThan(rc.peakValue) {
		rc.peakValue = portfolioValue
	}
	if isNewDay {
		rc.dailyStartValue = portfolioValue
	}
}

// ResetDailyTracking is the explicit day-boundary hook. The caller invokes
// it once per simulated day, before any order checks for that day.
func (rc *RiskChecker) ResetDailyTracking(portfolioValue decimal.Decimal) {
	rc.dailyStartValue = portfolioValue
	if portfolioValue.GreaterThan(rc.peakValue) {
		rc.peakValue = portfolioValue
	}
}

// CheckOrder evaluates the order against the configured rules and returns
// the first violation, or nil if the order passes. Checks run in a fixed
// order: kill-switch, position limit, exposure limit, drawdown limit.
//
// Orders that reduce exposure in their symbol are exempt from the position
// limit and the drawdown limit: a breach must never lock the account out of
// protective trades.
//
// refPrice is the reference price for the order's symbol (limit price for
// limit orders, market price otherwise); prices holds the latest known
// price per held symbol for portfolio valuation.
func (rc *RiskChecker) CheckOrder(order *domain.Order, refPrice decimal.Decimal, positions map[string]decimal.Decimal, prices map[string]decimal.Decimal, cash decimal.Decimal) *domain.RiskViolation {
	if !rc.tradingEnabled {
		return &domain.RiskViolation{
			Reason:  domain.RejectRiskTradingDisabled,
			Message: "trading is disabled by kill-switch",
		}
	}

	current := positions[order.Symbol]
	projected := current
	if order.Side == domain.OrderSideBuy {
		projected = projected.Add(order.Qty)
	} else {
		projected = projected.Sub(order.Qty)
	}
	increasesExposure := projected.Abs().GreaterThan(current.Abs())

	if rc.cfg.PositionLimit != nil && increasesExposure {
		if v := rc.checkPositionLimit(order, projected, refPrice); v != nil {
			return v
		}
	}

	if rc.cfg.ExposureLimit != nil {
		if v := rc.checkExposureLimit(order, projected, refPrice, positions, prices, cash); v != nil {
			return v
		}
	}

	if rc.cfg.DrawdownLimit != nil && increasesExposure {
		if v := rc.checkDrawdownLimit(positions, prices, cash); v != nil {
			return v
		}
	}

	return nil
}

func (rc *RiskChecker) checkPositionLimit(order *domain.Order, projected, refPrice decimal.Decimal) *domain.RiskViolation {
	rule := rc.cfg.PositionLimit
	if rule.MaxShares != nil && projected.Abs().GreaterThan(*rule.MaxShares) {
		return &domain.RiskViolation{
			Reason: domain.RejectRiskPositionLimit,
			Message: fmt.Sprintf("projected position %s shares in %s exceeds limit %s",
				projected.Abs(), order.Symbol, rule.MaxShares),
		}
	}
	if rule.MaxValue != nil {
		projectedValue := projected.Abs().Mul(refPrice)
		if projectedValue.GreaterThan(*rule.MaxValue) {
			return &domain.RiskViolation{
				Reason: domain.RejectRiskPositionLimit,
				Message: fmt.Sprintf("projected position value %s in %s exceeds limit %s",
					projectedValue, order.Symbol, rule.MaxValue),
			}
		}
	}
	return nil
}

func (rc *RiskChecker) checkExposureLimit(order *domain.Order, projected, refPrice decimal.Decimal, positions map[string]decimal.Decimal, prices map[string]decimal.Decimal, cash decimal.Decimal) *domain.RiskViolation {
	rule := rc.cfg.ExposureLimit

	equity := portfolioValue(positions, prices, cash)
	if !equity.IsPositive() {
		return &domain.RiskViolation{
			Reason:  domain.RejectRiskExposureLimit,
			Message: fmt.Sprintf("cannot take on exposure with non-positive equity %s", equity),
		}
	}

	gross := decimal.Zero
	net := decimal.Zero
	for sym, qty := range positions {
		if sym == order.Symbol {
			continue
		}
		price, ok := prices[sym]
		if !ok {
			continue
		}
		value := qty.Mul(price)
		gross = gross.Add(value.Abs())
		net = net.Add(value)
	}
	projectedValue := projected.Mul(refPrice)
	gross = gross.Add(projectedValue.Abs())
	net = net.Add(projectedValue)

	hundred := decimal.NewFromInt(100)
	grossPct := gross.Div(equity).Mul(hundred)
	netPct := net.Div(equity).Mul(hundred)

	if rule.MaxGrossExposurePct > 0 && grossPct.GreaterThan(decimal.NewFromFloat(rule.MaxGrossExposurePct)) {
		return &domain.RiskViolation{
			Reason: domain.RejectRiskExposureLimit,
			Message: fmt.Sprintf("projected gross exposure %s%% exceeds limit %.2f%%",
				grossPct.StringFixed(2), rule.MaxGrossExposurePct),
		}
	}
	if rule.MaxNetExposurePct > 0 && netPct.GreaterThan(decimal.NewFromFloat(rule.MaxNetExposurePct)) {
		return &domain.RiskViolation{
			Reason: domain.RejectRiskExposureLimit,
			Message: fmt.Sprintf("projected net exposure %s%% exceeds limit %.2f%%",
				netPct.StringFixed(2), rule.MaxNetExposurePct),
		}
	}
	return nil
}

// checkDrawdownLimit inspects the current portfolio state, not the
// hypothetical post-trade state.
func (rc *RiskChecker) checkDrawdownLimit(positions map[string]decimal.Decimal, prices map[string]decimal.Decimal, cash decimal.Decimal) *domain.RiskViolation {
	rule := rc.cfg.DrawdownLimit
	current := portfolioValue(positions, prices, cash)
	hundred := decimal.NewFromInt(100)

	if rule.MaxDailyDrawdownPct != nil && rc.dailyStartValue.IsPositive() {
		dd := rc.dailyStartValue.Sub(current).Div(rc.dailyStartValue).Mul(hundred)
		if dd.GreaterThan(decimal.NewFromFloat(*rule.MaxDailyDrawdownPct)) {
			return &domain.RiskViolation{
				Reason: domain.RejectRiskDrawdownLimit,
				Message: fmt.Sprintf("daily drawdown %s%% exceeds limit %.2f%%",
					dd.StringFixed(2), *rule.MaxDailyDrawdownPct),
			}
		}
	}
	if rule.MaxTotalDrawdownPct != nil && rc.peakValue.IsPositive() {
		dd := rc.peakValue.Sub(current).Div(rc.peakValue).Mul(hundred)
		if dd.GreaterThan(decimal.NewFromFloat(*rule.MaxTotalDrawdownPct)) {
			return &domain.RiskViolation{
				Reason: domain.RejectRiskDrawdownLimit,
				Message: fmt.Sprintf("total drawdown %s%% from peak exceeds limit %.2f%%",
					dd.StringFixed(2), *rule.MaxTotalDrawdownPct),
			}
		}
	}
	return nil
}

// portfolioValue returns cash plus the marked-to-market value of all
// positions with a known price.
func portfolioValue(positions map[string]decimal.Decimal, prices map[string]decimal.Decimal, cash decimal.Decimal) decimal.Decimal {
	value := cash
	for sym, qty := range positions {
		if price, ok := prices[sym]; ok {
			value = value.Add(qty.Mul(price))
		}
	}
	return value
}
