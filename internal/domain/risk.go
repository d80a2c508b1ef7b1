package domain

import (
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PositionLimitRule caps the size of a single-symbol position. Either field
// may be nil, meaning that dimension is unlimited.
type PositionLimitRule struct {
	MaxShares *decimal.Decimal `yaml:"max_shares"`
	MaxValue  *decimal.Decimal `yaml:"max_value"`
}

// ExposureLimitRule caps portfolio-level exposure, expressed as a percentage
// of total equity (e.g. 100 = gross exposure up to 1x equity).
type ExposureLimitRule struct {
	MaxGrossExposurePct float64 `yaml:"max_gross_exposure_pct"`
	MaxNetExposurePct   float64 `yaml:"max_net_exposure_pct"`
}

// DrawdownLimitRule blocks new orders once the portfolio has fallen too far
// from its daily open or all-time peak. Percent values (10 = 10%). A nil
// field disables that dimension.
type DrawdownLimitRule struct {
	MaxDailyDrawdownPct *float64 `yaml:"max_daily_drawdown_pct"`
	MaxTotalDrawdownPct *float64 `yaml:"max_total_drawdown_pct"`
}

// RiskConfig is the immutable pre-trade risk configuration for one run.
// A nil rule is simply not enforced.
type RiskConfig struct {
	PositionLimit  *PositionLimitRule `yaml:"position_limit"`
	ExposureLimit  *ExposureLimitRule `yaml:"exposure_limit"`
	DrawdownLimit  *DrawdownLimitRule `yaml:"drawdown_limit"`
	TradingEnabled bool               `yaml:"trading_enabled"`
}

// UnmarshalYAML decodes a risk section with trading enabled unless
// trading_enabled is explicitly false. An absent field must not engage the
// kill-switch: absence means not enforced.
func (c *RiskConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawRiskConfig RiskConfig
	raw := rawRiskConfig{TradingEnabled: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = RiskConfig(raw)
	return nil
}

// RiskViolation describes the first risk rule an order violated.
type RiskViolation struct {
	Reason  RejectionReason
	Message string
}

// ValidationResult is the outcome of pre-execution order validation.
type ValidationResult struct {
	IsValid bool
	Reason  RejectionReason
	Message string
}

// Valid is the singleton passing validation result.
func Valid() ValidationResult {
	return ValidationResult{IsValid: true}
}

// Invalid constructs a failing validation result.
func Invalid(reason RejectionReason, message string) ValidationResult {
	return ValidationResult{IsValid: false, Reason: reason, Message: message}
}
