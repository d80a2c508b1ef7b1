// Package engine implements the order execution core: pre-trade validation,
// risk checking, and the execution simulator that turns accepted orders into
// fills against a supplied price stream.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

// OrderValidator performs pre-execution order validation against account
// state. Validate is pure: it never mutates its inputs and is deterministic
// given identical arguments.
type OrderValidator struct {
	commissionPerShare decimal.Decimal
}

// NewOrderValidator creates a validator that estimates commission at the
// given per-share rate when checking buying power.
func NewOrderValidator(commissionPerShare decimal.Decimal) *OrderValidator {
	return &OrderValidator{commissionPerShare: commissionPerShare}
}

// Validate checks the order against the account balance and current
// positions. Rules run in order; the first failure wins:
//
//  1. Quantity must be positive.
//  2. Buy orders must be affordable: qty*refPrice + estimated commission
//     must not exceed the account balance.
//  3. Sell orders must not exceed the held position (no implicit shorting).
//
// refPrice is the limit price for limit orders and the current market price
// for market orders.
func (v *OrderValidator) Validate(order *domain.Order, refPrice, cash decimal.Decimal, positions map[string]decimal.Decimal) domain.ValidationResult {
	if !order.Qty.IsPositive() {
		return domain.Invalid(domain.RejectInvalidQuantity,
			fmt.Sprintf("quantity must be positive, got %s", order.Qty))
	}

	switch order.Side {
	case domain.OrderSideBuy:
		cost := order.Qty.Mul(refPrice).Add(order.Qty.Mul(v.commissionPerShare))
		if cost.GreaterThan(cash) {
			return domain.Invalid(domain.RejectInsufficientFunds,
				fmt.Sprintf("estimated cost %s exceeds balance %s", cost, cash))
		}
	case domain.OrderSideSell:
		held := positions[order.Symbol]
		if order.Qty.GreaterThan(held) {
			return domain.Invalid(domain.RejectInvalidQuantity,
				fmt.Sprintf("sell quantity %s exceeds held position %s in %s", order.Qty, held, order.Symbol))
		}
	}

	return domain.Valid()
}
