package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

// SimulatorConfig holds the execution friction model.
type SimulatorConfig struct {
	// SlippageBps is applied adversely to market-order fills: buys pay
	// refPrice*(1+bps/10000), sells receive refPrice*(1-bps/10000). Limit
	// orders always fill at the limit price.
	SlippageBps int64 `yaml:"slippage_bps"`

	// CommissionPerShare is charged on every execution.
	CommissionPerShare decimal.Decimal `yaml:"commission_per_share"`

	// LatencyBars delays fills: an order becomes fillable only after this
	// many price updates for its symbol have elapsed since submission. Zero
	// means market orders fill synchronously on submit.
	LatencyBars int `yaml:"latency_bars"`

	// MaxFillQty caps the quantity filled per price update, producing
	// partial fills. Nil disables the cap.
	MaxFillQty *decimal.Decimal `yaml:"max_fill_qty"`
}

// pendingOrder tracks a submitted order waiting for fills.
type pendingOrder struct {
	order     *domain.Order
	barsSeen  int // price updates observed since submission
}

// ExecutionSimulator owns the mutable account state of one simulated run:
// cash, positions, and the orders it created. It is single-threaded and
// deterministic: order and execution IDs come from a seeded source, orders
// are processed in submission order, and cash, positions, and an order's
// execution list are always mutated together.
type ExecutionSimulator struct {
	cfg       SimulatorConfig
	validator *OrderValidator
	risk      *RiskChecker
	log       *slog.Logger

	cash       decimal.Decimal
	positions  map[string]decimal.Decimal
	lastPrices map[string]decimal.Decimal

	orders  map[string]*domain.Order
	pending []*pendingOrder

	ids *rand.Rand
	now time.Time
}

// NewExecutionSimulator creates a simulator with the given starting cash.
// risk may be nil (no risk checks). log is the audit sink; it must not be
// nil.
func NewExecutionSimulator(cfg SimulatorConfig, initialCash decimal.Decimal, risk *RiskChecker, log *slog.Logger, seed int64) *ExecutionSimulator {
	return &ExecutionSimulator{
		cfg:        cfg,
		validator:  NewOrderValidator(cfg.CommissionPerShare),
		risk:       risk,
		log:        log,
		cash:       initialCash,
		positions:  make(map[string]decimal.Decimal),
		lastPrices: make(map[string]decimal.Decimal),
		orders:     make(map[string]*domain.Order),
		ids:        rand.New(rand.NewSource(seed)),
	}
}

// Cash returns the current cash balance.
func (s *ExecutionSimulator) Cash() decimal.Decimal {
	return s.cash
}

// Position returns the held quantity for a symbol (zero if none).
func (s *ExecutionSimulator) Position(symbol string) decimal.Decimal {
	return s.positions[symbol]
}

// Positions returns a copy of the position map.
func (s *ExecutionSimulator) Positions() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.positions))
	for sym, qty := range s.positions {
		out[sym] = qty
	}
	return out
}

// Risk returns the attached risk checker (nil if none).
func (s *ExecutionSimulator) Risk() *RiskChecker {
	return s.risk
}

// PortfolioValue marks all positions to the last seen prices and adds cash.
func (s *ExecutionSimulator) PortfolioValue() decimal.Decimal {
	return portfolioValue(s.positions, s.lastPrices, s.cash)
}

// Order returns a previously created order by ID.
func (s *ExecutionSimulator) Order(id string) (*domain.Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

// NewOrder creates an order owned by this simulator. The ID is drawn from
// the simulator's seeded source so runs are reproducible.
func (s *ExecutionSimulator) NewOrder(symbol string, side domain.OrderSide, typ domain.OrderType, qty decimal.Decimal, limitPrice *decimal.Decimal) (*domain.Order, error) {
	o, err := domain.NewOrder(symbol, side, typ, qty, limitPrice, s.now)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewRandomFromReader(s.ids)
	if err != nil {
		return nil, fmt.Errorf("generating order id: %w", err)
	}
	o.ID = id.String()
	o.CreatedAt = s.now
	s.orders[o.ID] = o
	return o, nil
}

// SubmitOrder runs the order through the risk checker and validator and
// either rejects it (terminal status, returned with the order) or marks it
// submitted. With zero configured latency, market orders fill synchronously
// against the last seen price; everything else waits for ProcessMarketData.
func (s *ExecutionSimulator) SubmitOrder(order *domain.Order, ts time.Time) (*domain.Order, error) {
	if order.IsTerminal() {
		return nil, fmt.Errorf("submit: order %s is terminal (status %q)", order.ID, order.Status)
	}
	if _, ok := s.orders[order.ID]; !ok {
		s.orders[order.ID] = order
	}
	s.advanceClock(ts)

	refPrice, err := s.referencePrice(order)
	if err != nil {
		return nil, err
	}

	if s.risk != nil {
		if v := s.risk.CheckOrder(order, refPrice, s.positions, s.lastPrices, s.cash); v != nil {
			if err := order.Reject(v.Reason, v.Message, ts); err != nil {
				return nil, err
			}
			s.log.Debug("order rejected by risk check",
				"order_id", order.ID, "symbol", order.Symbol, "reason", string(v.Reason), "message", v.Message)
			return order, nil
		}
	}

	if res := s.validator.Validate(order, refPrice, s.cash, s.positions); !res.IsValid {
		if err := order.Reject(res.Reason, res.Message, ts); err != nil {
			return nil, err
		}
		s.log.Debug("order rejected by validator",
			"order_id", order.ID, "symbol", order.Symbol, "reason", string(res.Reason), "message", res.Message)
		return order, nil
	}

	if err := order.MarkSubmitted(ts); err != nil {
		return nil, err
	}

	if s.cfg.LatencyBars == 0 && order.Type == domain.OrderTypeMarket {
		if price, ok := s.lastPrices[order.Symbol]; ok {
			if _, err := s.tryFill(order, price, ts); err != nil {
				return nil, err
			}
		}
	}
	if !order.IsTerminal() {
		s.pending = append(s.pending, &pendingOrder{order: order})
	}
	return order, nil
}

// ProcessMarketData advances the simulation with a new price for one symbol
// and attempts to fill pending orders on that symbol, in submission order.
// It returns the executions produced by this update.
func (s *ExecutionSimulator) ProcessMarketData(symbol string, price decimal.Decimal, ts time.Time) ([]domain.OrderExecution, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("process market data: price for %s must be positive, got %s", symbol, price)
	}
	s.advanceClock(ts)
	s.lastPrices[symbol] = price

	var fills []domain.OrderExecution
	remaining := s.pending[:0]
	for _, p := range s.pending {
		if p.order.IsTerminal() {
			continue
		}
		if p.order.Symbol != symbol {
			remaining = append(remaining, p)
			continue
		}
		p.barsSeen++
		if p.barsSeen <= s.cfg.LatencyBars {
			remaining = append(remaining, p)
			continue
		}
		exec, err := s.tryFill(p.order, price, ts)
		if err != nil {
			return nil, err
		}
		if exec != nil {
			fills = append(fills, *exec)
		}
		if !p.order.IsTerminal() {
			remaining = append(remaining, p)
		}
	}
	s.pending = remaining
	return fills, nil
}

// CancelOrder cancels a pending order. Cancelling an unknown or terminal
// order is an error.
func (s *ExecutionSimulator) CancelOrder(orderID string, ts time.Time) error {
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel: unknown order %s", orderID)
	}
	if err := order.Cancel(ts); err != nil {
		return err
	}
	s.log.Debug("order cancelled", "order_id", orderID, "symbol", order.Symbol)
	return nil
}

// tryFill attempts one fill of the order at the given market price. Returns
// nil (no error) when a limit order is not crossed. Cash, the position map,
// and the order's execution list are updated together; no caller can
// observe a partial mutation.
func (s *ExecutionSimulator) tryFill(order *domain.Order, marketPrice decimal.Decimal, ts time.Time) (*domain.OrderExecution, error) {
	var fillPrice decimal.Decimal
	switch order.Type {
	case domain.OrderTypeMarket:
		fillPrice = s.slippagePrice(order.Side, marketPrice)
	case domain.OrderTypeLimit:
		limit := *order.LimitPrice
		if order.Side == domain.OrderSideBuy && marketPrice.GreaterThan(limit) {
			return nil, nil
		}
		if order.Side == domain.OrderSideSell && marketPrice.LessThan(limit) {
			return nil, nil
		}
		// No favorable slippage beyond the limit.
		fillPrice = limit
	default:
		return nil, fmt.Errorf("fill: unknown order type %q", order.Type)
	}

	qty := order.RemainingQty()
	if s.cfg.MaxFillQty != nil && qty.GreaterThan(*s.cfg.MaxFillQty) {
		qty = *s.cfg.MaxFillQty
	}
	commission := qty.Mul(s.cfg.CommissionPerShare)

	execID, err := uuid.NewRandomFromReader(s.ids)
	if err != nil {
		return nil, fmt.Errorf("generating execution id: %w", err)
	}
	exec := domain.OrderExecution{
		ExecutionID: execID.String(),
		OrderID:     order.ID,
		Timestamp:   ts,
		Quantity:    qty,
		Price:       fillPrice,
		Commission:  commission,
		IsPartial:   qty.LessThan(order.RemainingQty()) || order.FilledQty.IsPositive(),
	}

	if err := order.AddExecution(exec); err != nil {
		return nil, err
	}
	notional := qty.Mul(fillPrice)
	if order.Side == domain.OrderSideBuy {
		s.cash = s.cash.Sub(notional).Sub(commission)
		s.positions[order.Symbol] = s.positions[order.Symbol].Add(qty)
	} else {
		s.cash = s.cash.Add(notional).Sub(commission)
		s.positions[order.Symbol] = s.positions[order.Symbol].Sub(qty)
	}
	if s.positions[order.Symbol].IsZero() {
		delete(s.positions, order.Symbol)
	}

	if s.risk != nil {
		s.risk.UpdateState(s.PortfolioValue(), false)
	}

	s.log.Debug("order filled",
		"order_id", order.ID, "symbol", order.Symbol, "side", string(order.Side),
		"qty", qty.String(), "price", fillPrice.String(), "status", string(order.Status))
	return &exec, nil
}

// slippagePrice applies adverse slippage to a market fill.
func (s *ExecutionSimulator) slippagePrice(side domain.OrderSide, price decimal.Decimal) decimal.Decimal {
	if s.cfg.SlippageBps == 0 {
		return price
	}
	slip := decimal.NewFromInt(s.cfg.SlippageBps).Div(decimal.NewFromInt(10000))
	if side == domain.OrderSideBuy {
		return price.Mul(decimal.NewFromInt(1).Add(slip))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(slip))
}

// referencePrice resolves the price used for risk and validation checks:
// the limit price for limit orders, the last seen market price otherwise.
func (s *ExecutionSimulator) referencePrice(order *domain.Order) (decimal.Decimal, error) {
	if order.Type == domain.OrderTypeLimit {
		return *order.LimitPrice, nil
	}
	price, ok := s.lastPrices[order.Symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("submit: no market price seen for %s", order.Symbol)
	}
	return price, nil
}

func (s *ExecutionSimulator) advanceClock(ts time.Time) {
	if ts.After(s.now) {
		s.now = ts
	}
}
