package domain

import "github.com/shopspring/decimal"

// Order is the engine's record of a single exchange order, client-side or
// exchange-assigned. OrderManager owns the only writable copy; every other
// package observes orders through OrderEvent or a snapshot.
type Order struct {
	ClientOrderID string
	ExchangeOrderID string
	Symbol        Symbol
	Side          OrderSide
	Type          OrderType
	Price         Price // zero value for Market orders
	Quantity      Quantity
	FilledQty     Quantity
	AvgFillPrice  Price
	State         OrderState
	StrategyID    string
	ParentOrderID string // set on TWAP/VWAP child orders
	CreatedAt     Timestamp
	UpdatedAt     Timestamp
}

// Remaining returns the quantity still unfilled.
func (o *Order) Remaining() (Quantity, error) {
	return o.Quantity.Sub(o.FilledQty)
}

// IsChild reports whether this order was sliced off a parent execution
// algorithm order.
func (o *Order) IsChild() bool { return o.ParentOrderID != "" }

// Position is the engine's current holding in one symbol under one
// position side.
type Position struct {
	Symbol       Symbol
	Side         PositionSide
	Quantity     Quantity
	EntryPrice   Price
	MarkPrice    Price
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
	Leverage      decimal.Decimal
	UpdatedAt     Timestamp
}

// Notional returns the position's mark-to-market notional value.
func (p *Position) Notional() decimal.Decimal {
	return p.Quantity.Decimal().Mul(p.MarkPrice.Decimal())
}

// Signal is an intent emitted by a strategy for the coordinator to route
// through risk checks and into order management.
type Signal struct {
	StrategyID string
	Symbol     Symbol
	Kind       SignalKind
	Quantity   Quantity
	LimitPrice *Price // nil selects a market-priced order
	Algo       ExecAlgo
	Reason     string
	EmittedAt  Timestamp
}

// StrategyRecord is the persisted configuration and lifecycle state for
// one running strategy instance.
type StrategyRecord struct {
	ID        string
	Name      string
	Symbol    Symbol
	State     StrategyState
	Params    map[string]string
	Version   int
	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// RiskLimits bounds what a single strategy, or the book as a whole, is
// permitted to do. Zero values for optional bounds mean "no limit".
type RiskLimits struct {
	MaxOrderNotional    decimal.Decimal
	MaxPositionNotional decimal.Decimal
	MaxLeverage         decimal.Decimal
	MaxDailyLossLimit   decimal.Decimal
	MaxOrdersPerMinute  int
}

// PerformanceMetrics summarizes a strategy's or a backtest's realized
// trading performance over its evaluation window.
type PerformanceMetrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	GrossPnL      decimal.Decimal
	NetPnL        decimal.Decimal
	TotalFees     decimal.Decimal
	SharpeRatio   float64
	SortinoRatio  float64
	CalmarRatio   float64
	MaxDrawdown   decimal.Decimal
	WinRate       float64
	ProfitFactor  float64
}

// AlertRule defines a persistence-and-cooldown gated monitoring condition.
// Per spec §4.8, a breach must hold continuously for PersistFor before the
// alert fires. Firing restarts the persistence timer; the alert can fire
// again once CooldownFor has elapsed and the breach has held for
// PersistFor since firing, without the condition having to clear.
type AlertRule struct {
	Name        string
	Severity    AlertSeverity
	PersistFor  int64 // nanoseconds the condition must hold continuously
	CooldownFor int64 // nanoseconds after firing before it may re-arm
}

// Alert is a fired instance of an AlertRule.
type Alert struct {
	Rule      string
	Severity  AlertSeverity
	Message   string
	FiredAt   Timestamp
}
