package events

import "github.com/aristath/sentinel-okx/internal/domain"

// MarketDataReceivedData carries a single normalized tick or kline bar
// that passed quality control.
type MarketDataReceivedData struct {
	Symbol domain.Symbol
	Price  domain.Price
	Volume domain.Quantity
}

func (d *MarketDataReceivedData) EventType() EventType { return MarketDataReceived }

// OrderStateChangedData reports an order's state-machine transition.
type OrderStateChangedData struct {
	ClientOrderID string
	From          domain.OrderState
	To            domain.OrderState
}

func (d *OrderStateChangedData) EventType() EventType { return OrderStateChanged }

// OrderFilledData reports a (possibly partial) fill.
type OrderFilledData struct {
	ClientOrderID string
	StrategyID    string
	Symbol        domain.Symbol
	Side          domain.OrderSide
	FillQty       domain.Quantity
	FillPrice     domain.Price
	CumulativeQty domain.Quantity
	IsFinal       bool
}

func (d *OrderFilledData) EventType() EventType { return OrderFilled }

// OrderRejectedData reports an exchange or risk rejection.
type OrderRejectedData struct {
	ClientOrderID string
	Reason        string
}

func (d *OrderRejectedData) EventType() EventType { return OrderRejected }

// PositionUpdatedData reports a change to a tracked position.
type PositionUpdatedData struct {
	Symbol   domain.Symbol
	Side     domain.PositionSide
	Quantity domain.Quantity
}

func (d *PositionUpdatedData) EventType() EventType { return PositionUpdated }

// SignalGeneratedData reports a strategy-emitted trading signal.
type SignalGeneratedData struct {
	StrategyID string
	Signal     domain.Signal
}

func (d *SignalGeneratedData) EventType() EventType { return SignalGenerated }

// StrategyStateChangedData reports a strategy lifecycle transition.
type StrategyStateChangedData struct {
	StrategyID string
	From       domain.StrategyState
	To         domain.StrategyState
}

func (d *StrategyStateChangedData) EventType() EventType { return StrategyStateChanged }

// RiskViolationRaisedData reports a pre-trade or portfolio risk breach.
type RiskViolationRaisedData struct {
	Rule     string
	Severity string
	Message  string
}

func (d *RiskViolationRaisedData) EventType() EventType { return RiskViolationRaised }

// AlertFiredData reports a monitoring alert firing.
type AlertFiredData struct {
	Alert domain.Alert
}

func (d *AlertFiredData) EventType() EventType { return AlertFired }

// ConnectionStateChangedData reports an exchange connector's connection
// state-machine transition.
type ConnectionStateChangedData struct {
	Component string
	From      string
	To        string
}

func (d *ConnectionStateChangedData) EventType() EventType { return ConnectionStateChanged }
