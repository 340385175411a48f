package okx

import (
	"context"
	"fmt"

	"github.com/aristath/sentinel-okx/internal/domain"
)

// PlaceOrderRequest is the wire shape of an OKX order-placement call.
type PlaceOrderRequest struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Sz      string `json:"sz"`
	Px      string `json:"px,omitempty"`
	ClOrdID string `json:"clOrdId"`
}

// PlaceOrderResult is the OKX order-placement acknowledgement.
type PlaceOrderResult struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// PlaceOrder submits an order and returns the exchange's synchronous
// acknowledgement. A non-zero SCode means the exchange rejected the
// specific order even though the HTTP call itself succeeded.
func (c *RESTClient) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	var results []PlaceOrderResult
	if err := c.Do(ctx, ClassTrade, "POST", "/api/v5/trade/order", []PlaceOrderRequest{req}, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, domain.NewError(domain.ErrExchangeUnavailable, "empty order placement response")
	}
	res := results[0]
	if res.SCode != "" && res.SCode != "0" {
		return &res, domain.NewExchangeReject(res.SCode, res.SMsg)
	}
	return &res, nil
}

// CancelOrderRequest identifies an order to cancel by either exchange or
// client order id.
type CancelOrderRequest struct {
	InstID  string `json:"instId"`
	OrdID   string `json:"ordId,omitempty"`
	ClOrdID string `json:"clOrdId,omitempty"`
}

// CancelOrderResult is the OKX cancellation acknowledgement.
type CancelOrderResult struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// CancelOrder requests cancellation of a resting order.
func (c *RESTClient) CancelOrder(ctx context.Context, req CancelOrderRequest) (*CancelOrderResult, error) {
	var results []CancelOrderResult
	if err := c.Do(ctx, ClassTrade, "POST", "/api/v5/trade/cancel-order", []CancelOrderRequest{req}, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, domain.NewError(domain.ErrExchangeUnavailable, "empty cancel response")
	}
	res := results[0]
	if res.SCode != "" && res.SCode != "0" {
		return &res, domain.NewExchangeReject(res.SCode, res.SMsg)
	}
	return &res, nil
}

// OrderDetails is the OKX order-query response shape, used for
// reconciliation against the engine's own order book.
type OrderDetails struct {
	InstID    string `json:"instId"`
	OrdID     string `json:"ordId"`
	ClOrdID   string `json:"clOrdId"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	AccFillSz string `json:"accFillSz"`
	AvgPx     string `json:"avgPx"`
	State     string `json:"state"`
	Side      string `json:"side"`
}

// GetOrder fetches the current exchange-side state of one order.
func (c *RESTClient) GetOrder(ctx context.Context, instID, ordID string) (*OrderDetails, error) {
	var results []OrderDetails
	path := fmt.Sprintf("/api/v5/trade/order?instId=%s&ordId=%s", instID, ordID)
	if err := c.Do(ctx, ClassAccount, "GET", path, nil, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, domain.NewError(domain.ErrExchangeUnavailable, "order not found")
	}
	return &results[0], nil
}

// ToDomainState maps an OKX order state string to the engine's OrderState.
func ToDomainState(okxState string) domain.OrderState {
	switch okxState {
	case "live":
		return domain.OrderAcknowledged
	case "partially_filled":
		return domain.OrderPartiallyFilled
	case "filled":
		return domain.OrderFilled
	case "canceled":
		return domain.OrderCancelled
	default:
		return domain.OrderSubmitted
	}
}
