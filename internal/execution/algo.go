package execution

import (
	"context"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Submitter is the subset of Manager the execution algorithms depend on.
type Submitter interface {
	Submit(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, typ domain.OrderType, qty domain.Quantity, price domain.Price, strategyID, parentOrderID string) (*domain.Order, error)
}

// TWAPSchedule slices a parent order into n equal-sized child orders
// submitted at evenly spaced intervals across duration, per spec §4.5.3.
// The last slice absorbs any rounding remainder so the sum of child
// quantities exactly equals the parent quantity.
type TWAPSchedule struct {
	ParentOrderID string
	Symbol        domain.Symbol
	Side          domain.OrderSide
	TotalQty      domain.Quantity
	Slices        int
	Duration      time.Duration
	StrategyID    string
}

// Run submits each child order in sequence, sleeping between submissions
// so the schedule spans the configured duration. It returns the submitted
// child orders in submission order, stopping early (and returning the
// error) if any submission fails.
func Run(ctx context.Context, sched TWAPSchedule, submitter Submitter, log zerolog.Logger) ([]*domain.Order, error) {
	if sched.Slices <= 0 {
		sched.Slices = 1
	}
	sliceQty, remainder := splitQuantity(sched.TotalQty, sched.Slices)
	interval := sched.Duration / time.Duration(sched.Slices)

	orders := make([]*domain.Order, 0, sched.Slices)
	for i := 0; i < sched.Slices; i++ {
		qty := sliceQty
		if i == sched.Slices-1 {
			qty = qty.Add(remainder)
		}
		if qty.IsZero() {
			continue
		}

		order, err := submitter.Submit(ctx, sched.Symbol, sched.Side, domain.OrderTypeMarket, qty, domain.Price{}, sched.StrategyID, sched.ParentOrderID)
		if err != nil {
			log.Error().Err(err).Str("parent_order_id", sched.ParentOrderID).Int("slice", i).Msg("twap slice submission failed")
			return orders, err
		}
		orders = append(orders, order)

		if i < sched.Slices-1 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return orders, ctx.Err()
			}
		}
	}
	return orders, nil
}

// VWAPSchedule slices a parent order across a volume curve instead of
// equal time buckets: each bucket's share of the total quantity is
// proportional to its share of VolumeCurve's total, per spec §4.5.3.
type VWAPSchedule struct {
	ParentOrderID string
	Symbol        domain.Symbol
	Side          domain.OrderSide
	TotalQty      domain.Quantity
	VolumeCurve   []decimal.Decimal // one weight per bucket; need not be normalized
	BucketPeriod  time.Duration
	StrategyID    string
}

// RunVWAP submits one child order per bucket in VolumeCurve, sized
// proportionally to that bucket's share of the curve, with the final
// bucket absorbing rounding remainder.
func RunVWAP(ctx context.Context, sched VWAPSchedule, submitter Submitter, log zerolog.Logger) ([]*domain.Order, error) {
	if len(sched.VolumeCurve) == 0 {
		return nil, domain.NewError(domain.ErrInvalidInput, "vwap schedule requires a non-empty volume curve")
	}

	total := decimal.Zero
	for _, w := range sched.VolumeCurve {
		total = total.Add(w)
	}
	if total.Sign() <= 0 {
		return nil, domain.NewError(domain.ErrInvalidInput, "vwap volume curve must sum to a positive weight")
	}

	orders := make([]*domain.Order, 0, len(sched.VolumeCurve))
	allocated := domain.ZeroQuantity
	for i, weight := range sched.VolumeCurve {
		var qty domain.Quantity
		if i == len(sched.VolumeCurve)-1 {
			q, err := sched.TotalQty.Sub(allocated)
			if err != nil {
				return orders, err
			}
			qty = q
		} else {
			share := sched.TotalQty.Decimal().Mul(weight).Div(total)
			q, err := domain.NewQuantity(share.String())
			if err != nil {
				return orders, err
			}
			qty = q
			allocated = allocated.Add(qty)
		}
		if qty.IsZero() {
			continue
		}

		order, err := submitter.Submit(ctx, sched.Symbol, sched.Side, domain.OrderTypeMarket, qty, domain.Price{}, sched.StrategyID, sched.ParentOrderID)
		if err != nil {
			log.Error().Err(err).Str("parent_order_id", sched.ParentOrderID).Int("bucket", i).Msg("vwap bucket submission failed")
			return orders, err
		}
		orders = append(orders, order)

		if i < len(sched.VolumeCurve)-1 {
			select {
			case <-time.After(sched.BucketPeriod):
			case <-ctx.Done():
				return orders, ctx.Err()
			}
		}
	}
	return orders, nil
}

// splitQuantity divides total into n equal floor-rounded slices, returning
// the per-slice quantity and the leftover remainder to fold into the
// final slice.
func splitQuantity(total domain.Quantity, n int) (domain.Quantity, domain.Quantity) {
	divided := total.Decimal().Div(decimal.NewFromInt(int64(n)))
	sliceQty, err := domain.NewQuantity(divided.Truncate(8).String())
	if err != nil {
		return domain.ZeroQuantity, total
	}
	allocated := sliceQty.Decimal().Mul(decimal.NewFromInt(int64(n)))
	remainder, err := domain.NewQuantity(total.Decimal().Sub(allocated).String())
	if err != nil {
		remainder = domain.ZeroQuantity
	}
	return sliceQty, remainder
}
