// Package risk implements the pre-trade validator that gates every
// outbound order and the portfolio-level VaR/Expected-Shortfall engine,
// which computes on demand from the position weights and return series
// it is given.
package risk

import (
	"fmt"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/shopspring/decimal"
)

// CheckName identifies one pre-trade rule, used for both logging and as
// the Code on a RiskViolation error.
type CheckName string

const (
	CheckOrderNotional    CheckName = "max_order_notional"
	CheckPositionNotional CheckName = "max_position_notional"
	CheckLeverage         CheckName = "max_leverage"
	CheckDailyLoss        CheckName = "max_daily_loss"
	CheckOrderRate        CheckName = "max_orders_per_minute"
	CheckSelfTrade        CheckName = "self_trade_prevention"
)

// BookState is the snapshot of account-wide state the validator checks
// a candidate order against.
type BookState struct {
	ExistingPositionNotional decimal.Decimal
	CurrentLeverage          decimal.Decimal
	RealizedDailyPnL         decimal.Decimal
	OrdersInLastMinute       int
	RestingOppositeSide      bool // an opposite-side resting order from the same strategy exists on this symbol
}

// Violation is one failed pre-trade check.
type Violation struct {
	Check    CheckName
	Severity string // "Warning" or "Critical"
	Message  string
}

// Validator runs the six pre-trade checks from spec §4.6.1 against a
// candidate order. Critical violations must block submission; Warning
// violations are advisory and may be submitted with acknowledgement.
type Validator struct {
	limits domain.RiskLimits
}

// NewValidator constructs a Validator bound to a fixed set of limits.
func NewValidator(limits domain.RiskLimits) *Validator {
	return &Validator{limits: limits}
}

// Validate runs every check, returning every violation found (not just
// the first). Callers reject the order if any Critical violation is
// present.
func (v *Validator) Validate(order domain.Order, orderNotional decimal.Decimal, book BookState) []Violation {
	var violations []Violation

	if v.limits.MaxOrderNotional.Sign() > 0 && orderNotional.GreaterThan(v.limits.MaxOrderNotional) {
		violations = append(violations, Violation{
			Check: CheckOrderNotional, Severity: "Critical",
			Message: fmt.Sprintf("order notional %s exceeds max %s", orderNotional, v.limits.MaxOrderNotional),
		})
	}

	projectedPosition := book.ExistingPositionNotional.Add(orderNotional)
	if v.limits.MaxPositionNotional.Sign() > 0 && projectedPosition.GreaterThan(v.limits.MaxPositionNotional) {
		violations = append(violations, Violation{
			Check: CheckPositionNotional, Severity: "Critical",
			Message: fmt.Sprintf("projected position notional %s exceeds max %s", projectedPosition, v.limits.MaxPositionNotional),
		})
	}

	if v.limits.MaxLeverage.Sign() > 0 && book.CurrentLeverage.GreaterThan(v.limits.MaxLeverage) {
		violations = append(violations, Violation{
			Check: CheckLeverage, Severity: "Critical",
			Message: fmt.Sprintf("current leverage %s exceeds max %s", book.CurrentLeverage, v.limits.MaxLeverage),
		})
	}

	if v.limits.MaxDailyLossLimit.Sign() > 0 && book.RealizedDailyPnL.Sign() < 0 {
		loss := book.RealizedDailyPnL.Neg()
		if loss.GreaterThan(v.limits.MaxDailyLossLimit) {
			violations = append(violations, Violation{
				Check: CheckDailyLoss, Severity: "Critical",
				Message: fmt.Sprintf("realized daily loss %s exceeds max %s", loss, v.limits.MaxDailyLossLimit),
			})
		}
	}

	if v.limits.MaxOrdersPerMinute > 0 && book.OrdersInLastMinute >= v.limits.MaxOrdersPerMinute {
		violations = append(violations, Violation{
			Check: CheckOrderRate, Severity: "Warning",
			Message: fmt.Sprintf("order rate %d/min at or above limit %d", book.OrdersInLastMinute, v.limits.MaxOrdersPerMinute),
		})
	}

	if book.RestingOppositeSide {
		violations = append(violations, Violation{
			Check: CheckSelfTrade, Severity: "Warning",
			Message: "an opposite-side resting order exists on this symbol for this strategy",
		})
	}

	return violations
}

// HasCritical reports whether any violation in the list is Critical.
func HasCritical(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == "Critical" {
			return true
		}
	}
	return false
}

// ToError converts the first Critical violation into a domain.Error for
// the caller to return.
func ToError(violations []Violation) error {
	for _, v := range violations {
		if v.Severity == "Critical" {
			return domain.NewRiskViolation(string(v.Check), v.Severity, v.Message)
		}
	}
	return nil
}
