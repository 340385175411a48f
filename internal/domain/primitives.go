package domain

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// decimalScale is the fixed fractional precision (8 digits) mandated for
// every Price and Quantity by spec §3/§9: no binary floating point, and a
// single scale shared across the whole engine so arithmetic never silently
// loses precision when values of different provenance are combined.
const decimalScale = 8

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+-[A-Z0-9]+(-[A-Z0-9]+)?$`)

// Symbol is a normalized trading-pair identifier, e.g. "BTC-USDT" or
// "BTC-USDT-SWAP". Construction validates the OKX instrument-id shape.
type Symbol struct {
	value string
}

// NewSymbol validates and constructs a Symbol.
func NewSymbol(raw string) (Symbol, error) {
	if !symbolPattern.MatchString(raw) {
		return Symbol{}, NewError(ErrInvalidInput, fmt.Sprintf("invalid symbol %q", raw))
	}
	return Symbol{value: raw}, nil
}

// MustSymbol panics on invalid input; reserved for constants and tests.
func MustSymbol(raw string) Symbol {
	s, err := NewSymbol(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Symbol) String() string    { return s.value }
func (s Symbol) IsZero() bool      { return s.value == "" }
func (s Symbol) Equal(o Symbol) bool { return s.value == o.value }

func (s Symbol) MarshalText() ([]byte, error) { return []byte(s.value), nil }
func (s *Symbol) UnmarshalText(b []byte) error {
	sym, err := NewSymbol(string(b))
	if err != nil {
		return err
	}
	*s = sym
	return nil
}

// Price is a positive fixed-point decimal with 8 fractional digits. Zero
// and negative values are rejected, as is NaN (decimal.Decimal cannot
// represent NaN, so any value that parses is finite by construction).
type Price struct {
	d decimal.Decimal
}

// NewPrice validates and constructs a Price from a decimal string.
func NewPrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, NewError(ErrInvalidInput, "price: "+err.Error())
	}
	return priceFromDecimal(d)
}

// NewPriceFromFloat constructs a Price from a float64, for callers
// receiving exchange JSON that decodes numerics as float64. Internal
// arithmetic always proceeds in decimal.Decimal from this point on.
func NewPriceFromFloat(f float64) (Price, error) {
	return priceFromDecimal(decimal.NewFromFloat(f))
}

func priceFromDecimal(d decimal.Decimal) (Price, error) {
	if d.Sign() <= 0 {
		return Price{}, NewError(ErrInvalidInput, "price must be positive")
	}
	return Price{d: d.Round(decimalScale)}, nil
}

func (p Price) Decimal() decimal.Decimal { return p.d }
func (p Price) String() string           { return p.d.String() }
func (p Price) IsZero() bool             { return p.d.IsZero() }

func (p Price) Equal(o Price) bool        { return p.d.Equal(o.d) }
func (p Price) GreaterThan(o Price) bool  { return p.d.GreaterThan(o.d) }
func (p Price) LessThan(o Price) bool     { return p.d.LessThan(o.d) }

// Mul multiplies the price by a plain decimal factor (e.g. a basis-point
// offset), returning ArithmeticError if the result is no longer positive.
func (p Price) Mul(factor decimal.Decimal) (Price, error) {
	r := p.d.Mul(factor)
	if r.Sign() <= 0 {
		return Price{}, NewError(ErrArithmeticError, "price multiplication result must be positive")
	}
	return priceFromDecimal(r)
}

func (p Price) MarshalText() ([]byte, error) { return []byte(p.d.String()), nil }
func (p *Price) UnmarshalText(b []byte) error {
	np, err := NewPrice(string(b))
	if err != nil {
		return err
	}
	*p = np
	return nil
}

// Quantity is a non-negative fixed-point decimal with 8 fractional
// digits. Zero is a valid quantity (an empty position, a fully-cancelled
// order); negative and NaN are rejected.
type Quantity struct {
	d decimal.Decimal
}

// NewQuantity validates and constructs a Quantity from a decimal string.
func NewQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, NewError(ErrInvalidInput, "quantity: "+err.Error())
	}
	return quantityFromDecimal(d)
}

// NewQuantityFromFloat constructs a Quantity from a float64.
func NewQuantityFromFloat(f float64) (Quantity, error) {
	return quantityFromDecimal(decimal.NewFromFloat(f))
}

// ZeroQuantity is the canonical empty quantity.
var ZeroQuantity = Quantity{d: decimal.Zero}

func quantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	if d.Sign() < 0 {
		return Quantity{}, NewError(ErrInvalidInput, "quantity must not be negative")
	}
	return Quantity{d: d.Round(decimalScale)}, nil
}

func (q Quantity) Decimal() decimal.Decimal { return q.d }
func (q Quantity) String() string           { return q.d.String() }
func (q Quantity) IsZero() bool             { return q.d.IsZero() }
func (q Quantity) Sign() int                { return q.d.Sign() }

func (q Quantity) Equal(o Quantity) bool       { return q.d.Equal(o.d) }
func (q Quantity) GreaterThan(o Quantity) bool { return q.d.GreaterThan(o.d) }
func (q Quantity) LessThan(o Quantity) bool    { return q.d.LessThan(o.d) }
func (q Quantity) LessThanOrEqual(o Quantity) bool { return q.d.LessThanOrEqual(o.d) }

// Add returns q+o. Addition of two non-negative quantities is always
// non-negative, so this never fails.
func (q Quantity) Add(o Quantity) Quantity {
	return Quantity{d: q.d.Add(o.d).Round(decimalScale)}
}

// Sub returns q-o, failing with ArithmeticError if the result would be
// negative (e.g. a fill reduction, which callers must reject as corrupt
// per spec §4.5.2 rather than silently clamp).
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	r := q.d.Sub(o.d)
	if r.Sign() < 0 {
		return Quantity{}, NewError(ErrArithmeticError, "quantity subtraction would be negative")
	}
	return Quantity{d: r.Round(decimalScale)}, nil
}

func (q Quantity) MarshalText() ([]byte, error) { return []byte(q.d.String()), nil }
func (q *Quantity) UnmarshalText(b []byte) error {
	nq, err := NewQuantity(string(b))
	if err != nil {
		return err
	}
	*q = nq
	return nil
}

// Timestamp is a monotonic wall-clock instant truncated to millisecond
// resolution, matching the exchange's own timestamp granularity.
type Timestamp struct {
	t time.Time
}

// NewTimestamp truncates t to millisecond resolution.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.Truncate(time.Millisecond)}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp { return NewTimestamp(time.Now()) }

func (ts Timestamp) Time() time.Time  { return ts.t }
func (ts Timestamp) IsZero() bool     { return ts.t.IsZero() }
func (ts Timestamp) Before(o Timestamp) bool { return ts.t.Before(o.t) }
func (ts Timestamp) After(o Timestamp) bool  { return ts.t.After(o.t) }
func (ts Timestamp) Sub(o Timestamp) time.Duration { return ts.t.Sub(o.t) }
func (ts Timestamp) UnixMilli() int64 { return ts.t.UnixMilli() }

func (ts Timestamp) MarshalText() ([]byte, error) {
	return []byte(ts.t.Format(time.RFC3339Nano)), nil
}
func (ts *Timestamp) UnmarshalText(b []byte) error {
	t, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return NewError(ErrInvalidInput, "timestamp: "+err.Error())
	}
	*ts = NewTimestamp(t)
	return nil
}

// Value/Scan implement database/sql driver support so Price, Quantity and
// Timestamp can be written directly as sqlite column values by the
// persistence adapters.
func (p Price) Value() (driver.Value, error) { return p.d.String(), nil }
func (q Quantity) Value() (driver.Value, error) { return q.d.String(), nil }
func (ts Timestamp) Value() (driver.Value, error) { return ts.t.Format(time.RFC3339Nano), nil }
