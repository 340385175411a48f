package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSymbol(t *testing.T) {
	sym, err := NewSymbol("BTC-USDT-SWAP")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT-SWAP", sym.String())

	_, err = NewSymbol("btc-usdt")
	assert.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidInput))

	_, err = NewSymbol("BTCUSDT")
	assert.Error(t, err)
}

func TestNewPrice(t *testing.T) {
	p, err := NewPrice("42000.123456789")
	require.NoError(t, err)
	assert.Equal(t, "42000.12345679", p.String())

	_, err = NewPrice("0")
	assert.Error(t, err)

	_, err = NewPrice("-1")
	assert.Error(t, err)

	_, err = NewPrice("not-a-number")
	assert.Error(t, err)
}

func TestNewQuantity(t *testing.T) {
	q, err := NewQuantity("0")
	require.NoError(t, err)
	assert.True(t, q.IsZero())

	_, err = NewQuantity("-0.5")
	assert.Error(t, err)
}

func TestQuantitySub(t *testing.T) {
	a, _ := NewQuantity("10")
	b, _ := NewQuantity("4")
	r, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "6", r.String())

	_, err = b.Sub(a)
	assert.Error(t, err)
	assert.True(t, IsKind(err, ErrArithmeticError))
}

func TestQuantityAdd(t *testing.T) {
	a, _ := NewQuantity("1.5")
	b, _ := NewQuantity("2.25")
	assert.Equal(t, "3.75", a.Add(b).String())
}
