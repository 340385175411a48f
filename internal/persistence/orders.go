package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/sentinel-okx/internal/domain"
)

// OrderStore is the ledger-profile repository for orders: one row per
// client order id, which Upsert overwrites with the order's latest state,
// so earlier states of an order are not kept.
type OrderStore struct {
	db *DB
}

// NewOrderStore constructs an OrderStore and ensures its schema exists.
func NewOrderStore(db *DB) (*OrderStore, error) {
	s := &OrderStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OrderStore) migrate() error {
	_, err := s.db.Conn().Exec(`
CREATE TABLE IF NOT EXISTS orders (
	client_order_id TEXT PRIMARY KEY,
	exchange_order_id TEXT,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	price TEXT,
	quantity TEXT NOT NULL,
	filled_qty TEXT NOT NULL,
	avg_fill_price TEXT,
	state TEXT NOT NULL,
	strategy_id TEXT,
	parent_order_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_strategy ON orders(strategy_id);
CREATE INDEX IF NOT EXISTS idx_orders_state ON orders(state);
`)
	return err
}

// Upsert writes the order's current snapshot, replacing any prior row for
// the same client order id.
func (s *OrderStore) Upsert(ctx context.Context, o domain.Order) error {
	_, err := s.db.Conn().ExecContext(ctx, `
INSERT INTO orders (client_order_id, exchange_order_id, symbol, side, order_type, price, quantity, filled_qty, avg_fill_price, state, strategy_id, parent_order_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(client_order_id) DO UPDATE SET
	exchange_order_id=excluded.exchange_order_id,
	filled_qty=excluded.filled_qty,
	avg_fill_price=excluded.avg_fill_price,
	state=excluded.state,
	updated_at=excluded.updated_at
`,
		o.ClientOrderID, o.ExchangeOrderID, o.Symbol.String(), string(o.Side), string(o.Type),
		priceOrNil(o.Price), o.Quantity.String(), o.FilledQty.String(), priceOrNil(o.AvgFillPrice),
		string(o.State), o.StrategyID, o.ParentOrderID, o.CreatedAt.Time(), o.UpdatedAt.Time(),
	)
	return err
}

// Get loads one order by client order id.
func (s *OrderStore) Get(ctx context.Context, clientOrderID string) (*domain.Order, error) {
	row := s.db.Conn().QueryRowContext(ctx, `SELECT client_order_id, exchange_order_id, symbol, side, order_type, price, quantity, filled_qty, avg_fill_price, state, strategy_id, parent_order_id, created_at, updated_at FROM orders WHERE client_order_id = ?`, clientOrderID)
	return scanOrder(row)
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	var (
		o                        domain.Order
		symbol, side, typ, state string
		price, qty, filled, avg  string
		createdAt, updatedAt     string
	)
	if err := row.Scan(&o.ClientOrderID, &o.ExchangeOrderID, &symbol, &side, &typ, &price, &qty, &filled, &avg, &state, &o.StrategyID, &o.ParentOrderID, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: scan order: %w", err)
	}

	var err error
	if o.Symbol, err = domain.NewSymbol(symbol); err != nil {
		return nil, err
	}
	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(typ)
	o.State = domain.OrderState(state)
	if price != "" {
		if o.Price, err = domain.NewPrice(price); err != nil {
			return nil, err
		}
	}
	if o.Quantity, err = domain.NewQuantity(qty); err != nil {
		return nil, err
	}
	if o.FilledQty, err = domain.NewQuantity(filled); err != nil {
		return nil, err
	}
	if avg != "" {
		if o.AvgFillPrice, err = domain.NewPrice(avg); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func priceOrNil(p domain.Price) string {
	if p.IsZero() {
		return ""
	}
	return p.String()
}
