package persistence

import (
	"context"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/marketdata"
)

// BarStore is the standard-profile repository for closed OHLCV bars.
type BarStore struct {
	db *DB
}

// NewBarStore constructs a BarStore and ensures its schema exists.
func NewBarStore(db *DB) (*BarStore, error) {
	s := &BarStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BarStore) migrate() error {
	_, err := s.db.Conn().Exec(`
CREATE TABLE IF NOT EXISTS bars (
	symbol TEXT NOT NULL,
	interval_seconds INTEGER NOT NULL,
	open_time TEXT NOT NULL,
	open TEXT NOT NULL,
	high TEXT NOT NULL,
	low TEXT NOT NULL,
	close TEXT NOT NULL,
	volume TEXT NOT NULL,
	PRIMARY KEY (symbol, interval_seconds, open_time)
);
`)
	return err
}

// Insert writes one closed bar, ignoring duplicates (the aggregator may
// re-emit the same bucket across a reconnection replay).
func (s *BarStore) Insert(ctx context.Context, b marketdata.Bar) error {
	_, err := s.db.Conn().ExecContext(ctx, `
INSERT OR IGNORE INTO bars (symbol, interval_seconds, open_time, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Symbol.String(), int64(b.Interval/time.Second), b.OpenTime.Time(),
		b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String(),
	)
	return err
}

// Range fetches bars for one symbol/interval between from and to
// (inclusive), ordered ascending by open time.
func (s *BarStore) Range(ctx context.Context, symbol domain.Symbol, interval time.Duration, from, to time.Time) ([]marketdata.Bar, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
SELECT open_time, open, high, low, close, volume FROM bars
WHERE symbol = ? AND interval_seconds = ? AND open_time >= ? AND open_time <= ?
ORDER BY open_time ASC`,
		symbol.String(), int64(interval/time.Second), from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []marketdata.Bar
	for rows.Next() {
		var openTime time.Time
		var openS, highS, lowS, closeS, volS string
		if err := rows.Scan(&openTime, &openS, &highS, &lowS, &closeS, &volS); err != nil {
			return nil, err
		}
		bar := marketdata.Bar{Symbol: symbol, Interval: interval, OpenTime: domain.NewTimestamp(openTime)}
		if bar.Open, err = domain.NewPrice(openS); err != nil {
			return nil, err
		}
		if bar.High, err = domain.NewPrice(highS); err != nil {
			return nil, err
		}
		if bar.Low, err = domain.NewPrice(lowS); err != nil {
			return nil, err
		}
		if bar.Close, err = domain.NewPrice(closeS); err != nil {
			return nil, err
		}
		if bar.Volume, err = domain.NewQuantity(volS); err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}
