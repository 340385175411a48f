package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, profile Profile) *DB {
	t.Helper()
	db, err := Open(Config{Path: "file::memory:?cache=shared", Profile: profile, Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOrderStoreUpsertAndGet(t *testing.T) {
	db := openTestDB(t, ProfileLedger)
	store, err := NewOrderStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	price, _ := domain.NewPrice("50000")
	qty, _ := domain.NewQuantity("1")
	o := domain.Order{
		ClientOrderID: "c1", Symbol: domain.MustSymbol("BTC-USDT"),
		Side: domain.SideBuy, Type: domain.OrderTypeLimit, Price: price, Quantity: qty,
		FilledQty: domain.ZeroQuantity, State: domain.OrderCreated,
		CreatedAt: domain.Now(), UpdatedAt: domain.Now(),
	}
	require.NoError(t, store.Upsert(ctx, o))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "c1", got.ClientOrderID)
	require.Equal(t, domain.OrderCreated, got.State)

	o.State = domain.OrderAcknowledged
	o.UpdatedAt = domain.Now()
	require.NoError(t, store.Upsert(ctx, o))

	got2, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderAcknowledged, got2.State)
}

func TestOrderStoreGetMissing(t *testing.T) {
	db := openTestDB(t, ProfileLedger)
	store, err := NewOrderStore(db)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestBarStoreInsertAndRange(t *testing.T) {
	db := openTestDB(t, ProfileStandard)
	store, err := NewBarStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	symbol := domain.MustSymbol("BTC-USDT")
	base := time.Now().Truncate(time.Minute)
	price, _ := domain.NewPrice("100")
	vol, _ := domain.NewQuantity("10")

	for i := 0; i < 3; i++ {
		b := marketdata.Bar{
			Symbol: symbol, Interval: time.Minute,
			OpenTime: domain.NewTimestamp(base.Add(time.Duration(i) * time.Minute)),
			Open:     price, High: price, Low: price, Close: price, Volume: vol,
		}
		require.NoError(t, store.Insert(ctx, b))
		require.NoError(t, store.Insert(ctx, b))
	}

	bars, err := store.Range(ctx, symbol, time.Minute, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 3)
}

func TestColdStoreDisabledWithoutBucket(t *testing.T) {
	cs, err := NewColdStore(context.Background(), "", "", "")
	require.NoError(t, err)
	require.False(t, cs.Enabled())
	require.NoError(t, cs.Archive(context.Background(), "whatever", []byte("data")))
}
