package price

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/logging"
)

type staticSource map[currency.Currency]decimal.Decimal

func (s staticSource) FetchPrice(_ context.Context, c currency.Currency) (decimal.Decimal, error) {
	r, ok := s[c]
	if !ok {
		return decimal.Decimal{}, errors.New("no quote")
	}
	return r, nil
}

func newStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewStore(client)
}

func TestLatestBeforeFirstSave(t *testing.T) {
	_, err := newStore(t).Latest(context.Background())
	require.ErrorIs(t, err, ErrNoPrice)
}

func TestSaveAndLatest(t *testing.T) {
	store := newStore(t)
	observed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := currency.NewPriceSnapshot(observed, map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.RequireFromString("0.0301"),
	})

	require.NoError(t, store.Save(context.Background(), snap))
	got, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, got.ObservedAt.Equal(observed))
	require.True(t, got.Rates[currency.USD].Equal(decimal.RequireFromString("0.0301")))
}

func TestSaveRejectsInvalidSnapshot(t *testing.T) {
	store := newStore(t)
	err := store.Save(context.Background(), currency.NewPriceSnapshot(time.Time{}, nil))
	require.Error(t, err)
}

func TestPollerKeepsPreviousSnapshotOnFailure(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p := NewPoller(staticSource{currency.USD: decimal.RequireFromString("0.03"), currency.EUR: decimal.RequireFromString("0.0275")},
		store, []currency.Currency{currency.USD, currency.EUR}, time.Minute, logging.Discard())
	p.now = func() time.Time { return first }
	require.NoError(t, p.Refresh(ctx))

	p.source = staticSource{currency.USD: decimal.RequireFromString("0.04")}
	p.now = func() time.Time { return first.Add(time.Hour) }
	require.Error(t, p.Refresh(ctx))

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	require.True(t, got.ObservedAt.Equal(first))
	require.True(t, got.Rates[currency.USD].Equal(decimal.RequireFromString("0.03")))
	require.Len(t, got.Rates, 2)
}

func TestPollerRunStopsWithContext(t *testing.T) {
	store := newStore(t)
	p := NewPoller(staticSource{currency.USD: decimal.RequireFromString("0.03")},
		store, []currency.Currency{currency.USD}, 10*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := store.Latest(context.Background())
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
