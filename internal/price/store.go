// Package price keeps the latest bitcoin price observation in Redis.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/sendbtc/internal/currency"
)

// ErrNoPrice is returned before the first observation was stored.
var ErrNoPrice = errors.New("no price observed yet")

const latestKey = "price:v1:latest"

type storedSnapshot struct {
	ObservedAt time.Time                  `json:"observed_at"`
	Rates      map[string]decimal.Decimal `json:"rates"`
}

// Store persists price snapshots.
type Store struct {
	redis *redis.Client
}

// NewStore builds a Redis-backed price store.
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

// Save replaces the latest snapshot.
func (s *Store) Save(ctx context.Context, snap currency.PriceSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	stored := storedSnapshot{ObservedAt: snap.ObservedAt.UTC(), Rates: make(map[string]decimal.Decimal, len(snap.Rates))}
	for c, r := range snap.Rates {
		stored.Rates[string(c)] = r
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, latestKey, payload, 0).Err()
}

// Latest returns the most recent snapshot.
func (s *Store) Latest(ctx context.Context) (currency.PriceSnapshot, error) {
	raw, err := s.redis.Get(ctx, latestKey).Bytes()
	if err == redis.Nil {
		return currency.PriceSnapshot{}, ErrNoPrice
	}
	if err != nil {
		return currency.PriceSnapshot{}, fmt.Errorf("read price: %w", err)
	}

	var stored storedSnapshot
	if err := json.Unmarshal(raw, &stored); err != nil {
		return currency.PriceSnapshot{}, fmt.Errorf("decode price: %w", err)
	}
	rates := make(map[currency.Currency]decimal.Decimal, len(stored.Rates))
	for code, r := range stored.Rates {
		c, err := currency.Parse(code)
		if err != nil {
			return currency.PriceSnapshot{}, fmt.Errorf("decode price: %w", err)
		}
		rates[c] = r
	}
	return currency.NewPriceSnapshot(stored.ObservedAt, rates), nil
}
