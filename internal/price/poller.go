package price

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/sendbtc/internal/currency"
)

// Source reports the current price of one satoshi in minor units of c.
type Source interface {
	FetchPrice(ctx context.Context, c currency.Currency) (decimal.Decimal, error)
}

// Poller refreshes the stored snapshot on an interval. A failed refresh
// leaves the previous snapshot in place so that its age keeps growing.
type Poller struct {
	source     Source
	store      *Store
	currencies []currency.Currency
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewPoller builds a poller for the given fiat currencies.
func NewPoller(source Source, store *Store, currencies []currency.Currency, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		source:     source,
		store:      store,
		currencies: currencies,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Refresh fetches every currency and stores the snapshot when all succeeded.
func (p *Poller) Refresh(ctx context.Context) error {
	var (
		mu    sync.Mutex
		rates = make(map[currency.Currency]decimal.Decimal, len(p.currencies))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range p.currencies {
		if c.Native() {
			continue
		}
		c := c
		g.Go(func() error {
			r, err := p.source.FetchPrice(gctx, c)
			if err != nil {
				return fmt.Errorf("fetch %s price: %w", c, err)
			}
			mu.Lock()
			rates[c] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return p.store.Save(ctx, currency.NewPriceSnapshot(p.now().UTC(), rates))
}

// Run refreshes immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("price refresh failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
