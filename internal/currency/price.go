package currency

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is one observation of the bitcoin price. Rates holds, per
// fiat currency, how many minor units of that currency one satoshi is worth.
type PriceSnapshot struct {
	Rates      map[Currency]decimal.Decimal
	ObservedAt time.Time
}

// NewPriceSnapshot copies rates into a snapshot observed at observedAt.
func NewPriceSnapshot(observedAt time.Time, rates map[Currency]decimal.Decimal) PriceSnapshot {
	copied := make(map[Currency]decimal.Decimal, len(rates))
	for c, r := range rates {
		copied[c] = r
	}
	return PriceSnapshot{Rates: copied, ObservedAt: observedAt}
}

// Rate returns the minor units of c per satoshi. BTC is always 1.
func (p PriceSnapshot) Rate(c Currency) (decimal.Decimal, bool) {
	if c.Native() {
		return decimal.NewFromInt(1), true
	}
	r, ok := p.Rates[c]
	return r, ok
}

// Age is the time elapsed since the observation.
func (p PriceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(p.ObservedAt)
}

// Validate rejects snapshots that the converter could not use.
func (p PriceSnapshot) Validate() error {
	if p.ObservedAt.IsZero() {
		return fmt.Errorf("price snapshot has no observation time")
	}
	for c, r := range p.Rates {
		if !c.Valid() || c.Native() {
			return fmt.Errorf("price snapshot has rate for unsupported currency %q", c)
		}
		if !r.IsPositive() {
			return fmt.Errorf("price snapshot rate for %s must be positive", c)
		}
	}
	return nil
}

func (p PriceSnapshot) mustRate(c Currency) decimal.Decimal {
	if !c.Valid() {
		panic(fmt.Sprintf("currency: unsupported currency %q", c))
	}
	r, ok := p.Rate(c)
	if !ok || !r.IsPositive() {
		panic(fmt.Sprintf("currency: no usable rate for %s", c))
	}
	return r
}
