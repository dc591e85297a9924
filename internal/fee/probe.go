package fee

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
)

// Prober asks the wallet backend what a payment would cost in satoshis.
type Prober interface {
	// LightningFee probes a route for invoice. amount is set only for
	// amountless invoices.
	LightningFee(ctx context.Context, invoice string, amount *int64) (int64, error)
	OnChainFee(ctx context.Context, address string, amount int64) (int64, error)
}

// ProbeResolver resolves fees through a Prober. Intra-ledger and same-node
// payments cost nothing and are answered without a round trip.
type ProbeResolver struct {
	prober    Prober
	limiter   *rate.Limiter
	logger    *slog.Logger
	onFailure func(kind draft.Kind)
}

// Option customises a ProbeResolver.
type Option func(*ProbeResolver)

// WithLimiter throttles outgoing probes.
func WithLimiter(l *rate.Limiter) Option {
	return func(r *ProbeResolver) { r.limiter = l }
}

// WithFailureHook is called every time a probe degrades to an unknown fee.
func WithFailureHook(fn func(kind draft.Kind)) Option {
	return func(r *ProbeResolver) { r.onFailure = fn }
}

// NewProbeResolver builds a resolver on top of prober.
func NewProbeResolver(prober Prober, logger *slog.Logger, opts ...Option) *ProbeResolver {
	r := &ProbeResolver{prober: prober, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements Resolver.
func (r *ProbeResolver) Resolve(ctx context.Context, d draft.Draft, price currency.PriceSnapshot) Fee {
	switch v := d.(type) {
	case draft.IntraLedger:
		return Known(currency.Sats(0))
	case draft.Lightning:
		if v.SameNode {
			return Known(currency.Sats(0))
		}
		var amount *int64
		if v.Amountless {
			sats := currency.ToSats(v.ReferenceAmount, price)
			if sats == 0 {
				return Unknown()
			}
			amount = &sats
		}
		return r.probe(ctx, v.Kind(), func(ctx context.Context) (int64, error) {
			return r.prober.LightningFee(ctx, v.Invoice, amount)
		})
	case draft.OnChain:
		sats := currency.ToSats(v.ReferenceAmount, price)
		if sats == 0 {
			return Unknown()
		}
		return r.probe(ctx, v.Kind(), func(ctx context.Context) (int64, error) {
			return r.prober.OnChainFee(ctx, v.Address, sats)
		})
	default:
		panic(fmt.Sprintf("fee: unknown draft variant %T", d))
	}
}

func (r *ProbeResolver) probe(ctx context.Context, kind draft.Kind, fn func(context.Context) (int64, error)) Fee {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return r.degrade(kind, fmt.Errorf("wait for probe slot: %w", err))
		}
	}
	sats, err := fn(ctx)
	if err != nil {
		return r.degrade(kind, err)
	}
	if sats < 0 {
		return r.degrade(kind, fmt.Errorf("negative fee %d", sats))
	}
	return Known(currency.Sats(sats))
}

func (r *ProbeResolver) degrade(kind draft.Kind, err error) Fee {
	if r.logger != nil {
		r.logger.Warn("fee probe failed", slog.String("channel", string(kind)), slog.Any("error", err))
	}
	if r.onFailure != nil {
		r.onFailure(kind)
	}
	return Unknown()
}
