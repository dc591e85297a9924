// Package fee resolves the network fee of a draft.
package fee

import (
	"context"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
)

// Fee is the network fee of a draft. A nil Value means the fee is not known
// yet or could not be estimated; it is never an implicit zero.
type Fee struct {
	Value *currency.MoneyAmount
}

// Known wraps a resolved fee.
func Known(amount currency.MoneyAmount) Fee {
	return Fee{Value: &amount}
}

// Unknown is the fee of a draft whose probe has not answered.
func Unknown() Fee { return Fee{} }

// IsKnown reports whether the fee has been resolved.
func (f Fee) IsKnown() bool { return f.Value != nil }

// Sats returns the fee in satoshis, counting an unknown fee as zero.
func (f Fee) Sats(price currency.PriceSnapshot) int64 {
	if f.Value == nil {
		return 0
	}
	return currency.ToSats(*f.Value, price)
}

// Resolver estimates the fee of a draft. Implementations never fail; an
// estimate they cannot produce is reported as Unknown.
type Resolver interface {
	Resolve(ctx context.Context, d draft.Draft, price currency.PriceSnapshot) Fee
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, d draft.Draft, price currency.PriceSnapshot) Fee

func (f ResolverFunc) Resolve(ctx context.Context, d draft.Draft, price currency.PriceSnapshot) Fee {
	return f(ctx, d, price)
}
