package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/fee"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func freshPrice() currency.PriceSnapshot {
	return currency.NewPriceSnapshot(now.Add(-time.Minute), map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.RequireFromString("0.03"),
	})
}

func input(d draft.Draft) Input {
	return Input{
		Draft:     d,
		Fee:       fee.Unknown(),
		Balance:   currency.Sats(20_000),
		Price:     freshPrice(),
		Now:       now,
		Freshness: 5 * time.Minute,
	}
}

func sats(n int64) draft.Base {
	return draft.Base{ReferenceAmount: currency.Sats(n), DisplayCurrency: currency.BTC}
}

func TestNoAmount(t *testing.T) {
	cases := []draft.Draft{
		draft.Lightning{Base: sats(0), Invoice: "lnbc1", Amountless: true},
		draft.OnChain{Base: sats(0), Address: "bc1q"},
		// zero expressed in a fiat currency
		draft.OnChain{Base: draft.Base{ReferenceAmount: currency.New(0, currency.USD)}, Address: "bc1q"},
	}
	for _, d := range cases {
		res := Evaluate(input(d))
		require.True(t, res.Blocked())
		require.ErrorIs(t, res.Error, ErrNoAmount)
	}

	// invoices that carry an amount do not need one from the user
	res := Evaluate(input(draft.Lightning{Base: sats(0), Invoice: "lnbc1"}))
	require.Nil(t, res.Error)
}

func TestInvalidRecipient(t *testing.T) {
	for _, h := range []string{"", "ab", "bad handle", "1abc", "3abc", "BC1qqq", "lnbc1abc", "émile"} {
		res := Evaluate(input(draft.IntraLedger{Base: sats(100), RecipientHandle: h}))
		require.ErrorIs(t, res.Error, ErrInvalidRecipient, "handle %q", h)
	}
	res := Evaluate(input(draft.IntraLedger{Base: sats(100), RecipientHandle: "alice_2"}))
	require.False(t, res.Blocked())
}

func TestAmountRuleBeatsRecipientRule(t *testing.T) {
	res := Evaluate(input(draft.OnChain{Base: sats(0), Address: "bc1q"}))
	require.Equal(t, CodeNoAmount, res.Error.Code)
}

func TestBalanceExceeded(t *testing.T) {
	for _, tc := range []struct {
		amount, fee, balance int64
	}{
		{5_000, 0, 4_000},
		{10_000, 500, 10_499},
		{1, 0, 0},
	} {
		in := input(draft.OnChain{Base: sats(tc.amount), Address: "bc1q"})
		in.Fee = fee.Known(currency.Sats(tc.fee))
		in.Balance = currency.Sats(tc.balance)
		// stale as well; balance still wins
		in.Price.ObservedAt = now.Add(-3 * time.Hour)

		res := Evaluate(in)
		require.NotNil(t, res.Advisory)
		require.Equal(t, AdvisoryBalanceExceeded, res.Advisory.Kind)
		require.True(t, res.Blocked())
	}
}

func TestBalanceExactlyCoveredIsAllowed(t *testing.T) {
	in := input(draft.OnChain{Base: sats(10_000), Address: "bc1q"})
	in.Fee = fee.Known(currency.Sats(500))
	in.Balance = currency.Sats(10_500)
	require.False(t, Evaluate(in).Blocked())
}

func TestUnknownFeeCountsAsZero(t *testing.T) {
	in := input(draft.OnChain{Base: sats(10_000), Address: "bc1q"})
	in.Balance = currency.Sats(10_000)
	require.Nil(t, Evaluate(in).Advisory)
}

func TestBalanceMessageUsesDisplayCurrency(t *testing.T) {
	in := input(draft.OnChain{
		Base:    draft.Base{ReferenceAmount: currency.Sats(5_000), DisplayCurrency: currency.USD},
		Address: "bc1q",
	})
	in.Balance = currency.Sats(4_000)
	res := Evaluate(in)
	require.Equal(t, "Total exceeds your balance of 1.20 USD", res.Advisory.Message)
}

func TestStalePriceGranularity(t *testing.T) {
	for _, tc := range []struct {
		age  time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{time.Hour + 59*time.Minute, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{26*time.Hour + 5*time.Minute, "26 hours"},
		{6 * time.Minute, "6 minutes"},
		{59 * time.Minute, "59 minutes"},
		{90 * time.Second, "1 minute"},
		{40 * time.Second, "1 minute"},
	} {
		in := input(draft.Lightning{Base: sats(10_000), Invoice: "lnbc1"})
		in.Freshness = 30 * time.Second
		in.Price.ObservedAt = now.Add(-tc.age)

		res := Evaluate(in)
		require.NotNil(t, res.Advisory, "age %s", tc.age)
		require.Equal(t, AdvisoryStalePrice, res.Advisory.Kind)
		require.Contains(t, res.Advisory.Message, "updated "+tc.want+" ago")
	}
}

func TestFreshPriceAndBalanceHaveNoAdvisory(t *testing.T) {
	in := input(draft.Lightning{Base: sats(10_000), Invoice: "lnbc1"})
	in.Fee = fee.Known(currency.Sats(500))
	res := Evaluate(in)
	require.Nil(t, res.Advisory)
	require.Nil(t, res.Error)
}

func TestAdvisoryIsNotAValidationError(t *testing.T) {
	in := input(draft.OnChain{Base: sats(5_000), Address: "bc1q"})
	in.Balance = currency.Sats(4_000)
	res := Evaluate(in)
	require.Nil(t, res.Error)
	require.NotNil(t, res.Advisory)
	require.False(t, errors.Is(ErrNoAmount, ErrInvalidRecipient))
}
