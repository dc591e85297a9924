package currency

import "github.com/shopspring/decimal"

// Convert expresses amount in the to currency using the rates in price.
// Converting into the amount's own currency returns it untouched. Fiat to
// fiat goes through satoshis in one exact step and the result is rounded
// half-to-even on minor units.
//
// Convert panics on currencies outside Supported or on a snapshot missing
// the rate it needs; both are programming errors.
func Convert(amount MoneyAmount, to Currency, price PriceSnapshot) MoneyAmount {
	if amount.Currency == to {
		return amount
	}
	from := price.mustRate(amount.Currency)
	target := price.mustRate(to)

	v := decimal.NewFromInt(amount.Value).Mul(target).Div(from).RoundBank(0)
	return MoneyAmount{Value: v.IntPart(), Currency: to}
}

// ToSats is Convert into BTC.
func ToSats(amount MoneyAmount, price PriceSnapshot) int64 {
	return Convert(amount, BTC, price).Value
}
