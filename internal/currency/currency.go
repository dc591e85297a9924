package currency

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

// Currency identifies one of the units the wallet can display or send in.
type Currency string

const (
	// BTC is the native unit. Amounts are held in satoshis.
	BTC Currency = "BTC"
	// USD amounts are held in cents.
	USD Currency = "USD"
	// EUR amounts are held in cents.
	EUR Currency = "EUR"
)

// Supported lists every currency the converter knows about.
var Supported = []Currency{BTC, USD, EUR}

// Parse maps a case-insensitive currency code onto the closed set.
func Parse(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", code)
	}
	return c, nil
}

// Valid reports whether c is part of the supported set.
func (c Currency) Valid() bool {
	for _, s := range Supported {
		if c == s {
			return true
		}
	}
	return false
}

// Native reports whether c is the bitcoin unit.
func (c Currency) Native() bool { return c == BTC }

// MoneyAmount is a value in the minor unit of its currency.
type MoneyAmount struct {
	Value    int64
	Currency Currency
}

// New builds an amount of value minor units of c.
func New(value int64, c Currency) MoneyAmount {
	return MoneyAmount{Value: value, Currency: c}
}

// Sats builds an amount in satoshis.
func Sats(value int64) MoneyAmount {
	return MoneyAmount{Value: value, Currency: BTC}
}

// IsZero reports whether the amount carries no value.
func (m MoneyAmount) IsZero() bool { return m.Value == 0 }

// String renders the amount for messages, e.g. "0.0001 BTC" or "3.00 USD".
func (m MoneyAmount) String() string {
	if m.Currency.Native() {
		return btcutil.Amount(m.Value).String()
	}
	return decimal.New(m.Value, -2).StringFixed(2) + " " + string(m.Currency)
}
