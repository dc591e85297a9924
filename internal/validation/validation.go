// Package validation holds the checks a draft must pass before it is sent.
//
// Two kinds of result come out of Evaluate. An Error means the draft itself
// is unusable and has to be edited. An Advisory is derived from live state
// (balance, price age); it blocks sending until the state changes but is not
// a failure of the draft.
package validation

import (
	"fmt"
	"time"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/fee"
)

// Code identifies a draft validation failure.
type Code string

const (
	CodeNoAmount         Code = "no_amount"
	CodeInvalidRecipient Code = "invalid_recipient"
)

// Error is a draft validation failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	// ErrNoAmount is returned for a draft that needs an amount and has none.
	ErrNoAmount = &Error{Code: CodeNoAmount, Message: "an amount is required for this payment"}
	// ErrInvalidRecipient is returned for a malformed recipient handle.
	ErrInvalidRecipient = &Error{Code: CodeInvalidRecipient, Message: "recipient handle is not valid"}
)

// AdvisoryKind identifies a blocking warning.
type AdvisoryKind string

const (
	AdvisoryBalanceExceeded AdvisoryKind = "balance_exceeded"
	AdvisoryStalePrice      AdvisoryKind = "stale_price"
)

// Advisory blocks sending until the live condition behind it clears.
type Advisory struct {
	Kind    AdvisoryKind
	Message string
}

// Input is everything the rules look at, frozen at one instant.
type Input struct {
	Draft   draft.Draft
	Fee     fee.Fee
	Balance currency.MoneyAmount
	Price   currency.PriceSnapshot
	Now     time.Time
	// Freshness is the maximum price age; zero disables the check.
	Freshness time.Duration
}

// Result holds the first failing draft rule and the first active advisory.
type Result struct {
	Error    *Error
	Advisory *Advisory
}

// Blocked reports whether sending is disallowed.
func (r Result) Blocked() bool { return r.Error != nil || r.Advisory != nil }

// Evaluate runs every rule in precedence order.
func Evaluate(in Input) Result {
	return Result{Error: checkDraft(in), Advisory: checkConditions(in)}
}

func checkDraft(in Input) *Error {
	sats := currency.ToSats(in.Draft.Common().ReferenceAmount, in.Price)

	switch v := in.Draft.(type) {
	case draft.Lightning:
		if v.Amountless && sats == 0 {
			return ErrNoAmount
		}
	case draft.OnChain:
		if sats == 0 {
			return ErrNoAmount
		}
	case draft.IntraLedger:
		if !ValidHandle(v.RecipientHandle) {
			return ErrInvalidRecipient
		}
	}
	return nil
}

func checkConditions(in Input) *Advisory {
	sats := currency.ToSats(in.Draft.Common().ReferenceAmount, in.Price)
	total := sats + in.Fee.Sats(in.Price)
	if total > currency.ToSats(in.Balance, in.Price) {
		display := in.Draft.Common().DisplayCurrency
		if !display.Valid() {
			display = currency.BTC
		}
		return &Advisory{
			Kind:    AdvisoryBalanceExceeded,
			Message: fmt.Sprintf("Total exceeds your balance of %s", currency.Convert(in.Balance, display, in.Price)),
		}
	}

	if in.Freshness > 0 {
		if age := in.Price.Age(in.Now); age > in.Freshness {
			return &Advisory{
				Kind:    AdvisoryStalePrice,
				Message: fmt.Sprintf("The bitcoin price was last updated %s ago. Wait for a fresh price before sending.", period(age)),
			}
		}
	}
	return nil
}

func period(age time.Duration) string {
	hours := int(age / time.Hour)
	switch {
	case hours == 1:
		return "1 hour"
	case hours > 1:
		return fmt.Sprintf("%d hours", hours)
	}

	minutes := int(age / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
