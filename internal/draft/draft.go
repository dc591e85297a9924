// Package draft models a fully specified outgoing payment before it is sent.
package draft

import "github.com/congo-pay/sendbtc/internal/currency"

// Kind names the settlement channel a draft is sent through.
type Kind string

const (
	KindLightning   Kind = "lightning"
	KindOnChain     Kind = "onchain"
	KindIntraLedger Kind = "intraledger"
)

// Draft is one of Lightning, OnChain or IntraLedger. The set is closed.
type Draft interface {
	Kind() Kind
	Common() Base
	// Destination is a short human readable form of where the money goes.
	Destination() string
	sealed()
}

// Base carries the fields shared by every variant.
type Base struct {
	// ReferenceAmount is the amount the user entered, in the currency they entered it in.
	ReferenceAmount currency.MoneyAmount
	// DisplayCurrency is the currency totals are shown in.
	DisplayCurrency currency.Currency
	// Memo is optional; empty means none.
	Memo string
}

func (b Base) Common() Base { return b }
func (Base) sealed()        {}

// Lightning pays a BOLT11 invoice.
type Lightning struct {
	Base
	Invoice string
	// Amountless invoices take their amount from ReferenceAmount.
	Amountless bool
	// SameNode is set when the invoice was issued by the wallet's own node.
	SameNode bool
}

func (Lightning) Kind() Kind { return KindLightning }

// Destination abbreviates the invoice to its first and last 18 characters.
func (l Lightning) Destination() string {
	if len(l.Invoice) <= 36 {
		return l.Invoice
	}
	return l.Invoice[:18] + "..." + l.Invoice[len(l.Invoice)-18:]
}

// OnChain pays a bitcoin address.
type OnChain struct {
	Base
	Address string
}

func (OnChain) Kind() Kind             { return KindOnChain }
func (o OnChain) Destination() string { return o.Address }

// IntraLedger pays another wallet user by handle.
type IntraLedger struct {
	Base
	RecipientHandle string
}

func (IntraLedger) Kind() Kind             { return KindIntraLedger }
func (i IntraLedger) Destination() string { return i.RecipientHandle }

// RequiresAmount reports whether the draft's amount must come from the
// reference amount rather than from the payment request itself.
func RequiresAmount(d Draft) bool {
	switch v := d.(type) {
	case Lightning:
		return v.Amountless
	case OnChain:
		return true
	case IntraLedger:
		return true
	default:
		panic("draft: unknown variant")
	}
}
