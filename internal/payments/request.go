package payments

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
)

// DraftRequest is the wire form of a draft.
type DraftRequest struct {
	Type            string `json:"type"`
	Invoice         string `json:"invoice,omitempty"`
	Amountless      bool   `json:"amountless,omitempty"`
	SameNode        bool   `json:"same_node,omitempty"`
	Address         string `json:"address,omitempty"`
	Recipient       string `json:"recipient,omitempty"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency,omitempty"`
	DisplayCurrency string `json:"display_currency,omitempty"`
	Memo            string `json:"memo,omitempty"`
}

// Draft converts the request. On-chain addresses must decode for params.
// Recipient handles are not checked here; that is a validation rule.
func (r DraftRequest) Draft(params *chaincfg.Params) (draft.Draft, error) {
	if r.Amount < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}

	cur := currency.BTC
	if r.Currency != "" {
		c, err := currency.Parse(r.Currency)
		if err != nil {
			return nil, err
		}
		cur = c
	}
	display := cur
	if r.DisplayCurrency != "" {
		c, err := currency.Parse(r.DisplayCurrency)
		if err != nil {
			return nil, err
		}
		display = c
	}
	base := draft.Base{
		ReferenceAmount: currency.New(r.Amount, cur),
		DisplayCurrency: display,
		Memo:            strings.TrimSpace(r.Memo),
	}

	switch draft.Kind(strings.ToLower(r.Type)) {
	case draft.KindLightning:
		invoice := strings.TrimSpace(r.Invoice)
		if invoice == "" {
			return nil, fmt.Errorf("invoice is required")
		}
		return draft.Lightning{Base: base, Invoice: invoice, Amountless: r.Amountless, SameNode: r.SameNode}, nil

	case draft.KindOnChain:
		address := strings.TrimSpace(r.Address)
		decoded, err := btcutil.DecodeAddress(address, params)
		if err != nil {
			return nil, fmt.Errorf("invalid bitcoin address: %w", err)
		}
		if !decoded.IsForNet(params) {
			return nil, fmt.Errorf("address is not for %s", params.Name)
		}
		return draft.OnChain{Base: base, Address: address}, nil

	case draft.KindIntraLedger:
		return draft.IntraLedger{Base: base, RecipientHandle: strings.TrimSpace(r.Recipient)}, nil

	default:
		return nil, fmt.Errorf("unknown payment type %q", r.Type)
	}
}
