package payments

import "context"

// ChannelError is a structured failure reported by a settlement channel.
type ChannelError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// LightningRequest pays an invoice. Amount is only set for amountless invoices.
type LightningRequest struct {
	Invoice string
	Amount  *int64
	Memo    string
}

// LightningResponse carries the payment status, e.g. "SUCCESS" or "PENDING".
type LightningResponse struct {
	Status string
	Errors []ChannelError
}

// OnChainRequest pays Amount satoshis to Address.
type OnChainRequest struct {
	Address string
	Amount  int64
	Memo    string
}

type OnChainResponse struct {
	Success bool
	Errors  []ChannelError
}

// IntraLedgerRequest moves Amount satoshis to another wallet user.
type IntraLedgerRequest struct {
	Recipient string
	Amount    int64
	Memo      string
}

type IntraLedgerResponse struct {
	Success bool
	Errors  []ChannelError
}

// Gateway exposes one settlement channel per draft variant. A returned error
// means no structured response was received.
type Gateway interface {
	PayInvoice(ctx context.Context, req LightningRequest) (LightningResponse, error)
	PayOnChain(ctx context.Context, req OnChainRequest) (OnChainResponse, error)
	SendIntraLedger(ctx context.Context, req IntraLedgerRequest) (IntraLedgerResponse, error)
}
