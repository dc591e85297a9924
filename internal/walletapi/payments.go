package walletapi

import (
	"context"

	"github.com/congo-pay/sendbtc/internal/payments"
)

const payInvoiceMutation = `mutation payInvoice($invoice: String!, $amount: Int, $memo: String) {
  invoice {
    payInvoice(invoice: $invoice, amount: $amount, memo: $memo)
  }
}`

const onChainPayMutation = `mutation onchain_pay($address: String!, $amount: Int!, $memo: String) {
  onchain {
    pay(address: $address, amount: $amount, memo: $memo) {
      success
    }
  }
}`

const intraLedgerMutation = `mutation intraLedgerPaymentSend($input: IntraLedgerPaymentSendInput!) {
  intraLedgerPaymentSend(input: $input) {
    status
    errors {
      message
    }
  }
}`

var _ payments.Gateway = (*Client)(nil)

func channelErrors(errs []graphQLError) []payments.ChannelError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]payments.ChannelError, 0, len(errs))
	for _, e := range errs {
		out = append(out, payments.ChannelError{Message: e.Message, Code: e.Code})
	}
	return out
}

func optionalMemo(memo string) any {
	if memo == "" {
		return nil
	}
	return memo
}

// PayInvoice implements payments.Gateway.
func (c *Client) PayInvoice(ctx context.Context, req payments.LightningRequest) (payments.LightningResponse, error) {
	vars := map[string]any{"invoice": req.Invoice, "memo": optionalMemo(req.Memo)}
	if req.Amount != nil {
		vars["amount"] = *req.Amount
	}
	var data struct {
		Invoice *struct {
			PayInvoice string `json:"payInvoice"`
		} `json:"invoice"`
	}
	errs, err := c.do(ctx, "payInvoice", payInvoiceMutation, vars, &data)
	if err != nil {
		return payments.LightningResponse{}, err
	}
	resp := payments.LightningResponse{Errors: channelErrors(errs)}
	if data.Invoice != nil {
		resp.Status = data.Invoice.PayInvoice
	}
	return resp, nil
}

// PayOnChain implements payments.Gateway.
func (c *Client) PayOnChain(ctx context.Context, req payments.OnChainRequest) (payments.OnChainResponse, error) {
	vars := map[string]any{"address": req.Address, "amount": req.Amount, "memo": optionalMemo(req.Memo)}
	var data struct {
		Onchain *struct {
			Pay *struct {
				Success bool `json:"success"`
			} `json:"pay"`
		} `json:"onchain"`
	}
	errs, err := c.do(ctx, "onchain_pay", onChainPayMutation, vars, &data)
	if err != nil {
		return payments.OnChainResponse{}, err
	}
	resp := payments.OnChainResponse{Errors: channelErrors(errs)}
	if data.Onchain != nil && data.Onchain.Pay != nil {
		resp.Success = data.Onchain.Pay.Success
	}
	return resp, nil
}

// SendIntraLedger implements payments.Gateway.
func (c *Client) SendIntraLedger(ctx context.Context, req payments.IntraLedgerRequest) (payments.IntraLedgerResponse, error) {
	input := map[string]any{"recipient": req.Recipient, "amount": req.Amount}
	if req.Memo != "" {
		input["memo"] = req.Memo
	}
	var data struct {
		Send *struct {
			Status string         `json:"status"`
			Errors []graphQLError `json:"errors"`
		} `json:"intraLedgerPaymentSend"`
	}
	errs, err := c.do(ctx, "intraLedgerPaymentSend", intraLedgerMutation, map[string]any{"input": input}, &data)
	if err != nil {
		return payments.IntraLedgerResponse{}, err
	}
	if data.Send != nil {
		errs = append(errs, data.Send.Errors...)
	}
	resp := payments.IntraLedgerResponse{Errors: channelErrors(errs)}
	if data.Send != nil {
		resp.Success = data.Send.Status == "SUCCESS"
	}
	return resp, nil
}
