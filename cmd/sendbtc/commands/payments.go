package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/congo-pay/sendbtc/internal/apiclient"
	"github.com/congo-pay/sendbtc/internal/payments"
)

func bindDraftFlags(fs *pflag.FlagSet, req *payments.DraftRequest) {
	fs.StringVar(&req.Type, "type", "", "payment type: lightning, onchain or intraledger")
	fs.StringVar(&req.Invoice, "invoice", "", "lightning invoice")
	fs.BoolVar(&req.Amountless, "amountless", false, "the invoice carries no amount")
	fs.BoolVar(&req.SameNode, "same-node", false, "the invoice is payable inside the wallet")
	fs.StringVar(&req.Address, "address", "", "on-chain address")
	fs.StringVar(&req.Recipient, "to", "", "recipient username for intraledger payments")
	fs.Int64Var(&req.Amount, "amount", 0, "amount in the minor unit of --currency")
	fs.StringVar(&req.Currency, "currency", "BTC", "currency of --amount")
	fs.StringVar(&req.DisplayCurrency, "display", "", "currency to show the quote in (default --currency)")
	fs.StringVar(&req.Memo, "memo", "", "note attached to the payment")
}

func quoteCmd(opts *options) *cobra.Command {
	var req payments.DraftRequest
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Prepare a payment and print its quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.client.Prepare(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q.Raw)
		},
	}
	bindDraftFlags(cmd.Flags(), &req)
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func submitCmd(opts *options) *cobra.Command {
	var sub apiclient.SubmitOptions
	cmd := &cobra.Command{
		Use:   "submit <payment-id>",
		Short: "Submit a prepared payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.client.Submit(cmd.Context(), args[0], sub)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q.Raw)
		},
	}
	cmd.Flags().StringVar(&sub.PIN, "pin", "", "spending PIN")
	cmd.Flags().StringVar(&sub.IdempotencyKey, "idempotency-key", "", "reuse a key to retry safely (default random)")
	return cmd
}

func sendCmd(opts *options) *cobra.Command {
	var (
		req payments.DraftRequest
		sub apiclient.SubmitOptions
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Prepare and submit a payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.client.Prepare(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), q.Raw); err != nil {
				return err
			}
			result, err := opts.client.Submit(cmd.Context(), q.ID, sub)
			if err != nil {
				return fmt.Errorf("submit %s: %w", q.ID, err)
			}
			return printJSON(cmd.OutOrStdout(), result.Raw)
		},
	}
	bindDraftFlags(cmd.Flags(), &req)
	cmd.Flags().StringVar(&sub.PIN, "pin", "", "spending PIN")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <payment-id>",
		Short: "Show a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q.Raw)
		},
	}
}

func historyCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of payments to list (max 100)")
	return cmd
}
