package walletapi

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/sendbtc/internal/auth"
	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/fee"
	"github.com/congo-pay/sendbtc/internal/payments"
	"github.com/congo-pay/sendbtc/internal/price"
	"github.com/congo-pay/sendbtc/internal/wallet"
)

var (
	_ fee.Prober         = (*Client)(nil)
	_ wallet.Fetcher     = (*Client)(nil)
	_ price.Source       = (*Client)(nil)
	_ payments.Directory = (*Client)(nil)
)

const lightningFeeMutation = `mutation lightningFee($invoice: String!, $amount: Int) {
  invoice {
    getFee(invoice: $invoice, amount: $amount)
  }
}`

const onChainFeeQuery = `query onchain_fee($address: String!, $amount: Int!) {
  onchain {
    getFee(address: $address, amount: $amount)
  }
}`

const transactionListFragment = `fragment TransactionList on TransactionConnection {
  pageInfo {
    hasNextPage
  }
  edges {
    cursor
    node {
      __typename
      id
      settlementAmount
      settlementFee
      status
      direction
      memo
      createdAt
      ... on LnTransaction {
        paymentHash
      }
      ... on IntraLedgerTransaction {
        otherPartyUsername
      }
    }
  }
}`

const mainQuery = `query mainQuery($hasToken: Boolean!) {
  quizQuestions {
    id
    earnAmount
  }
  me @include(if: $hasToken) {
    id
    username
    quizQuestions {
      question {
        id
        earnAmount
      }
      completed
    }
    defaultAccount {
      defaultWalletId
      wallets {
        id
        balance
        walletCurrency
        transactions(first: 3) {
          ...TransactionList
        }
      }
    }
  }
}
` + transactionListFragment

const btcPriceQuery = `query btcPrice($currency: DisplayCurrency!) {
  btcPrice(currency: $currency) {
    base
    offset
    currencyUnit
  }
}`

const usernameAvailableQuery = `query usernameAvailable($username: Username!) {
  usernameAvailable(username: $username)
}`

func queryFailed(operation string, errs []graphQLError) error {
	return &ResponseError{Operation: operation, Messages: messages(errs)}
}

// LightningFee implements fee.Prober.
func (c *Client) LightningFee(ctx context.Context, invoice string, amount *int64) (int64, error) {
	vars := map[string]any{"invoice": invoice}
	if amount != nil {
		vars["amount"] = *amount
	}
	var data struct {
		Invoice *struct {
			GetFee *int64 `json:"getFee"`
		} `json:"invoice"`
	}
	errs, err := c.do(ctx, "lightningFee", lightningFeeMutation, vars, &data)
	if err != nil {
		return 0, err
	}
	if data.Invoice == nil || data.Invoice.GetFee == nil {
		return 0, queryFailed("lightningFee", errs)
	}
	return *data.Invoice.GetFee, nil
}

// OnChainFee implements fee.Prober.
func (c *Client) OnChainFee(ctx context.Context, address string, amount int64) (int64, error) {
	var data struct {
		Onchain *struct {
			GetFee *int64 `json:"getFee"`
		} `json:"onchain"`
	}
	errs, err := c.do(ctx, "onchain_fee", onChainFeeQuery, map[string]any{"address": address, "amount": amount}, &data)
	if err != nil {
		return 0, err
	}
	if data.Onchain == nil || data.Onchain.GetFee == nil {
		return 0, queryFailed("onchain_fee", errs)
	}
	return *data.Onchain.GetFee, nil
}

type transactionNode struct {
	Typename           string `json:"__typename"`
	ID                 string `json:"id"`
	SettlementAmount   int64  `json:"settlementAmount"`
	SettlementFee      int64  `json:"settlementFee"`
	Status             string `json:"status"`
	Direction          string `json:"direction"`
	Memo               string `json:"memo"`
	CreatedAt          int64  `json:"createdAt"`
	PaymentHash        string `json:"paymentHash"`
	OtherPartyUsername string `json:"otherPartyUsername"`
}

var transactionKinds = map[string]string{
	"LnTransaction":          "lightning",
	"OnChainTransaction":     "onchain",
	"IntraLedgerTransaction": "intraledger",
}

func (n transactionNode) toTransaction() wallet.Transaction {
	return wallet.Transaction{
		ID:                 n.ID,
		Kind:               transactionKinds[n.Typename],
		Direction:          n.Direction,
		Status:             n.Status,
		SettlementAmount:   n.SettlementAmount,
		SettlementFee:      n.SettlementFee,
		Memo:               n.Memo,
		PaymentHash:        n.PaymentHash,
		OtherPartyUsername: n.OtherPartyUsername,
		CreatedAt:          time.Unix(n.CreatedAt, 0).UTC(),
	}
}

type quizQuestion struct {
	ID         string `json:"id"`
	EarnAmount int64  `json:"earnAmount"`
}

// FetchMain implements wallet.Fetcher.
func (c *Client) FetchMain(ctx context.Context) (wallet.Main, error) {
	_, hasToken := auth.BearerFrom(ctx)
	var data struct {
		QuizQuestions []quizQuestion `json:"quizQuestions"`
		Me            *struct {
			QuizQuestions []struct {
				Question  quizQuestion `json:"question"`
				Completed bool         `json:"completed"`
			} `json:"quizQuestions"`
			DefaultAccount struct {
				Wallets []struct {
					ID             string `json:"id"`
					Balance        int64  `json:"balance"`
					WalletCurrency string `json:"walletCurrency"`
					Transactions   struct {
						Edges []struct {
							Node transactionNode `json:"node"`
						} `json:"edges"`
					} `json:"transactions"`
				} `json:"wallets"`
			} `json:"defaultAccount"`
		} `json:"me"`
	}
	errs, err := c.do(ctx, "mainQuery", mainQuery, map[string]any{"hasToken": hasToken}, &data)
	if err != nil {
		return wallet.Main{}, err
	}
	if data.QuizQuestions == nil && data.Me == nil && len(errs) > 0 {
		return wallet.Main{}, queryFailed("mainQuery", errs)
	}

	var main wallet.Main
	if data.QuizQuestions != nil {
		main.QuizQuestions = make([]wallet.QuizQuestion, 0, len(data.QuizQuestions))
		for _, q := range data.QuizQuestions {
			main.QuizQuestions = append(main.QuizQuestions, wallet.QuizQuestion{ID: q.ID, EarnAmount: q.EarnAmount})
		}
	}
	if data.Me == nil {
		return main, nil
	}
	if data.Me.QuizQuestions != nil {
		main.MyQuiz = make([]wallet.QuizAnswer, 0, len(data.Me.QuizQuestions))
		for _, a := range data.Me.QuizQuestions {
			main.MyQuiz = append(main.MyQuiz, wallet.QuizAnswer{
				Question:  wallet.QuizQuestion{ID: a.Question.ID, EarnAmount: a.Question.EarnAmount},
				Completed: a.Completed,
			})
		}
	}
	for _, w := range data.Me.DefaultAccount.Wallets {
		out := wallet.Wallet{ID: w.ID, Balance: w.Balance, Currency: w.WalletCurrency}
		for _, e := range w.Transactions.Edges {
			out.Transactions = append(out.Transactions, e.Node.toTransaction())
		}
		main.Wallets = append(main.Wallets, out)
	}
	return main, nil
}

// FetchPrice implements price.Source. The API quotes one satoshi as
// base * 10^-offset minor units of the currency.
func (c *Client) FetchPrice(ctx context.Context, cur currency.Currency) (decimal.Decimal, error) {
	var data struct {
		BtcPrice *struct {
			Base   int64 `json:"base"`
			Offset int32 `json:"offset"`
		} `json:"btcPrice"`
	}
	errs, err := c.do(ctx, "btcPrice", btcPriceQuery, map[string]any{"currency": string(cur)}, &data)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if data.BtcPrice == nil {
		return decimal.Decimal{}, queryFailed("btcPrice", errs)
	}
	rate := decimal.New(data.BtcPrice.Base, -data.BtcPrice.Offset)
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("wallet api returned non-positive %s price", cur)
	}
	return rate, nil
}

// UsernameAvailable implements payments.Directory.
func (c *Client) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var data struct {
		UsernameAvailable *bool `json:"usernameAvailable"`
	}
	errs, err := c.do(ctx, "usernameAvailable", usernameAvailableQuery, map[string]any{"username": username}, &data)
	if err != nil {
		return false, err
	}
	if data.UsernameAvailable == nil {
		return false, queryFailed("usernameAvailable", errs)
	}
	return *data.UsernameAvailable, nil
}
