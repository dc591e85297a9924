package walletapi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/payments"
	"github.com/congo-pay/sendbtc/internal/wallet"
)

// Simulator is an in-process stand-in for the wallet backend used when no
// API endpoint is configured. It settles every payment it can afford.
type Simulator struct {
	mu        sync.Mutex
	balance   int64
	txs       []wallet.Transaction
	usernames map[string]bool
	rates     map[currency.Currency]decimal.Decimal
}

var _ payments.Gateway = (*Simulator)(nil)

// NewSimulator starts a simulated wallet holding balance sats.
func NewSimulator(balance int64) *Simulator {
	return &Simulator{
		balance:   balance,
		usernames: map[string]bool{"alice": true, "bob": true},
		rates: map[currency.Currency]decimal.Decimal{
			currency.USD: decimal.RequireFromString("0.03"),
			currency.EUR: decimal.RequireFromString("0.0275"),
		},
	}
}

func (s *Simulator) settle(kind, direction string, amount, fee int64, memo, counterparty string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount+fee > s.balance {
		return false
	}
	s.balance -= amount + fee
	tx := wallet.Transaction{
		ID:                 uuid.NewString(),
		Kind:               kind,
		Direction:          direction,
		Status:             "SUCCESS",
		SettlementAmount:   -amount,
		SettlementFee:      fee,
		Memo:               memo,
		OtherPartyUsername: counterparty,
		CreatedAt:          time.Now().UTC(),
	}
	s.txs = append([]wallet.Transaction{tx}, s.txs...)
	if len(s.txs) > 3 {
		s.txs = s.txs[:3]
	}
	return true
}

func (s *Simulator) PayInvoice(_ context.Context, req payments.LightningRequest) (payments.LightningResponse, error) {
	var amount int64
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !s.settle("lightning", "SEND", amount, 0, req.Memo, "") {
		return payments.LightningResponse{Status: "FAILURE", Errors: []payments.ChannelError{{Message: "insufficient balance"}}}, nil
	}
	return payments.LightningResponse{Status: "SUCCESS"}, nil
}

func (s *Simulator) PayOnChain(_ context.Context, req payments.OnChainRequest) (payments.OnChainResponse, error) {
	fee, _ := s.OnChainFee(context.Background(), req.Address, req.Amount)
	if !s.settle("onchain", "SEND", req.Amount, fee, req.Memo, "") {
		return payments.OnChainResponse{Errors: []payments.ChannelError{{Message: "insufficient balance"}}}, nil
	}
	return payments.OnChainResponse{Success: true}, nil
}

func (s *Simulator) SendIntraLedger(_ context.Context, req payments.IntraLedgerRequest) (payments.IntraLedgerResponse, error) {
	s.mu.Lock()
	known := s.usernames[strings.ToLower(req.Recipient)]
	s.mu.Unlock()
	if !known {
		return payments.IntraLedgerResponse{Errors: []payments.ChannelError{{Message: "recipient not found"}}}, nil
	}
	if !s.settle("intraledger", "SEND", req.Amount, 0, req.Memo, req.Recipient) {
		return payments.IntraLedgerResponse{Errors: []payments.ChannelError{{Message: "insufficient balance"}}}, nil
	}
	return payments.IntraLedgerResponse{Success: true}, nil
}

// LightningFee charges a flat routing fee.
func (s *Simulator) LightningFee(context.Context, string, *int64) (int64, error) { return 1, nil }

// OnChainFee charges one percent with a floor of 200 sats.
func (s *Simulator) OnChainFee(_ context.Context, _ string, amount int64) (int64, error) {
	if f := amount / 100; f > 200 {
		return f, nil
	}
	return 200, nil
}

func (s *Simulator) FetchMain(context.Context) (wallet.Main, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wallet.Main{
		QuizQuestions: []wallet.QuizQuestion{{ID: "whatIsBitcoin", EarnAmount: 1}, {ID: "sat", EarnAmount: 1}},
		MyQuiz:        []wallet.QuizAnswer{},
		Wallets: []wallet.Wallet{{
			ID:           "simulated",
			Balance:      s.balance,
			Currency:     string(currency.BTC),
			Transactions: append([]wallet.Transaction(nil), s.txs...),
		}},
	}, nil
}

func (s *Simulator) FetchPrice(_ context.Context, c currency.Currency) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rates[c]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("simulator has no %s price", c)
	}
	return r, nil
}

func (s *Simulator) UsernameAvailable(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.usernames[strings.ToLower(username)], nil
}
