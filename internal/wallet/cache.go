// Package wallet caches the wallet data of the main query in Redis.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/sendbtc/internal/currency"
)

// ErrNoWallet is returned when the account has no wallet.
var ErrNoWallet = errors.New("account has no wallet")

const keyPrefix = "wallet:v1:"

// Fetcher runs the main query over the network.
type Fetcher interface {
	FetchMain(ctx context.Context) (Main, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (Main, error)

func (f FetcherFunc) FetchMain(ctx context.Context) (Main, error) { return f(ctx) }

// Cache is a cache-first view over the main query, keyed per account.
type Cache struct {
	redis   *redis.Client
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCache builds a Cache. A ttl of zero keeps entries until invalidated.
func NewCache(client *redis.Client, fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{redis: client, fetcher: fetcher, ttl: ttl, logger: logger}
}

func balanceKey(accountID string) string      { return keyPrefix + accountID + ":balance" }
func transactionsKey(accountID string) string { return keyPrefix + accountID + ":transactions" }
func quizKey(accountID string) string         { return keyPrefix + accountID + ":quiz" }

// ReadCachedBalance returns the balance of the account's first wallet,
// fetching the main query on a cache miss.
func (c *Cache) ReadCachedBalance(ctx context.Context, accountID string) (currency.MoneyAmount, error) {
	raw, err := c.redis.Get(ctx, balanceKey(accountID)).Result()
	if err == nil {
		var w Wallet
		if err := json.Unmarshal([]byte(raw), &w); err == nil {
			return balanceOf(w)
		}
		c.logger.Warn("discarding undecodable cached balance", slog.String("account_id", accountID))
	} else if err != redis.Nil {
		return currency.MoneyAmount{}, fmt.Errorf("read cached balance: %w", err)
	}

	main, err := c.refresh(ctx, accountID)
	if err != nil {
		return currency.MoneyAmount{}, err
	}
	if len(main.Wallets) == 0 {
		return currency.MoneyAmount{}, ErrNoWallet
	}
	return balanceOf(main.Wallets[0])
}

// ReadRecentTransactions returns the cached recent history of the account's
// first wallet.
func (c *Cache) ReadRecentTransactions(ctx context.Context, accountID string) ([]Transaction, error) {
	var txs []Transaction
	hit, err := c.readJSON(ctx, transactionsKey(accountID), &txs)
	if err != nil {
		return nil, err
	}
	if hit {
		return txs, nil
	}

	main, err := c.refresh(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(main.Wallets) == 0 {
		return nil, ErrNoWallet
	}
	return main.Wallets[0].Transactions, nil
}

// ReadQuizProgress returns the quiz maps of the account.
func (c *Cache) ReadQuizProgress(ctx context.Context, accountID string) (QuizProgress, error) {
	var p QuizProgress
	hit, err := c.readJSON(ctx, quizKey(accountID), &p)
	if err != nil {
		return QuizProgress{}, err
	}
	if hit {
		return p, nil
	}

	main, err := c.refresh(ctx, accountID)
	if err != nil {
		return QuizProgress{}, err
	}
	return main.Progress(), nil
}

// InvalidateBalanceAndHistory drops the cached balance and history and
// refetches them from the network.
func (c *Cache) InvalidateBalanceAndHistory(ctx context.Context, accountID string) error {
	if err := c.redis.Del(ctx, balanceKey(accountID), transactionsKey(accountID)).Err(); err != nil {
		return fmt.Errorf("drop cached balance: %w", err)
	}
	if _, err := c.refresh(ctx, accountID); err != nil {
		return err
	}
	return nil
}

func (c *Cache) refresh(ctx context.Context, accountID string) (Main, error) {
	main, err := c.fetcher.FetchMain(ctx)
	if err != nil {
		return Main{}, fmt.Errorf("fetch main query: %w", err)
	}

	quiz, err := json.Marshal(main.Progress())
	if err != nil {
		return Main{}, err
	}

	_, err = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, quizKey(accountID), quiz, c.ttl)
		if len(main.Wallets) == 0 {
			pipe.Del(ctx, balanceKey(accountID), transactionsKey(accountID))
			return nil
		}
		w := main.Wallets[0]
		txs, err := json.Marshal(w.Transactions)
		if err != nil {
			return err
		}
		head := w
		head.Transactions = nil
		bal, err := json.Marshal(head)
		if err != nil {
			return err
		}
		pipe.Set(ctx, balanceKey(accountID), bal, c.ttl)
		pipe.Set(ctx, transactionsKey(accountID), txs, c.ttl)
		return nil
	})
	if err != nil {
		return Main{}, fmt.Errorf("store main query: %w", err)
	}
	return main, nil
}

func (c *Cache) readJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("discarding undecodable cache entry", slog.String("key", key), slog.Any("error", err))
		return false, nil
	}
	return true, nil
}

func balanceOf(w Wallet) (currency.MoneyAmount, error) {
	cur := currency.BTC
	if w.Currency != "" {
		parsed, err := currency.Parse(w.Currency)
		if err != nil {
			return currency.MoneyAmount{}, fmt.Errorf("wallet %s: %w", w.ID, err)
		}
		cur = parsed
	}
	return currency.New(w.Balance, cur), nil
}
