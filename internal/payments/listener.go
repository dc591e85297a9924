package payments

import (
	"context"
	"time"

	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/fee"
)

// Event describes a dispatched submission. Outcome and CompletedAt are set
// once the submission is terminal.
type Event struct {
	SubmissionID string
	AccountID    string
	Draft        draft.Draft
	AmountSats   int64
	Fee          fee.Fee
	DispatchedAt time.Time
	CompletedAt  time.Time
	Outcome      Outcome
}

// Listener observes terminal transitions. It is called once per submission
// and its work is not awaited by anything upstream of the submission.
type Listener interface {
	OnTerminal(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) OnTerminal(ctx context.Context, ev Event) { f(ctx, ev) }

// DispatchGuard runs after validation and before the channel call. An error
// aborts the submission and leaves it idle.
type DispatchGuard func(ctx context.Context, ev Event) error

// BalanceInvalidator drops the cached wallet balance and history.
type BalanceInvalidator interface {
	InvalidateBalanceAndHistory(ctx context.Context) error
}

// InvalidatorFunc adapts a function to BalanceInvalidator.
type InvalidatorFunc func(ctx context.Context) error

func (f InvalidatorFunc) InvalidateBalanceAndHistory(ctx context.Context) error { return f(ctx) }
