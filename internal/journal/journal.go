package journal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateSubmission indicates the submission id was already recorded
	// and the dispatch must not happen a second time.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrNotFound is returned for ids that were never recorded.
	ErrNotFound = errors.New("submission not found")
)

const (
	// StatusSubmitting marks an entry whose channel request is outstanding.
	StatusSubmitting = "submitting"
)

// Entry is the persisted record of one dispatched submission.
type Entry struct {
	ID          string
	AccountID   string
	Kind        string
	Destination string
	AmountSats  int64
	// FeeSats is nil when the fee was unknown at dispatch.
	FeeSats     *int64
	Memo        string
	Status      string
	Reason      string
	Messages    []string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Completion records how a submission ended.
type Completion struct {
	Status      string
	Reason      string
	Messages    []string
	CompletedAt time.Time
}

// Journal defines the contract implemented by journal backends (e.g. Postgres).
type Journal interface {
	EnsureSchema(ctx context.Context) error
	Begin(ctx context.Context, entry Entry) error
	Complete(ctx context.Context, id string, c Completion) error
	Get(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context, accountID string, limit int) ([]Entry, error)
}
