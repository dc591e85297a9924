package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/fee"
	"github.com/congo-pay/sendbtc/internal/validation"
)

// Conditions are the live facts a decision is taken against.
type Conditions struct {
	Balance currency.MoneyAmount
	Price   currency.PriceSnapshot
	Now     time.Time
}

// Deps are the collaborators of a Submission.
type Deps struct {
	// AccountID is reported on events; it is empty for standalone use.
	AccountID string
	Gateway   Gateway
	Fees      fee.Resolver
	Cache     BalanceInvalidator
	Listeners []Listener
	Guard     DispatchGuard
	// Freshness is the maximum accepted price age.
	Freshness time.Duration
	Logger    *slog.Logger
}

// Submission drives one draft from idle to a terminal outcome. It dispatches
// at most one channel request over its lifetime.
type Submission struct {
	id    string
	draft draft.Draft
	deps  Deps

	mu        sync.Mutex
	state     Status
	fee       fee.Fee
	feeSeq    uint64
	feeStored uint64
	event     Event
	outcome   *Outcome
}

// NewSubmission prepares an idle submission for d.
func NewSubmission(id string, d draft.Draft, deps Deps) *Submission {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Submission{id: id, draft: d, deps: deps, state: StatusIdle}
}

// ID returns the submission identifier.
func (s *Submission) ID() string { return s.id }

// Draft returns the draft being submitted.
func (s *Submission) Draft() draft.Draft { return s.draft }

// State returns the current status.
func (s *Submission) State() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns the terminal outcome, if any.
func (s *Submission) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

// Dispatched returns the request as it was frozen at dispatch time.
func (s *Submission) Dispatched() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatusIdle {
		return Event{}, false
	}
	return s.event, true
}

// Fee returns the latest resolved fee.
func (s *Submission) Fee() fee.Fee {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fee
}

// ResolveFee asks the resolver for a fee at price and keeps it unless a
// resolution started later has already been stored.
func (s *Submission) ResolveFee(ctx context.Context, price currency.PriceSnapshot) fee.Fee {
	s.mu.Lock()
	s.feeSeq++
	seq := s.feeSeq
	s.mu.Unlock()

	f := s.deps.Fees.Resolve(ctx, s.draft, price)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.feeStored {
		s.fee = f
		s.feeStored = seq
	}
	return s.fee
}

// Evaluate runs the validation rules against cond and the current fee.
func (s *Submission) Evaluate(cond Conditions) validation.Result {
	return validation.Evaluate(s.input(s.Fee(), cond))
}

func (s *Submission) input(f fee.Fee, cond Conditions) validation.Input {
	return validation.Input{
		Draft:     s.draft,
		Fee:       f,
		Balance:   cond.Balance,
		Price:     cond.Price,
		Now:       cond.Now,
		Freshness: s.deps.Freshness,
	}
}

// Submit validates against cond and dispatches the draft on its channel.
// The returned stream yields the submitting transition and then the terminal
// one, and is closed afterwards. It is buffered, so callers that stop reading
// do not hold the submission up.
//
// Submit returns a *validation.Error for an invalid draft, an *AdvisoryError
// while an advisory is active, ErrInFlight while a request is outstanding and
// ErrDraftConsumed once an outcome was reached. Cancelling ctx after Submit
// returns does not cancel the dispatched request.
func (s *Submission) Submit(ctx context.Context, cond Conditions) (<-chan Transition, error) {
	s.mu.Lock()
	switch {
	case s.state == StatusSubmitting:
		s.mu.Unlock()
		return nil, ErrInFlight
	case s.state.Terminal():
		s.mu.Unlock()
		return nil, ErrDraftConsumed
	}

	res := validation.Evaluate(s.input(s.fee, cond))
	if res.Error != nil {
		s.mu.Unlock()
		return nil, res.Error
	}
	if res.Advisory != nil {
		s.mu.Unlock()
		return nil, &AdvisoryError{Advisory: *res.Advisory}
	}

	ev := Event{
		SubmissionID: s.id,
		AccountID:    s.deps.AccountID,
		Draft:        s.draft,
		AmountSats:   currency.ToSats(s.draft.Common().ReferenceAmount, cond.Price),
		Fee:          s.fee,
		DispatchedAt: time.Now().UTC(),
	}
	s.state = StatusSubmitting
	s.event = ev
	s.mu.Unlock()

	if s.deps.Guard != nil {
		if err := s.deps.Guard(ctx, ev); err != nil {
			s.mu.Lock()
			s.state = StatusIdle
			s.mu.Unlock()
			return nil, fmt.Errorf("dispatch guard: %w", err)
		}
	}

	out := make(chan Transition, 2)
	out <- Transition{From: StatusIdle, To: StatusSubmitting, At: ev.DispatchedAt}
	go s.run(context.WithoutCancel(ctx), ev, out)
	return out, nil
}

func (s *Submission) run(ctx context.Context, ev Event, out chan<- Transition) {
	defer close(out)

	outcome := s.dispatch(ctx, ev)
	logger := s.deps.Logger.With(slog.String("submission_id", s.id), slog.String("channel", string(s.draft.Kind())))

	if outcome.Status == StatusSuccess && s.deps.Cache != nil {
		if err := s.deps.Cache.InvalidateBalanceAndHistory(ctx); err != nil {
			logger.Warn("invalidate wallet cache", slog.Any("error", err))
		}
	}

	ev.Outcome = outcome
	ev.CompletedAt = time.Now().UTC()

	s.mu.Lock()
	s.state = outcome.Status
	s.outcome = &outcome
	s.event = ev
	s.mu.Unlock()

	if outcome.Failure != nil {
		logger.Info("submission finished",
			slog.String("status", string(outcome.Status)),
			slog.String("reason", string(outcome.Failure.Reason)),
			slog.String("messages", strings.Join(outcome.Failure.Messages, "; ")))
	} else {
		logger.Info("submission finished", slog.String("status", string(outcome.Status)))
	}

	for _, l := range s.deps.Listeners {
		l.OnTerminal(ctx, ev)
	}

	out <- Transition{From: StatusSubmitting, To: outcome.Status, Outcome: &outcome, At: ev.CompletedAt}
}

// dispatch sends exactly one request on the draft's channel and classifies
// the response.
func (s *Submission) dispatch(ctx context.Context, ev Event) Outcome {
	switch d := s.draft.(type) {
	case draft.Lightning:
		req := LightningRequest{Invoice: d.Invoice, Memo: d.Memo}
		if d.Amountless {
			amount := ev.AmountSats
			req.Amount = &amount
		}
		resp, err := s.deps.Gateway.PayInvoice(ctx, req)
		if err != nil {
			return transportFailure(err)
		}
		return classifyLightning(resp)

	case draft.OnChain:
		resp, err := s.deps.Gateway.PayOnChain(ctx, OnChainRequest{Address: d.Address, Amount: ev.AmountSats, Memo: d.Memo})
		if err != nil {
			return transportFailure(err)
		}
		if resp.Success {
			return Outcome{Status: StatusSuccess}
		}
		return structuredFailure(resp.Errors, "on-chain payment was not accepted")

	case draft.IntraLedger:
		resp, err := s.deps.Gateway.SendIntraLedger(ctx, IntraLedgerRequest{Recipient: d.RecipientHandle, Amount: ev.AmountSats, Memo: d.Memo})
		if err != nil {
			return transportFailure(err)
		}
		if resp.Success {
			return Outcome{Status: StatusSuccess}
		}
		return structuredFailure(resp.Errors, "intra-ledger payment was not accepted")

	default:
		panic(fmt.Sprintf("payments: unknown draft variant %T", s.draft))
	}
}

func classifyLightning(resp LightningResponse) Outcome {
	switch strings.ToLower(resp.Status) {
	case "success":
		return Outcome{Status: StatusSuccess}
	case "pending":
		return Outcome{Status: StatusPending}
	}
	if resp.Status == "" {
		return structuredFailure(resp.Errors, "lightning payment failed")
	}
	return structuredFailure(resp.Errors, resp.Status)
}
