package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/fee"
	"github.com/congo-pay/sendbtc/internal/journal"
	"github.com/congo-pay/sendbtc/internal/validation"
)

// ErrConditionsUnavailable is returned when the balance or price cannot be read.
var ErrConditionsUnavailable = errors.New("balance or price unavailable")

// Balances reads and invalidates the cached wallet balance of an account.
type Balances interface {
	ReadCachedBalance(ctx context.Context, accountID string) (currency.MoneyAmount, error)
	InvalidateBalanceAndHistory(ctx context.Context, accountID string) error
}

// Prices returns the latest price observation.
type Prices interface {
	Latest(ctx context.Context) (currency.PriceSnapshot, error)
}

// Config wires the collaborators of a Service.
type Config struct {
	Gateway   Gateway
	Fees      fee.Resolver
	Balances  Balances
	Prices    Prices
	Journal   journal.Journal
	Listeners []Listener
	// Freshness is the maximum accepted price age.
	Freshness time.Duration
	// Retention is how long prepared and finished submissions stay addressable in memory.
	Retention time.Duration
	Logger    *slog.Logger
}

type tracked struct {
	accountID string
	sub       *Submission
	createdAt time.Time
	last      Conditions // guarded by Service.mu
}

// Service prepares, submits and reports submissions on behalf of accounts.
type Service struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*tracked
}

// NewService constructs the payments service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * time.Minute
	}
	return &Service{cfg: cfg, now: time.Now, entries: make(map[string]*tracked)}
}

// Quote is the state of a submission as shown to its owner.
type Quote struct {
	ID          string
	Kind        draft.Kind
	Destination string
	Memo        string
	State       Status

	Amount     currency.MoneyAmount
	AmountSats int64
	Fee        fee.Fee
	FeeSats    *int64
	TotalSats  int64

	// Primary is the amount in the display currency. Secondary is the same
	// amount in USD when the display currency is BTC, otherwise in BTC.
	Primary        currency.MoneyAmount
	Secondary      *currency.MoneyAmount
	PrimaryTotal   currency.MoneyAmount
	SecondaryTotal *currency.MoneyAmount

	Balance         currency.MoneyAmount
	PriceObservedAt time.Time
	Validation      *validation.Error
	Advisory        *validation.Advisory
	Outcome         *Outcome
}

// Prepare registers a submission for d, resolves its fee and evaluates it
// against the account's live balance and the latest price.
func (s *Service) Prepare(ctx context.Context, accountID string, d draft.Draft) (Quote, error) {
	id := uuid.NewString()
	sub := NewSubmission(id, d, s.deps(accountID))

	var cond Conditions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balance, err := s.cfg.Balances.ReadCachedBalance(gctx, accountID)
		if err != nil {
			return fmt.Errorf("%w: read balance: %v", ErrConditionsUnavailable, err)
		}
		cond.Balance = balance
		return nil
	})
	g.Go(func() error {
		price, err := s.cfg.Prices.Latest(gctx)
		if err != nil {
			return fmt.Errorf("%w: read price: %v", ErrConditionsUnavailable, err)
		}
		if err := checkRates(d, price); err != nil {
			return err
		}
		cond.Price = price
		sub.ResolveFee(gctx, price)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Quote{}, err
	}
	if _, ok := cond.Price.Rate(cond.Balance.Currency); !ok {
		return Quote{}, fmt.Errorf("%w: no %s rate", ErrConditionsUnavailable, cond.Balance.Currency)
	}
	cond.Now = s.now()

	s.mu.Lock()
	s.entries[id] = &tracked{accountID: accountID, sub: sub, createdAt: cond.Now, last: cond}
	s.mu.Unlock()

	return s.quote(sub, cond), nil
}

// Get re-evaluates a submission against current conditions. Submissions no
// longer held in memory are reported from the journal. Once a submission has
// been dispatched its outcome is reported even when live conditions cannot be
// read; the quote then carries the last conditions it was evaluated against.
func (s *Service) Get(ctx context.Context, accountID, id string) (Quote, error) {
	t, err := s.lookup(accountID, id)
	if errors.Is(err, ErrSubmissionNotFound) && s.cfg.Journal != nil {
		return s.fromJournal(ctx, accountID, id)
	}
	if err != nil {
		return Quote{}, err
	}

	cond, err := s.conditions(ctx, accountID, t.sub.Draft())
	if err != nil {
		if _, dispatched := t.sub.Dispatched(); !dispatched {
			return Quote{}, err
		}
		s.cfg.Logger.Debug("reporting submission with stale conditions",
			slog.String("submission_id", id), slog.String("error", err.Error()))
		return s.quote(t.sub, s.lastConditions(t)), nil
	}
	s.remember(t, cond)
	if t.sub.State() == StatusIdle && !t.sub.Fee().IsKnown() {
		t.sub.ResolveFee(ctx, cond.Price)
	}
	return s.quote(t.sub, cond), nil
}

// Submit dispatches a prepared submission and waits for its outcome. If ctx
// ends first the quote reports the submission as still in flight.
func (s *Service) Submit(ctx context.Context, accountID, id string) (Quote, error) {
	t, err := s.lookup(accountID, id)
	if err != nil {
		return Quote{}, err
	}

	cond, err := s.conditions(ctx, accountID, t.sub.Draft())
	if err != nil {
		return Quote{}, err
	}
	s.remember(t, cond)

	stream, err := t.sub.Submit(ctx, cond)
	if err != nil {
		return Quote{}, err
	}

wait:
	for {
		select {
		case tr, ok := <-stream:
			if !ok || tr.To.Terminal() {
				break wait
			}
		case <-ctx.Done():
			break wait
		}
	}
	return s.quote(t.sub, cond), nil
}

// History lists the account's journaled submissions, newest first.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]journal.Entry, error) {
	if s.cfg.Journal == nil {
		return nil, nil
	}
	return s.cfg.Journal.List(ctx, accountID, limit)
}

// Sweep forgets submissions older than the retention period, except those
// still in flight.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.cfg.Retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.entries {
		if t.createdAt.Before(cutoff) && t.sub.State() != StatusSubmitting {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps on every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.cfg.Logger.Debug("swept submissions", slog.Int("count", n))
			}
		}
	}
}

func (s *Service) lookup(accountID, id string) (*tracked, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.entries[id]
	if !ok || t.accountID != accountID {
		return nil, ErrSubmissionNotFound
	}
	return t, nil
}

func (s *Service) remember(t *tracked, cond Conditions) {
	s.mu.Lock()
	t.last = cond
	s.mu.Unlock()
}

func (s *Service) lastConditions(t *tracked) Conditions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.last
}

func (s *Service) conditions(ctx context.Context, accountID string, d draft.Draft) (Conditions, error) {
	var cond Conditions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balance, err := s.cfg.Balances.ReadCachedBalance(gctx, accountID)
		if err != nil {
			return fmt.Errorf("%w: read balance: %v", ErrConditionsUnavailable, err)
		}
		cond.Balance = balance
		return nil
	})
	g.Go(func() error {
		price, err := s.cfg.Prices.Latest(gctx)
		if err != nil {
			return fmt.Errorf("%w: read price: %v", ErrConditionsUnavailable, err)
		}
		if err := checkRates(d, price); err != nil {
			return err
		}
		cond.Price = price
		return nil
	})
	if err := g.Wait(); err != nil {
		return Conditions{}, err
	}
	if _, ok := cond.Price.Rate(cond.Balance.Currency); !ok {
		return Conditions{}, fmt.Errorf("%w: no %s rate", ErrConditionsUnavailable, cond.Balance.Currency)
	}
	cond.Now = s.now()
	return cond, nil
}

// checkRates makes sure price can convert the draft's amounts.
func checkRates(d draft.Draft, price currency.PriceSnapshot) error {
	base := d.Common()
	for _, c := range []currency.Currency{base.ReferenceAmount.Currency, base.DisplayCurrency} {
		if c == "" {
			continue
		}
		if r, ok := price.Rate(c); !ok || !r.IsPositive() {
			return fmt.Errorf("%w: no %s rate", ErrConditionsUnavailable, c)
		}
	}
	return nil
}

func (s *Service) deps(accountID string) Deps {
	deps := Deps{
		AccountID: accountID,
		Gateway:   s.cfg.Gateway,
		Fees:      s.cfg.Fees,
		Freshness: s.cfg.Freshness,
		Logger:    s.cfg.Logger.With(slog.String("account_id", accountID)),
		Cache: InvalidatorFunc(func(ctx context.Context) error {
			return s.cfg.Balances.InvalidateBalanceAndHistory(ctx, accountID)
		}),
	}
	if s.cfg.Journal != nil {
		deps.Guard = s.beginJournal(accountID)
		deps.Listeners = append(deps.Listeners, ListenerFunc(s.completeJournal))
	}
	deps.Listeners = append(deps.Listeners, s.cfg.Listeners...)
	return deps
}

func (s *Service) beginJournal(accountID string) DispatchGuard {
	return func(ctx context.Context, ev Event) error {
		entry := journal.Entry{
			ID:          ev.SubmissionID,
			AccountID:   accountID,
			Kind:        string(ev.Draft.Kind()),
			Destination: ev.Draft.Destination(),
			AmountSats:  ev.AmountSats,
			Memo:        ev.Draft.Common().Memo,
			Status:      journal.StatusSubmitting,
			CreatedAt:   ev.DispatchedAt,
		}
		if ev.Fee.IsKnown() && ev.Fee.Value.Currency.Native() {
			sats := ev.Fee.Value.Value
			entry.FeeSats = &sats
		}
		return s.cfg.Journal.Begin(ctx, entry)
	}
}

func (s *Service) completeJournal(ctx context.Context, ev Event) {
	c := journal.Completion{Status: string(ev.Outcome.Status), CompletedAt: ev.CompletedAt}
	if f := ev.Outcome.Failure; f != nil {
		c.Reason = string(f.Reason)
		c.Messages = f.Messages
	}
	if err := s.cfg.Journal.Complete(ctx, ev.SubmissionID, c); err != nil {
		s.cfg.Logger.Error("journal completion failed", slog.String("submission_id", ev.SubmissionID), slog.Any("error", err))
	}
}

func (s *Service) quote(sub *Submission, cond Conditions) Quote {
	d := sub.Draft()
	base := d.Common()
	q := Quote{
		ID:              sub.ID(),
		Kind:            d.Kind(),
		Destination:     d.Destination(),
		Memo:            base.Memo,
		State:           sub.State(),
		Amount:          base.ReferenceAmount,
		Balance:         cond.Balance,
		PriceObservedAt: cond.Price.ObservedAt,
	}

	price := cond.Price
	if ev, ok := sub.Dispatched(); ok {
		q.AmountSats = ev.AmountSats
		q.Fee = ev.Fee
		if out, done := sub.Outcome(); done {
			q.State = out.Status
			q.Outcome = &out
		}
	} else {
		q.AmountSats = currency.ToSats(base.ReferenceAmount, price)
		q.Fee = sub.Fee()
		res := sub.Evaluate(cond)
		q.Validation = res.Error
		q.Advisory = res.Advisory
	}

	if q.Fee.IsKnown() {
		sats := q.Fee.Sats(price)
		q.FeeSats = &sats
	}
	q.TotalSats = q.AmountSats + q.Fee.Sats(price)

	display := base.DisplayCurrency
	if !display.Valid() {
		display = base.ReferenceAmount.Currency
	}
	q.Primary, q.Secondary = displayPair(currency.Sats(q.AmountSats), display, price)
	q.PrimaryTotal, q.SecondaryTotal = displayPair(currency.Sats(q.TotalSats), display, price)
	return q
}

// displayPair renders sats in the display currency and in its counterpart.
// The counterpart is omitted when the price has no rate for it.
func displayPair(sats currency.MoneyAmount, display currency.Currency, price currency.PriceSnapshot) (currency.MoneyAmount, *currency.MoneyAmount) {
	if _, ok := price.Rate(display); !ok {
		display = currency.BTC
	}
	primary := currency.Convert(sats, display, price)

	counterpart := currency.BTC
	if display.Native() {
		counterpart = currency.USD
	}
	if _, ok := price.Rate(counterpart); !ok {
		return primary, nil
	}
	secondary := currency.Convert(sats, counterpart, price)
	return primary, &secondary
}

func (s *Service) fromJournal(ctx context.Context, accountID, id string) (Quote, error) {
	entry, err := s.cfg.Journal.Get(ctx, id)
	if errors.Is(err, journal.ErrNotFound) || (err == nil && entry.AccountID != accountID) {
		return Quote{}, ErrSubmissionNotFound
	}
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		ID:          entry.ID,
		Kind:        draft.Kind(entry.Kind),
		Destination: entry.Destination,
		Memo:        entry.Memo,
		State:       Status(entry.Status),
		Amount:      currency.Sats(entry.AmountSats),
		AmountSats:  entry.AmountSats,
		FeeSats:     entry.FeeSats,
		TotalSats:   entry.AmountSats,
		Primary:     currency.Sats(entry.AmountSats),
	}
	if entry.FeeSats != nil {
		q.Fee = fee.Known(currency.Sats(*entry.FeeSats))
		q.TotalSats += *entry.FeeSats
	}
	q.PrimaryTotal = currency.Sats(q.TotalSats)
	if q.State.Terminal() {
		out := Outcome{Status: q.State}
		if q.State == StatusError {
			out.Failure = &Failure{Reason: Reason(entry.Reason), Messages: entry.Messages}
		}
		q.Outcome = &out
	}
	return q, nil
}
