package payments

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/fee"
	"github.com/congo-pay/sendbtc/internal/logging"
	"github.com/congo-pay/sendbtc/internal/validation"
)

type fakeGateway struct {
	mu        sync.Mutex
	lightning []LightningRequest
	onchain   []OnChainRequest
	intra     []IntraLedgerRequest
	ctxs      []context.Context

	lnResp LightningResponse
	ocResp OnChainResponse
	ilResp IntraLedgerResponse
	err    error

	// when set, calls block until release is closed
	entered chan struct{}
	release chan struct{}
}

func (g *fakeGateway) record(ctx context.Context, fn func()) {
	g.mu.Lock()
	g.ctxs = append(g.ctxs, ctx)
	fn()
	g.mu.Unlock()
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
}

func (g *fakeGateway) PayInvoice(ctx context.Context, req LightningRequest) (LightningResponse, error) {
	g.record(ctx, func() { g.lightning = append(g.lightning, req) })
	return g.lnResp, g.err
}

func (g *fakeGateway) PayOnChain(ctx context.Context, req OnChainRequest) (OnChainResponse, error) {
	g.record(ctx, func() { g.onchain = append(g.onchain, req) })
	return g.ocResp, g.err
}

func (g *fakeGateway) SendIntraLedger(ctx context.Context, req IntraLedgerRequest) (IntraLedgerResponse, error) {
	g.record(ctx, func() { g.intra = append(g.intra, req) })
	return g.ilResp, g.err
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lightning) + len(g.onchain) + len(g.intra)
}

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (l *recordingListener) OnTerminal(_ context.Context, ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *recordingListener) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func fixedFee(sats int64) fee.Resolver {
	return fee.ResolverFunc(func(context.Context, draft.Draft, currency.PriceSnapshot) fee.Fee {
		return fee.Known(currency.Sats(sats))
	})
}

func freshPrice(now time.Time) currency.PriceSnapshot {
	return currency.NewPriceSnapshot(now, map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.RequireFromString("0.03"),
	})
}

func conditions(balance int64) Conditions {
	now := time.Now()
	return Conditions{Balance: currency.Sats(balance), Price: freshPrice(now), Now: now}
}

func lightningDraft(amount int64) draft.Lightning {
	return draft.Lightning{
		Base:    draft.Base{ReferenceAmount: currency.Sats(amount), DisplayCurrency: currency.BTC},
		Invoice: "lnbc100u1p3xyzexampleinvoice",
	}
}

type harness struct {
	gateway     *fakeGateway
	listener    *recordingListener
	invalidated atomic.Int32
}

func newHarness() *harness {
	return &harness{gateway: &fakeGateway{}, listener: &recordingListener{}}
}

func (h *harness) deps(feeSats int64) Deps {
	return Deps{
		Gateway:   h.gateway,
		Fees:      fixedFee(feeSats),
		Listeners: []Listener{h.listener},
		Freshness: 5 * time.Minute,
		Logger:    logging.Discard(),
		Cache: InvalidatorFunc(func(context.Context) error {
			h.invalidated.Add(1)
			return nil
		}),
	}
}

func drain(t *testing.T, stream <-chan Transition) []Transition {
	t.Helper()
	var out []Transition
	timeout := time.After(2 * time.Second)
	for {
		select {
		case tr, ok := <-stream:
			if !ok {
				return out
			}
			out = append(out, tr)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestLightningSuccess(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	sub := NewSubmission("sub-1", lightningDraft(10_000), h.deps(500))
	cond := conditions(20_000)

	f := sub.ResolveFee(context.Background(), cond.Price)
	require.Equal(t, fee.Known(currency.Sats(500)), f)
	require.False(t, sub.Evaluate(cond).Blocked())

	stream, err := sub.Submit(context.Background(), cond)
	require.NoError(t, err)
	trs := drain(t, stream)

	require.Len(t, trs, 2)
	require.Equal(t, StatusSubmitting, trs[0].To)
	require.Equal(t, StatusSuccess, trs[1].To)
	require.Equal(t, StatusSuccess, sub.State())

	require.Len(t, h.gateway.lightning, 1)
	require.Nil(t, h.gateway.lightning[0].Amount, "invoice carries the amount")
	require.EqualValues(t, 1, h.invalidated.Load())

	events := h.listener.all()
	require.Len(t, events, 1)
	require.Equal(t, StatusSuccess, events[0].Outcome.Status)
	require.EqualValues(t, 10_000, events[0].AmountSats)
}

func TestLightningPendingDoesNotInvalidate(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "pending"}
	sub := NewSubmission("sub-1", lightningDraft(10_000), h.deps(0))

	stream, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)
	trs := drain(t, stream)

	require.Equal(t, StatusPending, trs[len(trs)-1].To)
	require.Zero(t, h.invalidated.Load())
	require.Len(t, h.listener.all(), 1)
}

func TestLightningFailureMessages(t *testing.T) {
	cases := []struct {
		name string
		resp LightningResponse
		want []string
	}{
		{"channel errors", LightningResponse{Status: "FAILURE", Errors: []ChannelError{{Message: "no route"}}}, []string{"no route"}},
		{"status only", LightningResponse{Status: "FAILURE"}, []string{"FAILURE"}},
		{"nothing", LightningResponse{}, []string{"lightning payment failed"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.gateway.lnResp = tc.resp
			sub := NewSubmission("sub-1", lightningDraft(1_000), h.deps(0))

			stream, err := sub.Submit(context.Background(), conditions(20_000))
			require.NoError(t, err)
			drain(t, stream)

			out, ok := sub.Outcome()
			require.True(t, ok)
			require.Equal(t, StatusError, out.Status)
			require.Equal(t, ReasonStructured, out.Failure.Reason)
			require.Equal(t, tc.want, out.Failure.Messages)
			require.Zero(t, h.invalidated.Load())
		})
	}
}

func TestAmountlessLightningSendsAmount(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	d := lightningDraft(0)
	d.Amountless = true
	d.ReferenceAmount = currency.New(300, currency.USD)
	sub := NewSubmission("sub-1", d, h.deps(0))

	stream, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)
	drain(t, stream)

	require.Len(t, h.gateway.lightning, 1)
	require.NotNil(t, h.gateway.lightning[0].Amount)
	require.EqualValues(t, 10_000, *h.gateway.lightning[0].Amount)
}

func TestAmountlessLightningWithoutAmountIsRejected(t *testing.T) {
	h := newHarness()
	d := lightningDraft(0)
	d.Amountless = true
	sub := NewSubmission("sub-1", d, h.deps(0))

	_, err := sub.Submit(context.Background(), conditions(20_000))
	require.ErrorIs(t, err, validation.ErrNoAmount)
	require.Equal(t, StatusIdle, sub.State())
	require.Zero(t, h.gateway.calls())
}

func TestOnChainTransportError(t *testing.T) {
	h := newHarness()
	boom := errors.New("connection reset")
	h.gateway.err = boom
	d := draft.OnChain{
		Base:    draft.Base{ReferenceAmount: currency.New(150, currency.USD), DisplayCurrency: currency.USD},
		Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
	}
	sub := NewSubmission("sub-1", d, h.deps(200))

	stream, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)
	drain(t, stream)

	out, _ := sub.Outcome()
	require.Equal(t, StatusError, out.Status)
	require.Equal(t, ReasonTransport, out.Failure.Reason)
	require.ErrorIs(t, out.Failure.Cause, boom)
	require.Zero(t, h.invalidated.Load())

	require.Len(t, h.gateway.onchain, 1)
	require.EqualValues(t, 5_000, h.gateway.onchain[0].Amount)
}

func TestOnChainRejectedWithoutMessages(t *testing.T) {
	h := newHarness()
	h.gateway.ocResp = OnChainResponse{Success: false}
	d := draft.OnChain{Base: draft.Base{ReferenceAmount: currency.Sats(1_000)}, Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"}
	sub := NewSubmission("sub-1", d, h.deps(0))

	stream, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)
	drain(t, stream)

	out, _ := sub.Outcome()
	require.Equal(t, ReasonStructured, out.Failure.Reason)
	require.Equal(t, []string{"on-chain payment was not accepted"}, out.Failure.Messages)
}

func TestIntraLedgerSuccess(t *testing.T) {
	h := newHarness()
	h.gateway.ilResp = IntraLedgerResponse{Success: true}
	d := draft.IntraLedger{Base: draft.Base{ReferenceAmount: currency.Sats(2_500), Memo: "lunch"}, RecipientHandle: "satoshi_fan"}
	sub := NewSubmission("sub-1", d, h.deps(0))

	stream, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)
	drain(t, stream)

	require.Equal(t, StatusSuccess, sub.State())
	require.Equal(t, []IntraLedgerRequest{{Recipient: "satoshi_fan", Amount: 2_500, Memo: "lunch"}}, h.gateway.intra)
	require.EqualValues(t, 1, h.invalidated.Load())
}

func TestInvalidRecipientIsRejected(t *testing.T) {
	h := newHarness()
	d := draft.IntraLedger{Base: draft.Base{ReferenceAmount: currency.Sats(2_500)}, RecipientHandle: "bc1notahandle"}
	sub := NewSubmission("sub-1", d, h.deps(0))

	_, err := sub.Submit(context.Background(), conditions(20_000))
	require.ErrorIs(t, err, validation.ErrInvalidRecipient)
	require.Zero(t, h.gateway.calls())
}

func TestAdvisoryBlocksSubmit(t *testing.T) {
	h := newHarness()
	sub := NewSubmission("sub-1", lightningDraft(19_800), h.deps(500))
	cond := conditions(20_000)
	sub.ResolveFee(context.Background(), cond.Price)

	_, err := sub.Submit(context.Background(), cond)
	require.ErrorIs(t, err, ErrAdvisoryActive)
	var aerr *AdvisoryError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, validation.AdvisoryBalanceExceeded, aerr.Advisory.Kind)
	require.Equal(t, StatusIdle, sub.State())

	// the advisory clears once the balance covers the total
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	stream, err := sub.Submit(context.Background(), conditions(30_000))
	require.NoError(t, err)
	drain(t, stream)
	require.Equal(t, StatusSuccess, sub.State())
}

func TestStalePriceBlocksSubmit(t *testing.T) {
	h := newHarness()
	sub := NewSubmission("sub-1", lightningDraft(1_000), h.deps(0))
	cond := conditions(20_000)
	cond.Price.ObservedAt = cond.Now.Add(-2 * time.Hour)

	_, err := sub.Submit(context.Background(), cond)
	var aerr *AdvisoryError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, validation.AdvisoryStalePrice, aerr.Advisory.Kind)
	require.Zero(t, h.gateway.calls())
}

func TestAtMostOneInFlight(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	h.gateway.entered = make(chan struct{}, 1)
	h.gateway.release = make(chan struct{})
	sub := NewSubmission("sub-1", lightningDraft(1_000), h.deps(0))

	stream, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)
	<-h.gateway.entered

	_, err = sub.Submit(context.Background(), conditions(20_000))
	require.ErrorIs(t, err, ErrInFlight)
	require.Equal(t, StatusSubmitting, sub.State())

	close(h.gateway.release)
	drain(t, stream)

	_, err = sub.Submit(context.Background(), conditions(20_000))
	require.ErrorIs(t, err, ErrDraftConsumed)
	require.Equal(t, 1, h.gateway.calls())
	require.Len(t, h.listener.all(), 1)
}

func TestConcurrentSubmitDispatchesOnce(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	sub := NewSubmission("sub-1", lightningDraft(1_000), h.deps(0))

	const callers = 8
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := sub.Submit(context.Background(), conditions(20_000))
			if err != nil {
				return
			}
			accepted.Add(1)
			for range stream {
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, accepted.Load())
	require.Equal(t, 1, h.gateway.calls())
}

func TestGuardFailureLeavesSubmissionIdle(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	deps := h.deps(0)
	denied := errors.New("journal unavailable")
	var fail atomic.Bool
	fail.Store(true)
	deps.Guard = func(context.Context, Event) error {
		if fail.Load() {
			return denied
		}
		return nil
	}
	sub := NewSubmission("sub-1", lightningDraft(1_000), deps)

	_, err := sub.Submit(context.Background(), conditions(20_000))
	require.ErrorIs(t, err, denied)
	require.Equal(t, StatusIdle, sub.State())
	require.Zero(t, h.gateway.calls())
	_, dispatched := sub.Dispatched()
	require.False(t, dispatched)

	fail.Store(false)
	stream, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)
	drain(t, stream)
	require.Equal(t, StatusSuccess, sub.State())
}

func TestRequestFrozenAtDispatch(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	h.gateway.entered = make(chan struct{}, 1)
	h.gateway.release = make(chan struct{})

	d := lightningDraft(0)
	d.Amountless = true
	d.ReferenceAmount = currency.New(300, currency.USD)

	var feeSats atomic.Int64
	feeSats.Store(100)
	deps := h.deps(0)
	deps.Fees = fee.ResolverFunc(func(context.Context, draft.Draft, currency.PriceSnapshot) fee.Fee {
		return fee.Known(currency.Sats(feeSats.Load()))
	})
	sub := NewSubmission("sub-1", d, deps)
	cond := conditions(20_000)
	sub.ResolveFee(context.Background(), cond.Price)

	stream, err := sub.Submit(context.Background(), cond)
	require.NoError(t, err)
	<-h.gateway.entered

	// a later price tick and fee estimate arrive while the request is out
	feeSats.Store(900)
	later := currency.NewPriceSnapshot(time.Now(), map[currency.Currency]decimal.Decimal{currency.USD: decimal.RequireFromString("0.06")})
	sub.ResolveFee(context.Background(), later)

	close(h.gateway.release)
	drain(t, stream)

	ev, ok := sub.Dispatched()
	require.True(t, ok)
	require.EqualValues(t, 10_000, ev.AmountSats)
	require.Equal(t, fee.Known(currency.Sats(100)), ev.Fee)
	require.EqualValues(t, 10_000, *h.gateway.lightning[0].Amount)
}

func TestSlowerFeeResolutionDoesNotOverwriteNewer(t *testing.T) {
	h := newHarness()
	slow := make(chan struct{})
	var n atomic.Int32
	deps := h.deps(0)
	deps.Fees = fee.ResolverFunc(func(context.Context, draft.Draft, currency.PriceSnapshot) fee.Fee {
		if n.Add(1) == 1 {
			<-slow
			return fee.Known(currency.Sats(111))
		}
		return fee.Known(currency.Sats(222))
	})
	sub := NewSubmission("sub-1", lightningDraft(1_000), deps)
	price := freshPrice(time.Now())

	done := make(chan struct{})
	go func() {
		sub.ResolveFee(context.Background(), price)
		close(done)
	}()
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)

	sub.ResolveFee(context.Background(), price)
	close(slow)
	<-done

	require.Equal(t, fee.Known(currency.Sats(222)), sub.Fee())
}

func TestCallerCancellationDoesNotCancelDispatch(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	h.gateway.entered = make(chan struct{}, 1)
	h.gateway.release = make(chan struct{})
	sub := NewSubmission("sub-1", lightningDraft(1_000), h.deps(0))

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := sub.Submit(ctx, conditions(20_000))
	require.NoError(t, err)
	<-h.gateway.entered
	cancel()
	close(h.gateway.release)

	trs := drain(t, stream)
	require.Equal(t, StatusSuccess, trs[len(trs)-1].To)
	h.gateway.mu.Lock()
	require.NoError(t, h.gateway.ctxs[0].Err())
	h.gateway.mu.Unlock()
	require.Len(t, h.listener.all(), 1)
}

func TestAbandonedStreamDoesNotBlock(t *testing.T) {
	h := newHarness()
	h.gateway.lnResp = LightningResponse{Status: "SUCCESS"}
	sub := NewSubmission("sub-1", lightningDraft(1_000), h.deps(0))

	_, err := sub.Submit(context.Background(), conditions(20_000))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sub.State() == StatusSuccess }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(h.listener.all()) == 1 }, time.Second, 5*time.Millisecond)
}
