package payments

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sendbtc/internal/auth"
	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/journal"
	"github.com/congo-pay/sendbtc/internal/validation"
)

// Directory answers whether a username is still free.
type Directory interface {
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// DefaultSubmitWait is used when NewHandler is given no submit wait.
const DefaultSubmitWait = 20 * time.Second

// Handler exposes payment endpoints.
type Handler struct {
	service    *Service
	params     *chaincfg.Params
	directory  Directory
	submitWait time.Duration
}

// NewHandler builds a payments HTTP handler. directory may be nil.
// submitWait bounds how long a submit request waits for the outcome.
func NewHandler(service *Service, params *chaincfg.Params, directory Directory, submitWait time.Duration) *Handler {
	if submitWait <= 0 {
		submitWait = DefaultSubmitWait
	}
	return &Handler{service: service, params: params, directory: directory, submitWait: submitWait}
}

type amountResponse struct {
	Value     int64  `json:"value"`
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

func toAmount(m currency.MoneyAmount) amountResponse {
	return amountResponse{Value: m.Value, Currency: string(m.Currency), Formatted: m.String()}
}

func toAmountPtr(m *currency.MoneyAmount) *amountResponse {
	if m == nil {
		return nil
	}
	a := toAmount(*m)
	return &a
}

type issueResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type failureResponse struct {
	Reason   string   `json:"reason"`
	Messages []string `json:"messages"`
}

type quoteResponse struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Destination     string           `json:"destination"`
	Memo            string           `json:"memo,omitempty"`
	State           string           `json:"state"`
	Amount          amountResponse   `json:"amount"`
	AmountSats      int64            `json:"amount_sats"`
	FeeSats         *int64           `json:"fee_sats"`
	TotalSats       int64            `json:"total_sats"`
	Primary         amountResponse   `json:"primary"`
	Secondary       *amountResponse  `json:"secondary,omitempty"`
	PrimaryTotal    amountResponse   `json:"primary_total"`
	SecondaryTotal  *amountResponse  `json:"secondary_total,omitempty"`
	Balance         *amountResponse  `json:"balance,omitempty"`
	PriceObservedAt *time.Time       `json:"price_observed_at,omitempty"`
	ValidationError *issueResponse   `json:"validation_error,omitempty"`
	Advisory        *issueResponse   `json:"advisory,omitempty"`
	Failure         *failureResponse `json:"failure,omitempty"`
}

func toQuoteResponse(q Quote) quoteResponse {
	resp := quoteResponse{
		ID:             q.ID,
		Type:           string(q.Kind),
		Destination:    q.Destination,
		Memo:           q.Memo,
		State:          string(q.State),
		Amount:         toAmount(q.Amount),
		AmountSats:     q.AmountSats,
		FeeSats:        q.FeeSats,
		TotalSats:      q.TotalSats,
		Primary:        toAmount(q.Primary),
		Secondary:      toAmountPtr(q.Secondary),
		PrimaryTotal:   toAmount(q.PrimaryTotal),
		SecondaryTotal: toAmountPtr(q.SecondaryTotal),
	}
	if q.Balance.Currency != "" {
		resp.Balance = toAmountPtr(&q.Balance)
	}
	if !q.PriceObservedAt.IsZero() {
		at := q.PriceObservedAt
		resp.PriceObservedAt = &at
	}
	if q.Validation != nil {
		resp.ValidationError = &issueResponse{Code: string(q.Validation.Code), Message: q.Validation.Message}
	}
	if q.Advisory != nil {
		resp.Advisory = &issueResponse{Code: string(q.Advisory.Kind), Message: q.Advisory.Message}
	}
	if q.Outcome != nil && q.Outcome.Failure != nil {
		resp.Failure = &failureResponse{Reason: string(q.Outcome.Failure.Reason), Messages: q.Outcome.Failure.Messages}
	}
	return resp
}

// Prepare registers a draft and returns its quote.
func (h *Handler) Prepare(c *fiber.Ctx) error {
	var req DraftRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	d, err := req.Draft(h.params)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	accountID, _ := c.Locals(auth.LocalAccountID).(string)
	q, err := h.service.Prepare(c.UserContext(), accountID, d)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toQuoteResponse(q))
}

// Get reports a submission.
func (h *Handler) Get(c *fiber.Ctx) error {
	accountID, _ := c.Locals(auth.LocalAccountID).(string)
	q, err := h.service.Get(c.UserContext(), accountID, c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toQuoteResponse(q))
}

// Submit dispatches a submission. A submission still in flight once the
// submit wait elapses is answered with 202.
func (h *Handler) Submit(c *fiber.Ctx) error {
	accountID, _ := c.Locals(auth.LocalAccountID).(string)
	ctx, cancel := context.WithTimeout(c.UserContext(), h.submitWait)
	defer cancel()
	q, err := h.service.Submit(ctx, accountID, c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	status := http.StatusOK
	if !q.State.Terminal() {
		status = http.StatusAccepted
	}
	return c.Status(status).JSON(toQuoteResponse(q))
}

type historyItem struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Destination string     `json:"destination"`
	AmountSats  int64      `json:"amount_sats"`
	FeeSats     *int64     `json:"fee_sats"`
	State       string     `json:"state"`
	Messages    []string   `json:"messages,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// History lists the caller's past submissions.
func (h *Handler) History(c *fiber.Ctx) error {
	accountID, _ := c.Locals(auth.LocalAccountID).(string)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, err := h.service.History(c.UserContext(), accountID, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{
			ID:          e.ID,
			Type:        e.Kind,
			Destination: e.Destination,
			AmountSats:  e.AmountSats,
			FeeSats:     e.FeeSats,
			State:       e.Status,
			Messages:    e.Messages,
			CreatedAt:   e.CreatedAt,
			CompletedAt: e.CompletedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"submissions": items})
}

// Recipient reports whether a handle is well formed and belongs to a user.
func (h *Handler) Recipient(c *fiber.Ctx) error {
	handle := c.Params("handle")
	if !validation.ValidHandle(handle) {
		return c.Status(http.StatusOK).JSON(fiber.Map{"handle": handle, "valid": false, "exists": false})
	}
	if h.directory == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "recipient lookup unavailable")
	}
	available, err := h.directory.UsernameAvailable(c.UserContext(), handle)
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"handle": handle, "valid": true, "exists": !available})
}

func mapError(err error) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return fiber.NewError(http.StatusUnprocessableEntity, verr.Message)
	case errors.Is(err, ErrAdvisoryActive):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInFlight), errors.Is(err, ErrDraftConsumed), errors.Is(err, journal.ErrDuplicateSubmission):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSubmissionNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConditionsUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
