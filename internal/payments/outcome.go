package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/congo-pay/sendbtc/internal/validation"
)

// Status is the state of a submission.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusPending    Status = "pending"
	StatusError      Status = "error"
)

// Terminal reports whether no further transition follows s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusPending || s == StatusError
}

// Reason tells transport failures from failures the channel reported.
type Reason string

const (
	ReasonTransport  Reason = "transport"
	ReasonStructured Reason = "structured"
)

// Failure describes an error outcome.
type Failure struct {
	Reason   Reason
	Messages []string
	// Cause is the raw transport error, kept for diagnostics.
	Cause error
}

// Outcome is the classified result of a dispatched submission.
type Outcome struct {
	Status  Status
	Failure *Failure
}

// Transition is one step of a submission's lifecycle.
type Transition struct {
	From    Status
	To      Status
	Outcome *Outcome
	At      time.Time
}

var (
	// ErrInFlight is returned when Submit is called while a request is outstanding.
	ErrInFlight = errors.New("submission already in flight")
	// ErrDraftConsumed is returned when Submit is called after a terminal outcome.
	ErrDraftConsumed = errors.New("draft already submitted")
	// ErrAdvisoryActive is matched by errors returned while an advisory blocks sending.
	ErrAdvisoryActive = errors.New("payment blocked by advisory")
	// ErrSubmissionNotFound is returned for unknown or foreign submission ids.
	ErrSubmissionNotFound = errors.New("submission not found")
)

// AdvisoryError is returned by Submit while an advisory is active.
type AdvisoryError struct {
	Advisory validation.Advisory
}

func (e *AdvisoryError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAdvisoryActive, e.Advisory.Message)
}

func (e *AdvisoryError) Is(target error) bool { return target == ErrAdvisoryActive }

func transportFailure(err error) Outcome {
	return Outcome{Status: StatusError, Failure: &Failure{
		Reason:   ReasonTransport,
		Messages: []string{err.Error()},
		Cause:    err,
	}}
}

func structuredFailure(errs []ChannelError, fallback string) Outcome {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Message != "" {
			messages = append(messages, e.Message)
		}
	}
	if len(messages) == 0 && fallback != "" {
		messages = append(messages, fallback)
	}
	return Outcome{Status: StatusError, Failure: &Failure{Reason: ReasonStructured, Messages: messages}}
}
