// Package notification tells account holders how their payments ended.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/sendbtc/internal/payments"
)

const (
	// KindPaymentSuccess is sent when a payment settled.
	KindPaymentSuccess = "payment_success"
	// KindPaymentFailure is sent for pending and failed payments alike.
	KindPaymentFailure = "payment_failure"
)

// Message describes a notification payload.
type Message struct {
	Kind         string `json:"kind"`
	Destination  string `json:"destination"`
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	Body         string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("submission_id", message.SubmissionID),
		slog.String("body", message.Body))
	return nil
}

// RedisNotifier publishes notifications on a per-account Redis channel.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier builds a publisher.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Channel is the pub/sub channel notifications for destination go to.
func Channel(destination string) string { return "notifications:" + destination }

// Send publishes message as JSON.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, Channel(message.Destination), payload).Err()
}

// Emitter turns terminal submissions into notifications. Delivery happens in
// the background and its failures are only logged.
type Emitter struct {
	notifiers []Notifier
	logger    *slog.Logger
	timeout   time.Duration
}

var _ payments.Listener = (*Emitter)(nil)

// NewEmitter fans notifications out to every notifier.
func NewEmitter(logger *slog.Logger, notifiers ...Notifier) *Emitter {
	return &Emitter{notifiers: notifiers, logger: logger, timeout: 5 * time.Second}
}

// OnTerminal implements payments.Listener.
func (e *Emitter) OnTerminal(ctx context.Context, ev payments.Event) {
	msg := MessageFor(ev)
	for _, n := range e.notifiers {
		go func(n Notifier) {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
			defer cancel()
			if err := n.Send(sendCtx, msg); err != nil {
				e.logger.Warn("notification delivery failed",
					slog.String("submission_id", ev.SubmissionID),
					slog.Any("error", err))
			}
		}(n)
	}
}

// MessageFor builds the notification of a terminal event.
func MessageFor(ev payments.Event) Message {
	msg := Message{
		Kind:         KindPaymentFailure,
		Destination:  ev.AccountID,
		SubmissionID: ev.SubmissionID,
		Status:       string(ev.Outcome.Status),
	}
	target := ev.Draft.Destination()
	switch ev.Outcome.Status {
	case payments.StatusSuccess:
		msg.Kind = KindPaymentSuccess
		msg.Body = fmt.Sprintf("Sent %d sats to %s", ev.AmountSats, target)
	case payments.StatusPending:
		msg.Body = fmt.Sprintf("Payment of %d sats to %s is pending", ev.AmountSats, target)
	default:
		msg.Body = fmt.Sprintf("Payment of %d sats to %s failed", ev.AmountSats, target)
		if f := ev.Outcome.Failure; f != nil && len(f.Messages) > 0 {
			msg.Body += ": " + f.Messages[0]
		}
	}
	return msg
}
