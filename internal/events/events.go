// Package events relays structured domain events to the notification
// sender. Delivery is fire-and-forget: a failed publish is logged and never
// turned into an error for the operation that emitted it.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	WalletRecharged      = "wallet.recharged"
	WalletDebited        = "wallet.debited"
	ReservationRequested = "reservation.requested"
	ReservationAccepted  = "reservation.accepted"
	ReservationCancelled = "reservation.cancelled"
	PaymentConfirmed     = "payment.confirmed"
	PaymentFailed        = "payment.failed"
	PaymentCompensated   = "payment.compensated"
)

type Event struct {
	Type      string            `json:"event_type"`
	User      string            `json:"user"`
	Message   string            `json:"message,omitempty"`
	BookingID string            `json:"booking_id,omitempty"`
	RideID    string            `json:"ride_id,omitempty"`
	Amount    string            `json:"amount,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit stamps and publishes e, logging instead of returning failures.
func Emit(ctx context.Context, p Publisher, logger *zap.Logger, e Event) {
	if p == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil && logger != nil {
		logger.Warn("event publish failed",
			zap.String("event_type", e.Type),
			zap.String("user", e.User),
			zap.Error(err),
		)
	}
}

// LogPublisher writes every event to the structured log.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, e Event) error {
	if p.Logger == nil {
		return nil
	}
	p.Logger.Info("event",
		zap.String("event_type", e.Type),
		zap.String("user", e.User),
		zap.String("booking_id", e.BookingID),
		zap.String("ride_id", e.RideID),
		zap.String("amount", e.Amount),
		zap.String("message", e.Message),
	)
	return nil
}

// Multi fans an event out to several publishers, returning the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	out := []string{}
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}
