// Package events carries order lifecycle notifications to subscribers
// after the corresponding database transaction has committed.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderCreated   Type = "order.created"
	OrderPaid      Type = "order.paid"
	OrderCancelled Type = "order.cancelled"
)

// Event is the payload delivered to WebSocket clients and the Kafka topic.
type Event struct {
	Type        Type      `json:"type"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher delivers an event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher, joining their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. Used by tests across packages.
type Recorder struct {
	ch chan Event
}

// NewRecorder returns a Recorder buffering up to size events.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	select {
	case r.ch <- e:
		return nil
	default:
		return errors.New("recorder full")
	}
}

// Events drains and returns everything recorded so far.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
