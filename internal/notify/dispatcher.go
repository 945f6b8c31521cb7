// Package notify delivers informational order events to the operator channel and the order
// event stream. Delivery is best-effort: failures are logged and dropped, never returned.
package notify

import (
	"context"
	"log"
	"time"

	"toko-pay/internal/models"

	"golang.org/x/sync/errgroup"
)

// Kind identifies an order event.
type Kind string

const (
	OrderCreated     Kind = "order.created"
	PaymentConfirmed Kind = "order.paid"
)

// Event carries a snapshot of the order at the time it happened.
type Event struct {
	Kind  Kind
	Order models.Order
	At    time.Time
}

// Sender delivers a formatted text message to the operator channel.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Publisher emits a structured event to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, payload any) error
}

// Dispatcher fans an event out to the configured sinks. Either sink may be nil.
type Dispatcher struct {
	sender    Sender
	publisher Publisher
	currency  string
	timeout   time.Duration
}

// NewDispatcher creates a Dispatcher. currency labels amounts in messages.
func NewDispatcher(sender Sender, publisher Publisher, currency string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:    sender,
		publisher: publisher,
		currency:  currency,
		timeout:   timeout,
	}
}

// Notify delivers ev to every sink concurrently. It never fails. All sinks share one deadline.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var g errgroup.Group
	if d.sender != nil {
		g.Go(func() error {
			if err := d.sender.Send(ctx, FormatMessage(ev, d.currency)); err != nil {
				log.Printf("Warning: failed to send %s notification for order %d: %v", ev.Kind, ev.Order.ID, err)
			} else {
				log.Printf("Sent %s notification for order %d", ev.Kind, ev.Order.ID)
			}
			return nil
		})
	}
	if d.publisher != nil {
		g.Go(func() error {
			if err := d.publisher.PublishEvent(ctx, string(ev.Kind), newEventPayload(ev)); err != nil {
				log.Printf("Warning: failed to publish %s event for order %d: %v", ev.Kind, ev.Order.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
