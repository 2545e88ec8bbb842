// Package notify emits order lifecycle events to the notification
// collaborator. Delivery is best-effort: a failed emit is logged and
// forgotten, it never affects the transaction that triggered it.
package notify

import (
	"context"
	"time"

	"bloomkart/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event names emitted by the order core.
const (
	EventOrderCreated    = "order.created"
	EventStatusChanged   = "order.status_changed"
	EventPaymentVerified = "payment.verified"
)

// Event is the envelope published for every notification.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// OrderCreatedPayload accompanies EventOrderCreated.
type OrderCreatedPayload struct {
	OrderID       int64                    `json:"orderId"`
	CustomerEmail string                   `json:"customerEmail"`
	TotalAmount   string                   `json:"totalAmount"`
	Items         []model.OrderItemRequest `json:"items"`
}

// StatusChangedPayload accompanies EventStatusChanged.
type StatusChangedPayload struct {
	OrderID        int64        `json:"orderId"`
	PreviousStatus model.Status `json:"previousStatus"`
	NewStatus      model.Status `json:"newStatus"`
	CustomerEmail  string       `json:"customerEmail"`
}

// PaymentVerifiedPayload accompanies EventPaymentVerified.
type PaymentVerifiedPayload struct {
	OrderID   int64  `json:"orderId"`
	PaymentID int64  `json:"paymentId"`
	Amount    string `json:"amount"`
	Verified  bool   `json:"verified"`
}

// Publisher delivers events to the notification collaborator.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Emitter wraps a Publisher with the fire-and-forget discipline the order
// service relies on: Emit returns immediately and delivery runs in the
// background with its own timeout.
type Emitter struct {
	publisher Publisher
	logger    zerolog.Logger
	timeout   time.Duration
}

// NewEmitter creates an Emitter over the given publisher.
func NewEmitter(publisher Publisher, logger zerolog.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger.With().Str("component", "notify").Logger(),
		timeout:   5 * time.Second,
	}
}

// Emit publishes the named event in the background. The caller's context is
// deliberately not used: the order write has already committed and must not
// be tied to notification delivery.
func (e *Emitter) Emit(name string, payload any) {
	event := Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Warn().
				Err(err).
				Str("event", name).
				Str("event_id", event.ID).
				Msg("event delivery failed")
			return
		}

		e.logger.Debug().
			Str("event", name).
			Str("event_id", event.ID).
			Msg("event published")
	}()
}

// nopPublisher drops every event. Used when notifications are disabled.
type nopPublisher struct{}

// NewNopPublisher returns a publisher that discards all events.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (nopPublisher) Close() error                                   { return nil }
