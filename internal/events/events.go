// Package events publishes domain events after their owning transaction commits.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type names an event on the wire.
type Type string

const (
	BookingCreated       Type = "booking.created"
	BookingStatusChanged Type = "booking.status_changed"
	PaymentOrderCreated  Type = "payment.order_created"
	PaymentCompleted     Type = "payment.completed"
	PaymentFailed        Type = "payment.failed"
	PaymentsExpired      Type = "payment.expired"
	ReviewAdded          Type = "review.added"
)

const schemaVersion = 1

// Event is the envelope written to every broker.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"event"`
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
	// Key orders events for one aggregate, usually the booking number.
	Key  string `json:"key"`
	Data any    `json:"data"`
}

// New stamps a fresh id and the current schema version.
func New(t Type, key string, at time.Time, data any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Version:    schemaVersion,
		OccurredAt: at.UTC(),
		Key:        key,
		Data:       data,
	}
}

// Publisher delivers events to a broker or notifier.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type BookingPayload struct {
	BookingID     int64  `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	CustomerID    int64  `json:"customer_id"`
	ProviderID    int64  `json:"provider_id"`
	Status        string `json:"status"`
	PreviousState string `json:"previous_status,omitempty"`
	Amount        string `json:"amount,omitempty"`
}

type PaymentPayload struct {
	PaymentID     int64  `json:"payment_id"`
	PaymentNumber string `json:"payment_number"`
	BookingID     int64  `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	OrderID       string `json:"order_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Mock          bool   `json:"mock,omitempty"`
}

type ReviewPayload struct {
	ReviewID      int64  `json:"review_id"`
	BookingID     int64  `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	ProviderID    int64  `json:"provider_id"`
	Rating        string `json:"rating"`
	AverageRating string `json:"average_rating"`
}

type ExpiryPayload struct {
	Count  int64     `json:"count"`
	Cutoff time.Time `json:"cutoff"`
}
