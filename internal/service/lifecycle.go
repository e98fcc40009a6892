package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hirelink/booking-core/internal/events"
	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
	Role   model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// UpdateStatusInput is a requested transition. FinalAmount and WorkSummary apply on COMPLETED, Reason on CANCELLED.
type UpdateStatusInput struct {
	Status      model.BookingStatus
	Reason      *string
	Notes       *string
	FinalAmount *decimal.Decimal
	WorkSummary *string
}

// applyTransition returns a copy of b moved to in.Status with the target's side
// effects applied, plus the provider stats event the move implies (nil if none).
// b is never modified, so a rejected transition leaves the caller's state intact.
func applyTransition(b model.Booking, in UpdateStatusInput, actingUserID int64, now time.Time) (*model.Booking, model.StatsEvent, error) {
	if !in.Status.IsValid() {
		return nil, nil, invalid("Invalid booking status: %s", in.Status)
	}
	if !b.Status.CanTransitionTo(in.Status) {
		return nil, nil, invalid("Invalid status transition from %s to %s", b.Status, in.Status)
	}
	if in.FinalAmount != nil && in.FinalAmount.IsNegative() {
		return nil, nil, invalid("Final amount must not be negative")
	}

	from := b.Status
	b.Status = in.Status

	var ev model.StatsEvent
	switch in.Status {
	case model.BookingStatusCancelled:
		b.CancelledAt = &now
		b.CancellationReason = in.Reason
		b.CancelledBy = nil
		switch {
		case b.IsOwnedBy(actingUserID):
			by := model.CancelledByUser
			b.CancelledBy = &by
		case b.IsAddressedTo(actingUserID):
			by := model.CancelledByProvider
			b.CancelledBy = &by
		}
		ev = model.BookingCancelled{}

	case model.BookingStatusAccepted, model.BookingStatusConfirmed:
		b.ProviderResponseAt = &now
		b.ProviderNotes = in.Notes

	case model.BookingStatusInProgress:
		b.ActualStartTime = &now

	case model.BookingStatusCompleted:
		b.ActualEndTime = &now
		b.WorkSummary = in.WorkSummary
		amount := b.EstimatedAmount
		if in.FinalAmount != nil {
			amount = *in.FinalAmount
		}
		b.FinalAmount = &amount
		// A resolved dispute was already counted when the booking first completed.
		if from != model.BookingStatusDisputed {
			ev = model.BookingCompleted{Amount: amount}
		}
	}

	return &b, ev, nil
}

// applyProviderEvent is the only writer of provider counters. It must run inside
// the transaction that owns the booking or review change.
func applyProviderEvent(ctx context.Context, repos repository.Repositories, providerID int64, ev model.StatsEvent) (*model.Provider, error) {
	provider, err := repos.Providers.GetForUpdate(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("lock provider: %w", err)
	}
	if provider == nil {
		return nil, notFound("Provider not found")
	}

	provider.Stats = provider.Stats.Apply(ev)

	if err := repos.Providers.SaveStats(ctx, provider.ID, provider.Stats); err != nil {
		return nil, fmt.Errorf("save provider stats: %w", err)
	}
	return provider, nil
}

// relationLoader fills the detail fields of bookings, caching lookups per call.
type relationLoader struct {
	repos     repository.Repositories
	users     map[int64]*model.User
	providers map[int64]*model.Provider
	offerings map[int64]*model.Offering
}

func newRelationLoader(repos repository.Repositories) *relationLoader {
	return &relationLoader{
		repos:     repos,
		users:     make(map[int64]*model.User),
		providers: make(map[int64]*model.Provider),
		offerings: make(map[int64]*model.Offering),
	}
}

func (l *relationLoader) load(ctx context.Context, b *model.Booking) error {
	var err error
	if b.Customer, err = l.user(ctx, b.CustomerID); err != nil {
		return err
	}
	if b.Provider, err = l.provider(ctx, b.ProviderID); err != nil {
		return err
	}
	if b.Offering, err = l.offering(ctx, b.OfferingID); err != nil {
		return err
	}
	return nil
}

func (l *relationLoader) user(ctx context.Context, id int64) (*model.User, error) {
	if u, ok := l.users[id]; ok {
		return u, nil
	}
	u, err := l.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	l.users[id] = u
	return u, nil
}

func (l *relationLoader) provider(ctx context.Context, id int64) (*model.Provider, error) {
	if p, ok := l.providers[id]; ok {
		return p, nil
	}
	p, err := l.repos.Providers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if p != nil {
		if p.User, err = l.user(ctx, p.UserID); err != nil {
			return nil, err
		}
	}
	l.providers[id] = p
	return p, nil
}

func (l *relationLoader) offering(ctx context.Context, id int64) (*model.Offering, error) {
	if o, ok := l.offerings[id]; ok {
		return o, nil
	}
	o, err := l.repos.Offerings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get offering: %w", err)
	}
	l.offerings[id] = o
	return o, nil
}

// publish sends ev after commit. Delivery failures are logged, never returned.
func publish(ctx context.Context, p events.Publisher, logger *zap.Logger, ev events.Event) {
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("event", string(ev.Type)),
			zap.String("key", ev.Key),
			zap.Error(err),
		)
	}
}

func bookingPayload(b *model.Booking, previous model.BookingStatus) events.BookingPayload {
	payload := events.BookingPayload{
		BookingID:     b.ID,
		BookingNumber: b.Number,
		CustomerID:    b.CustomerID,
		ProviderID:    b.ProviderID,
		Status:        string(b.Status),
		PreviousState: string(previous),
	}
	if b.FinalAmount != nil {
		payload.Amount = b.FinalAmount.StringFixed(2)
	}
	return payload
}
