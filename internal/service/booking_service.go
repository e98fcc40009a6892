package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirelink/booking-core/internal/events"
	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/obs"
	"github.com/hirelink/booking-core/internal/repository"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	maxNumberAttempts = 5

	DefaultPageSize    = 10
	MaxPageSize        = 100
	DefaultRecentLimit = 3
)

// CreateBookingInput is a validated create request. ScheduledTime is HH:MM.
type CreateBookingInput struct {
	OfferingID       int64
	ProviderID       int64
	ScheduledDate    time.Time
	ScheduledTime    string
	ScheduledEndTime *string
	Address          string
	Landmark         *string
	Pincode          string
	Latitude         *decimal.Decimal
	Longitude        *decimal.Decimal
	City             *string
	State            *string
	IssueTitle       *string
	IssueDescription *string
	IssueImages      []string
	Urgency          model.UrgencyLevel
}

// ListFilter pages a listing. Zero Page and Size take the defaults.
type ListFilter struct {
	Status *model.BookingStatus
	Page   int
	Size   int
}

type BookingPage struct {
	Items      []*model.Booking `json:"bookings"`
	Page       int              `json:"page"`
	Size       int              `json:"size"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// BookingService owns the booking lifecycle and provider booking stats.
type BookingService struct {
	store     repository.Store
	clock     Clock
	numbers   NumberGenerator
	publisher events.Publisher
	logger    *zap.Logger
}

// NewBookingService wires the service. numbers supplies booking numbers; collisions are retried.
func NewBookingService(
	store repository.Store,
	clock Clock,
	numbers NumberGenerator,
	publisher events.Publisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:     store,
		clock:     clock,
		numbers:   numbers,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBooking books an offering for a customer. The booking, the provider's
// booking counter and the offering's times-booked counter commit together.
func (s *BookingService) CreateBooking(ctx context.Context, customerID int64, in CreateBookingInput) (booking *model.Booking, err error) {
	ctx, span := obs.StartSpan(ctx, "BookingService.CreateBooking",
		attribute.Int64("customer_id", customerID),
		attribute.Int64("service_id", in.OfferingID),
	)
	defer func() { obs.EndSpan(span, err) }()

	urgency := in.Urgency
	if urgency == "" {
		urgency = model.UrgencyMedium
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		customer, err := repos.Users.GetByID(ctx, customerID)
		if err != nil {
			return fmt.Errorf("get customer: %w", err)
		}
		if customer == nil {
			return notFound("User not found")
		}

		offering, err := repos.Offerings.GetByID(ctx, in.OfferingID)
		if err != nil {
			return fmt.Errorf("get offering: %w", err)
		}
		if offering == nil {
			return notFound("Service not found")
		}

		provider, err := repos.Providers.GetByID(ctx, in.ProviderID)
		if err != nil {
			return fmt.Errorf("get provider: %w", err)
		}
		if provider == nil {
			return notFound("Provider not found")
		}

		if offering.ProviderID != provider.ID {
			return invalid("This provider does not offer this service")
		}

		active, err := repos.Bookings.ExistsActive(ctx, customerID, offering.ID)
		if err != nil {
			return fmt.Errorf("check active booking: %w", err)
		}
		if active {
			return invalid("You already have an active booking for this service")
		}

		b := &model.Booking{
			CustomerID:       customerID,
			ProviderID:       provider.ID,
			OfferingID:       offering.ID,
			ScheduledDate:    in.ScheduledDate,
			ScheduledTime:    in.ScheduledTime,
			ScheduledEndTime: in.ScheduledEndTime,
			Address:          in.Address,
			Landmark:         in.Landmark,
			Pincode:          in.Pincode,
			Latitude:         in.Latitude,
			Longitude:        in.Longitude,
			City:             in.City,
			State:            in.State,
			IssueTitle:       in.IssueTitle,
			IssueDescription: in.IssueDescription,
			IssueImages:      in.IssueImages,
			Urgency:          urgency,
			EstimatedAmount:  offering.BasePrice,
			Status:           model.BookingStatusPending,
			PaymentStatus:    model.BookingUnpaid,
		}

		if err := s.insertBooking(ctx, repos, b); err != nil {
			return err
		}

		if _, err := applyProviderEvent(ctx, repos, provider.ID, model.BookingCreated{}); err != nil {
			return err
		}

		if err := repos.Offerings.IncrementTimesBooked(ctx, offering.ID); err != nil {
			return fmt.Errorf("increment times booked: %w", err)
		}

		if err := newRelationLoader(repos).load(ctx, b); err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.RecordBookingCreated()
	publish(ctx, s.publisher, s.logger, events.New(events.BookingCreated, booking.Number, s.clock.Now(), bookingPayload(booking, "")))

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.Number),
		zap.Int64("customer_id", customerID),
		zap.Int64("provider_id", booking.ProviderID),
		zap.Int64("service_id", booking.OfferingID),
	)

	return booking, nil
}

// insertBooking assigns a fresh booking number, retrying on collision.
func (s *BookingService) insertBooking(ctx context.Context, repos repository.Repositories, b *model.Booking) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		b.Number = s.numbers.BookingNumber(s.clock.Now())

		err := repos.Bookings.Create(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateNumber) {
			return fmt.Errorf("create booking: %w", err)
		}

		s.logger.Warn("Booking number collision",
			zap.String("booking_number", b.Number),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("create booking: no free booking number after %d attempts", maxNumberAttempts)
}

// UpdateStatus moves a booking through the lifecycle. The booking row and any
// provider counter change commit together; a concurrent writer yields ErrConflict.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID, actingUserID int64, in UpdateStatusInput) (booking *model.Booking, err error) {
	ctx, span := obs.StartSpan(ctx, "BookingService.UpdateStatus",
		attribute.Int64("booking_id", bookingID),
		attribute.String("target_status", string(in.Status)),
	)
	defer func() { obs.EndSpan(span, err) }()

	var previous model.BookingStatus

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if current == nil {
			return notFound("Booking not found")
		}
		previous = current.Status

		loader := newRelationLoader(repos)
		if err := loader.load(ctx, current); err != nil {
			return err
		}

		next, ev, err := applyTransition(*current, in, actingUserID, s.clock.Now())
		if err != nil {
			obs.RecordTransition(string(previous), string(in.Status), "rejected")
			return err
		}

		if err := repos.Bookings.Update(ctx, next); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return conflict("Booking was modified by another request, please retry")
			}
			return fmt.Errorf("update booking: %w", err)
		}

		if ev != nil {
			provider, err := applyProviderEvent(ctx, repos, next.ProviderID, ev)
			if err != nil {
				return err
			}
			provider.User = next.Provider.User
			next.Provider = provider
		}

		booking = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.RecordTransition(string(previous), string(booking.Status), "ok")
	publish(ctx, s.publisher, s.logger,
		events.New(events.BookingStatusChanged, booking.Number, s.clock.Now(), bookingPayload(booking, previous)))

	s.logger.Info("Booking status updated",
		zap.Int64("booking_id", booking.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(booking.Status)),
		zap.Int64("acting_user_id", actingUserID),
	)

	return booking, nil
}

// GetBooking returns a booking visible to actor. Bookings the actor may not see
// are reported as not found.
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64, actor Actor) (*model.Booking, error) {
	repos := s.store.Repositories()

	b, err := repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return visible(ctx, repos, b, actor, "Booking not found")
}

// GetBookingByNumber is GetBooking keyed by booking number.
func (s *BookingService) GetBookingByNumber(ctx context.Context, number string, actor Actor) (*model.Booking, error) {
	repos := s.store.Repositories()

	b, err := repos.Bookings.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get booking by number: %w", err)
	}
	return visible(ctx, repos, b, actor, "Booking not found: "+number)
}

// visible hides bookings the actor may neither own, serve, nor administer.
func visible(ctx context.Context, repos repository.Repositories, b *model.Booking, actor Actor, missing string) (*model.Booking, error) {
	if b == nil {
		return nil, notFound("%s", missing)
	}
	if err := newRelationLoader(repos).load(ctx, b); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !b.IsOwnedBy(actor.UserID) && !b.IsAddressedTo(actor.UserID) {
		return nil, notFound("%s", missing)
	}
	return b, nil
}

// ListBookings pages through the bookings visible to actor, newest first.
// Customers see their own, providers those addressed to their profile, admins all.
func (s *BookingService) ListBookings(ctx context.Context, actor Actor, f ListFilter) (*BookingPage, error) {
	if f.Page < 0 {
		return nil, invalid("Page index must not be less than zero")
	}
	size := f.Size
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	repos := s.store.Repositories()
	filter, err := scopeFor(ctx, repos, actor)
	if err != nil {
		return nil, err
	}
	filter.Status = f.Status
	filter.Limit = size
	filter.Offset = f.Page * size

	items, total, err := repos.Bookings.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if err := loadAll(ctx, repos, items); err != nil {
		return nil, err
	}

	return &BookingPage{
		Items:      items,
		Page:       f.Page,
		Size:       size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

// RecentBookings returns the actor's latest bookings for a dashboard, PENDING
// ones first. limit defaults to DefaultRecentLimit and is capped at MaxPageSize.
func (s *BookingService) RecentBookings(ctx context.Context, actor Actor, limit int) ([]*model.Booking, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	repos := s.store.Repositories()
	filter, err := scopeFor(ctx, repos, actor)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit

	items, err := repos.Bookings.Recent(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("recent bookings: %w", err)
	}
	if err := loadAll(ctx, repos, items); err != nil {
		return nil, err
	}
	return items, nil
}

// scopeFor narrows a listing to what actor may see: customers their own
// bookings, providers those addressed to their profile, admins everything.
func scopeFor(ctx context.Context, repos repository.Repositories, actor Actor) (repository.BookingFilter, error) {
	var filter repository.BookingFilter

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleProvider:
		provider, err := repos.Providers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return filter, fmt.Errorf("get provider profile: %w", err)
		}
		if provider == nil {
			return filter, notFound("Provider profile not found")
		}
		filter.ProviderID = &provider.ID
	default:
		userID := actor.UserID
		filter.CustomerID = &userID
	}
	return filter, nil
}

func loadAll(ctx context.Context, repos repository.Repositories, items []*model.Booking) error {
	loader := newRelationLoader(repos)
	for _, b := range items {
		if err := loader.load(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
