package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hirelink/booking-core/internal/events"
	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/obs"
	"github.com/hirelink/booking-core/internal/repository"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReviewInput holds the ratings of a review. Only Overall is required.
type ReviewInput struct {
	Overall         decimal.Decimal
	Quality         *decimal.Decimal
	Punctuality     *decimal.Decimal
	Professionalism *decimal.Decimal
	ValueForMoney   *decimal.Decimal
	Title           *string
	Text            *string
	Images          []string
}

func (in ReviewInput) validate() error {
	if !model.RatingInRange(in.Overall) {
		return invalid("Overall rating must be between 1 and 5")
	}
	optional := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"Quality", in.Quality},
		{"Punctuality", in.Punctuality},
		{"Professionalism", in.Professionalism},
		{"Value for money", in.ValueForMoney},
	}
	for _, r := range optional {
		if r.value != nil && !model.RatingInRange(*r.value) {
			return invalid("%s rating must be between 1 and 5", r.name)
		}
	}
	return nil
}

// ReviewService records reviews and keeps provider ratings current.
type ReviewService struct {
	store     repository.Store
	clock     Clock
	publisher events.Publisher
	logger    *zap.Logger
}

func NewReviewService(store repository.Store, clock Clock, publisher events.Publisher, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		store:     store,
		clock:     clock,
		publisher: publisher,
		logger:    logger,
	}
}

// AddReview records the customer's review of a completed booking and refreshes
// the provider's rating from its full review set.
func (s *ReviewService) AddReview(ctx context.Context, bookingID, customerID int64, in ReviewInput) (review *model.Review, err error) {
	ctx, span := obs.StartSpan(ctx, "ReviewService.AddReview",
		attribute.Int64("booking_id", bookingID),
		attribute.Int64("customer_id", customerID),
	)
	defer func() { obs.EndSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		bookingNumber string
		provider      *model.Provider
	)

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		booking, err := repos.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFound("Booking not found")
		}
		if !booking.IsOwnedBy(customerID) {
			return invalid("You can only review your own bookings")
		}
		if booking.Status != model.BookingStatusCompleted {
			return invalid("You can only review completed bookings")
		}

		exists, err := repos.Reviews.ExistsByBooking(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("check review: %w", err)
		}
		if exists {
			return invalid("You have already reviewed this booking")
		}

		// Lock the provider first so the rating summary sees every committed review.
		if _, err := repos.Providers.GetForUpdate(ctx, booking.ProviderID); err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}

		r := &model.Review{
			BookingID:             booking.ID,
			ReviewerID:            customerID,
			ProviderID:            booking.ProviderID,
			OverallRating:         in.Overall,
			QualityRating:         in.Quality,
			PunctualityRating:     in.Punctuality,
			ProfessionalismRating: in.Professionalism,
			ValueForMoneyRating:   in.ValueForMoney,
			Title:                 in.Title,
			Text:                  in.Text,
			Images:                in.Images,
		}
		if err := repos.Reviews.Create(ctx, r); err != nil {
			if errors.Is(err, repository.ErrDuplicateReview) {
				return invalid("You have already reviewed this booking")
			}
			return fmt.Errorf("create review: %w", err)
		}

		rating := in.Overall
		booking.UserRating = &rating
		if err := repos.Bookings.Update(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return conflict("Booking was modified by another request, please retry")
			}
			return fmt.Errorf("update booking: %w", err)
		}

		avg, count, err := repos.Reviews.RatingSummary(ctx, booking.ProviderID)
		if err != nil {
			return fmt.Errorf("summarize ratings: %w", err)
		}

		provider, err = applyProviderEvent(ctx, repos, booking.ProviderID, model.RatingRecomputed{Average: avg, Count: count})
		if err != nil {
			return err
		}

		bookingNumber = booking.Number
		review = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.RecordReviewAdded()
	publish(ctx, s.publisher, s.logger, events.New(events.ReviewAdded, bookingNumber, s.clock.Now(), events.ReviewPayload{
		ReviewID:      review.ID,
		BookingID:     review.BookingID,
		BookingNumber: bookingNumber,
		ProviderID:    review.ProviderID,
		Rating:        review.OverallRating.StringFixed(2),
		AverageRating: provider.Stats.AverageRating.StringFixed(2),
	}))

	s.logger.Info("Review added",
		zap.Int64("booking_id", review.BookingID),
		zap.Int64("provider_id", review.ProviderID),
		zap.String("average_rating", provider.Stats.AverageRating.StringFixed(2)),
		zap.Int("total_reviews", provider.Stats.TotalReviews),
	)

	return review, nil
}
