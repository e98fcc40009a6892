package repository

import (
	"context"
	"fmt"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository/base"
	"github.com/shopspring/decimal"
)

type ReviewRepository struct {
	*base.Repository
}

func NewReviewRepository(db base.DBTX) *ReviewRepository {
	return &ReviewRepository{Repository: base.NewRepository(db)}
}

// Create inserts a review. A second review for the same booking yields ErrDuplicateReview.
func (r *ReviewRepository) Create(ctx context.Context, rv *model.Review) error {
	query := `
		INSERT INTO reviews (
			booking_id, reviewer_id, provider_id, overall_rating,
			quality_rating, punctuality_rating, professionalism_rating, value_for_money_rating,
			review_title, review_text, review_images
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		rv.BookingID,
		rv.ReviewerID,
		rv.ProviderID,
		rv.OverallRating,
		rv.QualityRating,
		rv.PunctualityRating,
		rv.ProfessionalismRating,
		rv.ValueForMoneyRating,
		rv.Title,
		rv.Text,
		jsonList(rv.Images),
	).Scan(&rv.ID, &rv.CreatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) ExistsByBooking(ctx context.Context, bookingID int64) (bool, error) {
	var exists bool
	err := r.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviews WHERE booking_id = $1)`, bookingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}
	return exists, nil
}

// RatingSummary returns the unrounded average overall rating and the review count for a provider.
func (r *ReviewRepository) RatingSummary(ctx context.Context, providerID int64) (decimal.Decimal, int, error) {
	query := `
		SELECT COALESCE(AVG(overall_rating), 0), COUNT(*)
		FROM reviews
		WHERE provider_id = $1
	`

	var (
		avg   decimal.Decimal
		count int
	)
	if err := r.QueryRow(ctx, query, providerID).Scan(&avg, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("rating summary: %w", err)
	}
	return avg, count, nil
}
