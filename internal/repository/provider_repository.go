package repository

import (
	"context"
	"fmt"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const providerSelect = `
	SELECT id, user_id, business_name,
		total_bookings, cancelled_bookings, completed_bookings, completion_rate,
		total_earnings, average_rating, total_reviews, created_at
	FROM service_providers`

type ProviderRepository struct {
	*base.Repository
}

func NewProviderRepository(db base.DBTX) *ProviderRepository {
	return &ProviderRepository{Repository: base.NewRepository(db)}
}

func (r *ProviderRepository) GetByID(ctx context.Context, id int64) (*model.Provider, error) {
	return r.getOne(ctx, "get provider by id", providerSelect+` WHERE id = $1`, id)
}

func (r *ProviderRepository) GetByUserID(ctx context.Context, userID int64) (*model.Provider, error) {
	return r.getOne(ctx, "get provider by user id", providerSelect+` WHERE user_id = $1`, userID)
}

func (r *ProviderRepository) GetForUpdate(ctx context.Context, id int64) (*model.Provider, error) {
	return r.getOne(ctx, "lock provider", providerSelect+` WHERE id = $1 FOR UPDATE`, id)
}

// SaveStats overwrites the provider's aggregate counters.
func (r *ProviderRepository) SaveStats(ctx context.Context, id int64, stats model.ProviderStats) error {
	query := `
		UPDATE service_providers
		SET total_bookings = $2, cancelled_bookings = $3, completed_bookings = $4,
			completion_rate = $5, total_earnings = $6, average_rating = $7, total_reviews = $8
		WHERE id = $1
	`

	affected, err := r.ExecAffected(
		ctx, query,
		id,
		stats.TotalBookings,
		stats.CancelledBookings,
		stats.CompletedBookings,
		stats.CompletionRate,
		stats.TotalEarnings,
		stats.AverageRating,
		stats.TotalReviews,
	)
	if err != nil {
		return fmt.Errorf("save provider stats: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("provider %d not found", id)
	}
	return nil
}

func (r *ProviderRepository) getOne(ctx context.Context, op, query string, arg int64) (*model.Provider, error) {
	p, err := scanProvider(r.QueryRow(ctx, query, arg))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanProvider(row pgx.Row) (*model.Provider, error) {
	var p model.Provider
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.BusinessName,
		&p.Stats.TotalBookings,
		&p.Stats.CancelledBookings,
		&p.Stats.CompletedBookings,
		&p.Stats.CompletionRate,
		&p.Stats.TotalEarnings,
		&p.Stats.AverageRating,
		&p.Stats.TotalReviews,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
