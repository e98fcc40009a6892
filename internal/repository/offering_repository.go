package repository

import (
	"context"
	"fmt"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository/base"
)

type OfferingRepository struct {
	*base.Repository
}

func NewOfferingRepository(db base.DBTX) *OfferingRepository {
	return &OfferingRepository{Repository: base.NewRepository(db)}
}

// GetByID loads an offering together with its category, if any.
func (r *OfferingRepository) GetByID(ctx context.Context, id int64) (*model.Offering, error) {
	query := `
		SELECT s.id, s.provider_id, s.category_id, s.name, s.base_price, s.price_type,
			s.estimated_duration_minutes, s.times_booked, s.is_active, s.created_at,
			c.name, c.icon
		FROM services s
		LEFT JOIN service_categories c ON c.id = s.category_id
		WHERE s.id = $1
	`

	var (
		o            model.Offering
		categoryName *string
		categoryIcon *string
	)
	err := r.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.ProviderID,
		&o.CategoryID,
		&o.Name,
		&o.BasePrice,
		&o.PriceType,
		&o.DurationMinutes,
		&o.TimesBooked,
		&o.IsActive,
		&o.CreatedAt,
		&categoryName,
		&categoryIcon,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get offering by id: %w", err)
	}

	if o.CategoryID != nil && categoryName != nil {
		o.Category = &model.Category{ID: *o.CategoryID, Name: *categoryName, Icon: categoryIcon}
	}

	return &o, nil
}

func (r *OfferingRepository) IncrementTimesBooked(ctx context.Context, id int64) error {
	affected, err := r.ExecAffected(ctx, `UPDATE services SET times_booked = times_booked + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment times booked: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("offering %d not found", id)
	}
	return nil
}
