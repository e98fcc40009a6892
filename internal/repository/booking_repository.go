package repository

import (
	"context"
	"fmt"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const bookingColumns = `
	id, booking_number, customer_id, provider_id, service_id,
	scheduled_date, to_char(scheduled_time, 'HH24:MI'), to_char(scheduled_end_time, 'HH24:MI'),
	actual_start_time, actual_end_time,
	service_address, service_landmark, service_pincode, service_latitude, service_longitude,
	service_city, service_state,
	issue_title, issue_description, issue_images, urgency_level,
	estimated_amount, material_cost, labor_cost, travel_charge, discount_amount, tax_amount,
	cancellation_charge, final_amount,
	booking_status, payment_status,
	cancelled_by, cancellation_reason, cancelled_at,
	provider_response_at, provider_notes,
	work_summary, completion_images, user_rating, provider_rating,
	version, created_at, updated_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(db base.DBTX) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(db)}
}

// Create inserts a booking. A taken booking number yields ErrDuplicateNumber.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	query := `
		INSERT INTO bookings (
			booking_number, customer_id, provider_id, service_id,
			scheduled_date, scheduled_time, scheduled_end_time,
			service_address, service_landmark, service_pincode, service_latitude, service_longitude,
			service_city, service_state,
			issue_title, issue_description, issue_images, urgency_level,
			estimated_amount, booking_status, payment_status
		)
		VALUES ($1, $2, $3, $4, $5, $6::text::time, $7::text::time, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (booking_number) DO NOTHING
		RETURNING id, version, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		b.Number,
		b.CustomerID,
		b.ProviderID,
		b.OfferingID,
		b.ScheduledDate,
		b.ScheduledTime,
		b.ScheduledEndTime,
		b.Address,
		b.Landmark,
		b.Pincode,
		b.Latitude,
		b.Longitude,
		b.City,
		b.State,
		b.IssueTitle,
		b.IssueDescription,
		jsonList(b.IssueImages),
		b.Urgency,
		b.EstimatedAmount,
		b.Status,
		b.PaymentStatus,
	).Scan(&b.ID, &b.Version, &b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return b, nil
}

func (r *BookingRepository) GetByNumber(ctx context.Context, number string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_number = $1`

	b, err := scanBooking(r.QueryRow(ctx, query, number))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by number: %w", err)
	}

	return b, nil
}

// List returns one page of bookings, newest first, and the total matching count.
func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]*model.Booking, int, error) {
	where := `
		WHERE ($1::bigint IS NULL OR customer_id = $1)
		  AND ($2::bigint IS NULL OR provider_id = $2)
		  AND ($3::text IS NULL OR booking_status = $3)
	`
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	var total int
	if err := r.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+where, f.CustomerID, f.ProviderID, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.Query(ctx, query, f.CustomerID, f.ProviderID, status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*model.Booking, 0, f.Limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	return bookings, total, nil
}

func (r *BookingRepository) Recent(ctx context.Context, f BookingFilter) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE ($1::bigint IS NULL OR customer_id = $1)
		  AND ($2::bigint IS NULL OR provider_id = $2)
		ORDER BY (booking_status = $3) DESC, created_at DESC, id DESC
		LIMIT $4
	`

	rows, err := r.Query(ctx, query, f.CustomerID, f.ProviderID, string(model.BookingStatusPending), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("recent bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*model.Booking, 0, f.Limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent bookings: %w", err)
	}

	return bookings, nil
}

// ExistsActive reports whether the customer already has an active booking for the offering.
func (r *BookingRepository) ExistsActive(ctx context.Context, customerID, offeringID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE customer_id = $1 AND service_id = $2 AND booking_status = ANY($3)
		)
	`

	active := make([]string, 0, len(model.ActiveBookingStatuses))
	for _, s := range model.ActiveBookingStatuses {
		active = append(active, string(s))
	}

	var exists bool
	if err := r.QueryRow(ctx, query, customerID, offeringID, active).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return exists, nil
}

// Update writes the mutable columns if the stored version still matches b.Version.
// On success b.Version and b.UpdatedAt are refreshed; otherwise ErrVersionConflict.
func (r *BookingRepository) Update(ctx context.Context, b *model.Booking) error {
	query := `
		UPDATE bookings SET
			actual_start_time = $2,
			actual_end_time = $3,
			cancellation_charge = $4,
			final_amount = $5,
			booking_status = $6,
			payment_status = $7,
			cancelled_by = $8,
			cancellation_reason = $9,
			cancelled_at = $10,
			provider_response_at = $11,
			provider_notes = $12,
			work_summary = $13,
			completion_images = $14,
			user_rating = $15,
			provider_rating = $16,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $17
		RETURNING version, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		b.ID,
		b.ActualStartTime,
		b.ActualEndTime,
		b.CancellationCharge,
		b.FinalAmount,
		b.Status,
		b.PaymentStatus,
		b.CancelledBy,
		b.CancellationReason,
		b.CancelledAt,
		b.ProviderResponseAt,
		b.ProviderNotes,
		b.WorkSummary,
		jsonList(b.CompletionImages),
		b.UserRating,
		b.ProviderRating,
		b.Version,
	).Scan(&b.Version, &b.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("update booking: %w", err)
	}

	return nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b                      model.Booking
		lat, lng, final        decimal.NullDecimal
		userRating, provRating decimal.NullDecimal
	)

	err := row.Scan(
		&b.ID,
		&b.Number,
		&b.CustomerID,
		&b.ProviderID,
		&b.OfferingID,
		&b.ScheduledDate,
		&b.ScheduledTime,
		&b.ScheduledEndTime,
		&b.ActualStartTime,
		&b.ActualEndTime,
		&b.Address,
		&b.Landmark,
		&b.Pincode,
		&lat,
		&lng,
		&b.City,
		&b.State,
		&b.IssueTitle,
		&b.IssueDescription,
		&b.IssueImages,
		&b.Urgency,
		&b.EstimatedAmount,
		&b.MaterialCost,
		&b.LaborCost,
		&b.TravelCharge,
		&b.DiscountAmount,
		&b.TaxAmount,
		&b.CancellationCharge,
		&final,
		&b.Status,
		&b.PaymentStatus,
		&b.CancelledBy,
		&b.CancellationReason,
		&b.CancelledAt,
		&b.ProviderResponseAt,
		&b.ProviderNotes,
		&b.WorkSummary,
		&b.CompletionImages,
		&userRating,
		&provRating,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Latitude = decimalPtr(lat)
	b.Longitude = decimalPtr(lng)
	b.FinalAmount = decimalPtr(final)
	b.UserRating = decimalPtr(userRating)
	b.ProviderRating = decimalPtr(provRating)

	return &b, nil
}
