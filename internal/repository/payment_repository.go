package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const paymentSelect = `
	SELECT p.id, p.payment_number, p.booking_id, p.payer_user_id, p.payee_provider_id,
		p.gross_amount, p.net_amount, p.currency,
		p.payment_method, p.payment_gateway, p.gateway_order_id, p.gateway_payment_id, p.gateway_signature,
		p.payment_status, p.initiated_at, p.completed_at,
		b.booking_number
	FROM payments p
	JOIN bookings b ON b.id = p.booking_id`

type PaymentRepository struct {
	*base.Repository
}

func NewPaymentRepository(db base.DBTX) *PaymentRepository {
	return &PaymentRepository{Repository: base.NewRepository(db)}
}

// Create inserts a payment attempt. A taken payment number or gateway order id
// yields ErrDuplicateNumber.
func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (
			payment_number, booking_id, payer_user_id, payee_provider_id,
			gross_amount, net_amount, currency, payment_method, payment_gateway,
			gateway_order_id, payment_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
		RETURNING id, initiated_at
	`

	err := r.QueryRow(
		ctx, query,
		p.Number,
		p.BookingID,
		p.PayerUserID,
		p.PayeeProviderID,
		p.GrossAmount,
		p.NetAmount,
		p.Currency,
		p.Method,
		p.Gateway,
		p.GatewayOrderID,
		p.Status,
	).Scan(&p.ID, &p.InitiatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	p, err := scanPayment(r.QueryRow(ctx, paymentSelect+` WHERE p.gateway_order_id = $1`, orderID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by order id: %w", err)
	}
	return p, nil
}

// LatestByBooking returns the most recent payment attempt for a booking.
func (r *PaymentRepository) LatestByBooking(ctx context.Context, bookingID int64) (*model.Payment, error) {
	query := paymentSelect + `
		WHERE p.booking_id = $1
		ORDER BY p.initiated_at DESC, p.id DESC
		LIMIT 1
	`

	p, err := scanPayment(r.QueryRow(ctx, query, bookingID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by booking: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *model.Payment) error {
	query := `
		UPDATE payments
		SET payment_status = $2, payment_method = $3, gateway_payment_id = $4,
			gateway_signature = $5, completed_at = $6
		WHERE id = $1
	`

	affected, err := r.ExecAffected(
		ctx, query,
		p.ID,
		p.Status,
		p.Method,
		p.GatewayPaymentID,
		p.GatewaySignature,
		p.CompletedAt,
	)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return ErrAlreadyCompleted
		}
		return fmt.Errorf("update payment: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("payment %d not found", p.ID)
	}

	return nil
}

// ExpirePending fails every PENDING payment initiated before the cutoff.
func (r *PaymentRepository) ExpirePending(ctx context.Context, initiatedBefore time.Time) (int64, error) {
	query := `
		UPDATE payments
		SET payment_status = $1
		WHERE payment_status = $2 AND initiated_at < $3
	`

	affected, err := r.ExecAffected(ctx, query, model.PaymentStatusFailed, model.PaymentStatusPending, initiatedBefore)
	if err != nil {
		return 0, fmt.Errorf("expire pending payments: %w", err)
	}
	return affected, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.Number,
		&p.BookingID,
		&p.PayerUserID,
		&p.PayeeProviderID,
		&p.GrossAmount,
		&p.NetAmount,
		&p.Currency,
		&p.Method,
		&p.Gateway,
		&p.GatewayOrderID,
		&p.GatewayPaymentID,
		&p.GatewaySignature,
		&p.Status,
		&p.InitiatedAt,
		&p.CompletedAt,
		&p.BookingNumber,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
