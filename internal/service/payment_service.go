package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirelink/booking-core/internal/events"
	"github.com/hirelink/booking-core/internal/gateway"
	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/obs"
	"github.com/hirelink/booking-core/internal/repository"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var minorUnits = decimal.NewFromInt(100)

// OrderResponse is what a client needs to open the gateway checkout.
type OrderResponse struct {
	OrderID       string  `json:"order_id"`
	Amount        int64   `json:"amount"`
	Currency      string  `json:"currency"`
	KeyID         string  `json:"key_id"`
	BookingNumber string  `json:"booking_number"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
	CustomerPhone string  `json:"customer_phone"`
}

// VerifyInput is the gateway checkout callback.
type VerifyInput struct {
	OrderID          string
	GatewayPaymentID string
	Signature        string
}

// PaymentService opens gateway orders and settles bookings on verified payments.
type PaymentService struct {
	store     repository.Store
	gateway   gateway.Gateway
	clock     Clock
	numbers   NumberGenerator
	publisher events.Publisher
	currency  string
	logger    *zap.Logger
}

// NewPaymentService defaults currency to INR and logs a warning when the gateway is in mock mode.
func NewPaymentService(
	store repository.Store,
	gw gateway.Gateway,
	clock Clock,
	numbers NumberGenerator,
	publisher events.Publisher,
	currency string,
	logger *zap.Logger,
) *PaymentService {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	if gw.Mock() {
		logger.Warn("Payment gateway credentials are placeholders, running in mock payment mode")
	}
	return &PaymentService{
		store:     store,
		gateway:   gw,
		clock:     clock,
		numbers:   numbers,
		publisher: publisher,
		currency:  currency,
		logger:    logger,
	}
}

// CreateOrder opens a gateway order for a payable booking and records a PENDING
// payment. When the gateway is unavailable a mock order is issued instead.
func (s *PaymentService) CreateOrder(ctx context.Context, customerID, bookingID int64) (resp *OrderResponse, err error) {
	ctx, span := obs.StartSpan(ctx, "PaymentService.CreateOrder",
		attribute.Int64("booking_id", bookingID),
		attribute.Int64("customer_id", customerID),
	)
	defer func() { obs.EndSpan(span, err) }()

	repos := s.store.Repositories()

	booking, err := repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, notFound("Booking not found")
	}
	if !booking.IsOwnedBy(customerID) {
		return nil, invalid("You can only pay for your own bookings")
	}
	if !booking.Status.IsPayable() {
		return nil, invalid("Payment can only be made for accepted or confirmed bookings")
	}
	if booking.PaymentStatus == model.BookingPaid {
		return nil, invalid("This booking has already been paid")
	}

	amount := booking.PayableAmount()
	if !amount.IsPositive() {
		return nil, invalid("Invalid booking amount")
	}
	amountMinor := amount.Mul(minorUnits).IntPart()

	customer, err := repos.Users.GetByID(ctx, booking.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		return nil, notFound("User not found")
	}

	orderID, mock := s.openOrder(ctx, booking, amountMinor)

	payment := &model.Payment{
		BookingID:       booking.ID,
		BookingNumber:   booking.Number,
		PayerUserID:     booking.CustomerID,
		PayeeProviderID: booking.ProviderID,
		GrossAmount:     amount,
		NetAmount:       amount,
		Currency:        s.currency,
		Gateway:         model.GatewayRazorpay,
		GatewayOrderID:  orderID,
		Status:          model.PaymentStatusPending,
	}
	if err := s.insertPayment(ctx, repos, payment, mock); err != nil {
		return nil, err
	}

	mode := "live"
	keyID := s.gateway.KeyID()
	if mock {
		mode = "mock"
		keyID = gateway.MockKeyID
	}
	obs.RecordPaymentOrder(mode)
	publish(ctx, s.publisher, s.logger,
		events.New(events.PaymentOrderCreated, booking.Number, s.clock.Now(), paymentPayload(payment, mock)))

	s.logger.Info("Payment order created",
		zap.String("order_id", payment.GatewayOrderID),
		zap.String("booking_number", booking.Number),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("mode", mode),
	)

	return &OrderResponse{
		OrderID:       payment.GatewayOrderID,
		Amount:        amountMinor,
		Currency:      s.currency,
		KeyID:         keyID,
		BookingNumber: booking.Number,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		CustomerPhone: customer.Phone,
	}, nil
}

// openOrder returns the gateway order id, or a mock id when the gateway is in
// mock mode or the call fails.
func (s *PaymentService) openOrder(ctx context.Context, booking *model.Booking, amountMinor int64) (string, bool) {
	if s.gateway.Mock() {
		return s.numbers.MockOrderID(s.clock.Now()), true
	}

	orderID, err := s.gateway.CreateOrder(ctx, amountMinor, s.currency, booking.Number)
	if err != nil {
		s.logger.Warn("Gateway order creation failed, falling back to mock order",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
		return s.numbers.MockOrderID(s.clock.Now()), true
	}
	return orderID, false
}

func (s *PaymentService) insertPayment(ctx context.Context, repos repository.Repositories, p *model.Payment, mock bool) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		p.Number = s.numbers.PaymentNumber(s.clock.Now())

		err := repos.Payments.Create(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateNumber) {
			return fmt.Errorf("create payment: %w", err)
		}
		if mock {
			p.GatewayOrderID = s.numbers.MockOrderID(s.clock.Now())
		}

		s.logger.Warn("Payment number collision",
			zap.String("payment_number", p.Number),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("create payment: no free payment number after %d attempts", maxNumberAttempts)
}

// VerifyPayment confirms a gateway callback. A bad signature marks the payment
// FAILED before the error is returned. On success the payment completes and the
// booking becomes PAID in one transaction.
func (s *PaymentService) VerifyPayment(ctx context.Context, in VerifyInput) (payment *model.Payment, err error) {
	ctx, span := obs.StartSpan(ctx, "PaymentService.VerifyPayment",
		attribute.String("order_id", in.OrderID),
	)
	defer func() { obs.EndSpan(span, err) }()

	repos := s.store.Repositories()

	p, err := repos.Payments.GetByOrderID(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if p == nil {
		return nil, notFound("Payment order not found")
	}

	mock := gateway.IsMockOrder(in.OrderID)
	signed := mock || s.gateway.VerifySignature(in.OrderID, in.GatewayPaymentID, in.Signature)

	if p.Status == model.PaymentStatusCompleted {
		// A completed payment stays completed; only a correctly signed replay sees it.
		if !signed {
			obs.RecordPaymentVerification("invalid_signature")
			return nil, invalid("Payment verification failed. Invalid signature.")
		}
		obs.RecordPaymentVerification("replayed")
		return p, nil
	}

	if !signed {
		return nil, s.failPayment(ctx, repos, p)
	}
	if mock {
		s.logger.Info("Accepting mock payment verification", zap.String("order_id", in.OrderID))
	}

	now := s.clock.Now()
	paymentID := in.GatewayPaymentID
	signature := in.Signature

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		p.Status = model.PaymentStatusCompleted
		p.GatewayPaymentID = &paymentID
		p.GatewaySignature = &signature
		p.CompletedAt = &now

		if err := repos.Payments.Update(ctx, p); err != nil {
			if errors.Is(err, repository.ErrAlreadyCompleted) {
				return invalid("This booking has already been paid")
			}
			return err
		}

		booking, err := repos.Bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFound("Booking not found")
		}

		booking.PaymentStatus = model.BookingPaid
		if err := repos.Bookings.Update(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return conflict("Booking was modified by another request, please retry")
			}
			return fmt.Errorf("update booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.RecordPaymentVerification("ok")
	publish(ctx, s.publisher, s.logger,
		events.New(events.PaymentCompleted, p.BookingNumber, now, paymentPayload(p, mock)))

	s.logger.Info("Payment verified",
		zap.String("booking_number", p.BookingNumber),
		zap.String("order_id", p.GatewayOrderID),
		zap.String("gateway_payment_id", paymentID),
	)

	return p, nil
}

// failPayment persists the FAILED status outside any transaction so it survives
// the error returned to the caller.
func (s *PaymentService) failPayment(ctx context.Context, repos repository.Repositories, p *model.Payment) error {
	p.Status = model.PaymentStatusFailed
	if err := repos.Payments.Update(ctx, p); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}

	obs.RecordPaymentVerification("invalid_signature")
	publish(ctx, s.publisher, s.logger,
		events.New(events.PaymentFailed, p.BookingNumber, s.clock.Now(), paymentPayload(p, false)))

	s.logger.Warn("Payment signature mismatch",
		zap.String("order_id", p.GatewayOrderID),
		zap.Int64("booking_id", p.BookingID),
	)
	return invalid("Payment verification failed. Invalid signature.")
}

// GetPaymentByBooking returns the latest payment attempt for a booking the
// actor can see. Other bookings are reported as not found.
func (s *PaymentService) GetPaymentByBooking(ctx context.Context, bookingID int64, actor Actor) (*model.Payment, error) {
	repos := s.store.Repositories()

	b, err := repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if _, err := visible(ctx, repos, b, actor, "Booking not found"); err != nil {
		return nil, err
	}

	p, err := repos.Payments.LatestByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get payment by booking: %w", err)
	}
	if p == nil {
		return nil, notFound("No payment found for this booking")
	}
	return p, nil
}

// ExpireStalePayments fails PENDING payments older than ttl and returns how many changed.
func (s *PaymentService) ExpireStalePayments(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-ttl)

	n, err := s.store.Repositories().Payments.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	obs.RecordPaymentsExpired(n)
	publish(ctx, s.publisher, s.logger,
		events.New(events.PaymentsExpired, "", s.clock.Now(), events.ExpiryPayload{Count: n, Cutoff: cutoff.UTC()}))

	s.logger.Info("Expired stale payments",
		zap.Int64("count", n),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}

func paymentPayload(p *model.Payment, mock bool) events.PaymentPayload {
	return events.PaymentPayload{
		PaymentID:     p.ID,
		PaymentNumber: p.Number,
		BookingID:     p.BookingID,
		BookingNumber: p.BookingNumber,
		OrderID:       p.GatewayOrderID,
		Amount:        p.GrossAmount.StringFixed(2),
		Currency:      p.Currency,
		Status:        string(p.Status),
		Mock:          mock,
	}
}
