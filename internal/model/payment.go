package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of one gateway payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodUPI        PaymentMethod = "UPI"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentMethodNetBanking PaymentMethod = "NET_BANKING"
	PaymentMethodWallet     PaymentMethod = "WALLET"
)

type PaymentGateway string

const (
	GatewayRazorpay PaymentGateway = "RAZORPAY"
	GatewayOther    PaymentGateway = "OTHER"
)

const DefaultCurrency = "INR"

// Payment is one gateway checkout attempt for a booking.
type Payment struct {
	ID              int64  `json:"id"`
	Number          string `json:"payment_number"`
	BookingID       int64  `json:"booking_id"`
	PayerUserID     int64  `json:"payer_user_id"`
	PayeeProviderID int64  `json:"payee_provider_id"`

	GrossAmount decimal.Decimal `json:"gross_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	Currency    string          `json:"currency"`

	Method           *PaymentMethod `json:"payment_method"`
	Gateway          PaymentGateway `json:"payment_gateway"`
	GatewayOrderID   string         `json:"gateway_order_id"`
	GatewayPaymentID *string        `json:"gateway_payment_id"`
	GatewaySignature *string        `json:"-"`

	Status      PaymentStatus `json:"payment_status"`
	InitiatedAt time.Time     `json:"initiated_at"`
	CompletedAt *time.Time    `json:"completed_at"`

	// Joined from bookings, not a payments column
	BookingNumber string `json:"booking_number"`
}
