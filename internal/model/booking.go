package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type UrgencyLevel string

const (
	UrgencyLow       UrgencyLevel = "LOW"
	UrgencyMedium    UrgencyLevel = "MEDIUM"
	UrgencyHigh      UrgencyLevel = "HIGH"
	UrgencyEmergency UrgencyLevel = "EMERGENCY"
)

// ParseUrgencyLevel treats an empty string as MEDIUM.
func ParseUrgencyLevel(s string) (UrgencyLevel, error) {
	if s == "" {
		return UrgencyMedium, nil
	}
	switch u := UrgencyLevel(s); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return u, nil
	}
	return "", &ParseError{Field: "urgency level", Value: s}
}

// CancelledBy records which party cancelled a booking.
type CancelledBy string

const (
	CancelledByUser     CancelledBy = "USER"
	CancelledByProvider CancelledBy = "PROVIDER"
	CancelledByAdmin    CancelledBy = "ADMIN"
	CancelledBySystem   CancelledBy = "SYSTEM"
)

// BookingPaymentStatus is the settlement state tracked on the booking itself.
type BookingPaymentStatus string

const (
	BookingUnpaid   BookingPaymentStatus = "UNPAID"
	BookingPaid     BookingPaymentStatus = "PAID"
	BookingRefunded BookingPaymentStatus = "REFUNDED"
)

// Booking is a customer's request for a provider's offering at a scheduled time.
// Version guards concurrent updates.
type Booking struct {
	ID         int64  `json:"id"`
	Number     string `json:"booking_number"`
	CustomerID int64  `json:"customer_id"`
	ProviderID int64  `json:"provider_id"`
	OfferingID int64  `json:"service_id"`

	ScheduledDate    time.Time  `json:"scheduled_date"`
	ScheduledTime    string     `json:"scheduled_time"` // HH:MM
	ScheduledEndTime *string    `json:"scheduled_end_time"`
	ActualStartTime  *time.Time `json:"actual_start_time"`
	ActualEndTime    *time.Time `json:"actual_end_time"`

	Address   string           `json:"service_address"`
	Landmark  *string          `json:"service_landmark"`
	Pincode   string           `json:"service_pincode"`
	Latitude  *decimal.Decimal `json:"service_latitude"`
	Longitude *decimal.Decimal `json:"service_longitude"`
	City      *string          `json:"service_city"`
	State     *string          `json:"service_state"`

	IssueTitle       *string      `json:"issue_title"`
	IssueDescription *string      `json:"issue_description"`
	IssueImages      []string     `json:"issue_images"`
	Urgency          UrgencyLevel `json:"urgency_level"`

	EstimatedAmount    decimal.Decimal  `json:"estimated_amount"`
	MaterialCost       decimal.Decimal  `json:"material_cost"`
	LaborCost          decimal.Decimal  `json:"labor_cost"`
	TravelCharge       decimal.Decimal  `json:"travel_charge"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount"`
	TaxAmount          decimal.Decimal  `json:"tax_amount"`
	CancellationCharge decimal.Decimal  `json:"cancellation_charge"`
	FinalAmount        *decimal.Decimal `json:"final_amount"`

	Status        BookingStatus        `json:"booking_status"`
	PaymentStatus BookingPaymentStatus `json:"payment_status"`

	CancelledBy        *CancelledBy `json:"cancelled_by"`
	CancellationReason *string      `json:"cancellation_reason"`
	CancelledAt        *time.Time   `json:"cancelled_at"`

	ProviderResponseAt *time.Time `json:"provider_response_at"`
	ProviderNotes      *string    `json:"provider_notes"`

	WorkSummary      *string          `json:"work_summary"`
	CompletionImages []string         `json:"completion_images"`
	UserRating       *decimal.Decimal `json:"user_rating"`
	ProviderRating   *decimal.Decimal `json:"provider_rating"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated by detailed loads only
	Customer *User     `json:"customer,omitempty"`
	Provider *Provider `json:"provider,omitempty"`
	Offering *Offering `json:"service,omitempty"`
}

// PayableAmount is the final amount once set, otherwise the estimate.
func (b *Booking) PayableAmount() decimal.Decimal {
	if b.FinalAmount != nil {
		return *b.FinalAmount
	}
	return b.EstimatedAmount
}

// IsOwnedBy reports whether userID is the booking's customer.
func (b *Booking) IsOwnedBy(userID int64) bool {
	return b.CustomerID == userID
}

// IsAddressedTo reports whether userID is the account linked to the booking's provider.
func (b *Booking) IsAddressedTo(userID int64) bool {
	return b.Provider != nil && b.Provider.UserID == userID
}
