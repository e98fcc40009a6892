package model

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Provider is a service professional profile linked to a user account.
type Provider struct {
	ID           int64         `json:"id"`
	UserID       int64         `json:"user_id"`
	BusinessName string        `json:"business_name"`
	Stats        ProviderStats `json:"stats"`
	CreatedAt    time.Time     `json:"created_at"`

	User *User `json:"user,omitempty"`
}

// ProviderStats are derived counters. They change only through Apply.
type ProviderStats struct {
	TotalBookings     int             `json:"total_bookings"`
	CancelledBookings int             `json:"cancelled_bookings"`
	CompletedBookings int             `json:"completed_bookings"`
	CompletionRate    decimal.Decimal `json:"completion_rate"`
	TotalEarnings     decimal.Decimal `json:"total_earnings"`
	AverageRating     decimal.Decimal `json:"average_rating"`
	TotalReviews      int             `json:"total_reviews"`
}

// StatsEvent is a booking or review fact that moves provider counters.
type StatsEvent interface {
	statsEvent()
}

type BookingCreated struct{}

type BookingCancelled struct{}

// BookingCompleted adds Amount to earnings and counts the completion.
type BookingCompleted struct {
	Amount decimal.Decimal
}

// RatingRecomputed carries the aggregate over the provider's full review set.
type RatingRecomputed struct {
	Average decimal.Decimal
	Count   int
}

func (BookingCreated) statsEvent()   {}
func (BookingCancelled) statsEvent() {}
func (BookingCompleted) statsEvent() {}
func (RatingRecomputed) statsEvent() {}

// Apply returns the counters after ev.
func (s ProviderStats) Apply(ev StatsEvent) ProviderStats {
	switch e := ev.(type) {
	case BookingCreated:
		s.TotalBookings++
	case BookingCancelled:
		s.CancelledBookings++
	case BookingCompleted:
		s.CompletedBookings++
		s.CompletionRate = CompletionRate(s.CompletedBookings, s.TotalBookings)
		s.TotalEarnings = s.TotalEarnings.Add(e.Amount)
	case RatingRecomputed:
		s.AverageRating = e.Average.Round(2)
		s.TotalReviews = e.Count
	}
	return s
}

// CompletionRate is completed/total*100 rounded half-up to 2 places; zero when total is zero.
func CompletionRate(completed, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(completed)).Mul(hundred).DivRound(decimal.NewFromInt(int64(total)), 2)
}
