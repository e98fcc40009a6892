package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Review is a customer's rating of a completed booking. One per booking.
type Review struct {
	ID                    int64            `json:"id"`
	BookingID             int64            `json:"booking_id"`
	ReviewerID            int64            `json:"reviewer_id"`
	ProviderID            int64            `json:"provider_id"`
	OverallRating         decimal.Decimal  `json:"overall_rating"`
	QualityRating         *decimal.Decimal `json:"quality_rating"`
	PunctualityRating     *decimal.Decimal `json:"punctuality_rating"`
	ProfessionalismRating *decimal.Decimal `json:"professionalism_rating"`
	ValueForMoneyRating   *decimal.Decimal `json:"value_for_money_rating"`
	Title                 *string          `json:"review_title"`
	Text                  *string          `json:"review_text"`
	Images                []string         `json:"review_images"`
	CreatedAt             time.Time        `json:"created_at"`
}

var (
	MinRating = decimal.NewFromInt(1)
	MaxRating = decimal.NewFromInt(5)
)

// RatingInRange reports whether r lies within 1.00–5.00 inclusive.
func RatingInRange(r decimal.Decimal) bool {
	return r.GreaterThanOrEqual(MinRating) && r.LessThanOrEqual(MaxRating)
}
