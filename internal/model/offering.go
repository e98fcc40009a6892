package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Icon *string `json:"icon"`
}

// Offering is a service a provider lists in the catalog.
type Offering struct {
	ID              int64           `json:"id"`
	ProviderID      int64           `json:"provider_id"`
	CategoryID      *int64          `json:"category_id"`
	Name            string          `json:"name"`
	BasePrice       decimal.Decimal `json:"base_price"`
	PriceType       string          `json:"price_type"` // FIXED, HOURLY, ...
	DurationMinutes *int            `json:"estimated_duration_minutes"`
	TimesBooked     int             `json:"times_booked"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`

	Category *Category `json:"category,omitempty"`
}
