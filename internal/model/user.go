package model

import "time"

// UserRole decides which endpoints and bookings a caller may reach.
type UserRole string

const (
	RoleCustomer UserRole = "CUSTOMER"
	RoleProvider UserRole = "PROVIDER"
	RoleAdmin    UserRole = "ADMIN"
)

type User struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           *string   `json:"email"`
	Phone           string    `json:"phone"`
	ProfileImageURL *string   `json:"profile_image_url"`
	Role            UserRole  `json:"role"`
	TelegramID      *int64    `json:"telegram_id"`
	CreatedAt       time.Time `json:"created_at"`
}
