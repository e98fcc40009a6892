package model

import (
	"fmt"
	"strings"
)

// BookingStatus is a state in the booking lifecycle.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusAccepted   BookingStatus = "ACCEPTED"
	BookingStatusRejected   BookingStatus = "REJECTED"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusPaused     BookingStatus = "PAUSED"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
	BookingStatusDisputed   BookingStatus = "DISPUTED"
	BookingStatusRefunded   BookingStatus = "REFUNDED"
)

// AllBookingStatuses lists every state in declaration order.
var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusRejected,
	BookingStatusConfirmed,
	BookingStatusInProgress,
	BookingStatusPaused,
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusDisputed,
	BookingStatusRefunded,
}

// ActiveBookingStatuses block a second booking of the same service by the same customer.
var ActiveBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusConfirmed,
	BookingStatusInProgress,
}

// REJECTED has no outgoing edges. It is kept terminal on purpose until
// product decides whether a rejected booking may be reopened.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusAccepted, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusAccepted:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusPaused, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusPaused:     {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusCompleted:  {BookingStatusDisputed},
	BookingStatusDisputed:   {BookingStatusRefunded, BookingStatusCompleted},
	BookingStatusRejected:   {},
	BookingStatusCancelled:  {},
	BookingStatusRefunded:   {},
}

// IsValid reports whether s is one of the known lifecycle states.
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// IsPayable reports whether a payment order may be opened in state s.
func (s BookingStatus) IsPayable() bool {
	return s == BookingStatusAccepted || s == BookingStatusConfirmed
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus is case-insensitive and rejects unknown names.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", &ParseError{Field: "booking status", Value: raw}
	}
	return s, nil
}

// ParseError reports a free-text enum value that is not part of the closed set.
type ParseError struct {
	Field string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}
