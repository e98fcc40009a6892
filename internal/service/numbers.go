package service

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hirelink/booking-core/internal/gateway"
)

// Clock is the time source for timestamps and booking numbers.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NumberGenerator produces human-readable identifiers. Uniqueness is enforced
// by the store, callers regenerate on collision.
type NumberGenerator interface {
	BookingNumber(now time.Time) string
	PaymentNumber(now time.Time) string
	MockOrderID(now time.Time) string
}

// RandomNumbers is the default NumberGenerator.
type RandomNumbers struct{}

// BookingNumber is HL + yyyyMMdd + 5 random digits.
func (RandomNumbers) BookingNumber(now time.Time) string {
	return fmt.Sprintf("HL%s%05d", now.Format("20060102"), rand.IntN(100000))
}

// PaymentNumber is PAY + yyyyMMdd + 6 random digits.
func (RandomNumbers) PaymentNumber(now time.Time) string {
	return fmt.Sprintf("PAY%s%06d", now.Format("20060102"), rand.IntN(1000000))
}

func (RandomNumbers) MockOrderID(now time.Time) string {
	return fmt.Sprintf("%s%s_%04d", gateway.MockOrderPrefix, now.Format("20060102150405"), rand.IntN(10000))
}
