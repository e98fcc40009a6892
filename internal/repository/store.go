package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository/base"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateNumber means the insert hit an existing human-readable number
	// (or gateway order id) and nothing was written.
	ErrDuplicateNumber = errors.New("duplicate number")
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrAlreadyCompleted means another payment for the booking is already COMPLETED.
	ErrAlreadyCompleted = errors.New("booking already has a completed payment")
	ErrDuplicateReview  = errors.New("review already exists for booking")
)

// BookingFilter scopes a booking listing. Nil fields do not filter.
type BookingFilter struct {
	CustomerID *int64
	ProviderID *int64
	Status     *model.BookingStatus
	Limit      int
	Offset     int
}

// BookingStore persists bookings. Update fails with ErrVersionConflict on a version mismatch.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetByNumber(ctx context.Context, number string) (*model.Booking, error)
	List(ctx context.Context, f BookingFilter) ([]*model.Booking, int, error)
	// Recent returns up to f.Limit bookings, PENDING first, then newest. Status and Offset are ignored.
	Recent(ctx context.Context, f BookingFilter) ([]*model.Booking, error)
	ExistsActive(ctx context.Context, customerID, offeringID int64) (bool, error)
	Update(ctx context.Context, b *model.Booking) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	LatestByBooking(ctx context.Context, bookingID int64) (*model.Payment, error)
	Update(ctx context.Context, p *model.Payment) error
	ExpirePending(ctx context.Context, initiatedBefore time.Time) (int64, error)
}

type ProviderStore interface {
	GetByID(ctx context.Context, id int64) (*model.Provider, error)
	GetByUserID(ctx context.Context, userID int64) (*model.Provider, error)
	// GetForUpdate locks the provider row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Provider, error)
	SaveStats(ctx context.Context, id int64, stats model.ProviderStats) error
}

type OfferingStore interface {
	GetByID(ctx context.Context, id int64) (*model.Offering, error)
	IncrementTimesBooked(ctx context.Context, id int64) error
}

type ReviewStore interface {
	Create(ctx context.Context, r *model.Review) error
	ExistsByBooking(ctx context.Context, bookingID int64) (bool, error)
	RatingSummary(ctx context.Context, providerID int64) (decimal.Decimal, int, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Repositories is a set of table repositories bound to one connection or transaction.
type Repositories struct {
	Bookings  BookingStore
	Payments  PaymentStore
	Providers ProviderStore
	Offerings OfferingStore
	Reviews   ReviewStore
	Users     UserStore
}

// Store hands out repositories, optionally scoped to a transaction.
type Store interface {
	// Repositories returns repositories running outside any transaction.
	Repositories() Repositories
	// WithinTx runs fn in a transaction, committing only if fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// PgStore is the Postgres Store.
type PgStore struct {
	db    base.DB
	repos Repositories
}

func NewStore(db base.DB) *PgStore {
	return &PgStore{db: db, repos: bind(db)}
}

func bind(db base.DBTX) Repositories {
	return Repositories{
		Bookings:  NewBookingRepository(db),
		Payments:  NewPaymentRepository(db),
		Providers: NewProviderRepository(db),
		Offerings: NewOfferingRepository(db),
		Reviews:   NewReviewRepository(db),
		Users:     NewUserRepository(db),
	}
}

func (s *PgStore) Repositories() Repositories {
	return s.repos
}

func (s *PgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// jsonList keeps empty lists encoding as [] rather than null.
func jsonList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
