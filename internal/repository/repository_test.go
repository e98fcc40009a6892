package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

// anyArgs matches n placeholders without checking their values.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func checkExpectations(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBookingRepository_ExistsActive(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7), int64(3), []string{"PENDING", "ACCEPTED", "CONFIRMED", "IN_PROGRESS"}).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsActive(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected an active booking to exist")
	}
	checkExpectations(t, mock)
}

func TestBookingRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(append([]any{"HL2024010112345"}, anyArgs(20)...)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow(int64(42), int64(1), now, now))

	b := &model.Booking{Number: "HL2024010112345", Status: model.BookingStatusPending}
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ID != 42 || b.Version != 1 {
		t.Errorf("expected id 42 version 1, got id %d version %d", b.ID, b.Version)
	}
	checkExpectations(t, mock)
}

func TestBookingRepository_CreateNumberTaken(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	// ON CONFLICT DO NOTHING returns no row
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(append([]any{"HL2024010112345"}, anyArgs(20)...)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "version", "created_at", "updated_at"}))

	err := repo.Create(context.Background(), &model.Booking{Number: "HL2024010112345"})
	if !errors.Is(err, ErrDuplicateNumber) {
		t.Errorf("expected ErrDuplicateNumber, got %v", err)
	}
	checkExpectations(t, mock)
}

// versionedUpdateArgs pins the id and expected version of a booking update.
func versionedUpdateArgs(id, version int64) []any {
	args := append([]any{id}, anyArgs(15)...)
	return append(args, version)
}

func TestBookingRepository_UpdateStaleVersion(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	mock.ExpectQuery(`UPDATE bookings SET`).
		WithArgs(versionedUpdateArgs(5, 3)...).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}))

	b := &model.Booking{ID: 5, Version: 3, Status: model.BookingStatusAccepted}
	err := repo.Update(context.Background(), b)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
	if b.Version != 3 {
		t.Errorf("version must not change on conflict, got %d", b.Version)
	}
	checkExpectations(t, mock)
}

func TestBookingRepository_UpdateBumpsVersion(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`UPDATE bookings SET`).
		WithArgs(versionedUpdateArgs(5, 3)...).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}).AddRow(int64(4), now))

	b := &model.Booking{ID: 5, Version: 3, Status: model.BookingStatusAccepted}
	if err := repo.Update(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Version != 4 || !b.UpdatedAt.Equal(now) {
		t.Errorf("expected version 4 and refreshed updated_at, got %d %v", b.Version, b.UpdatedAt)
	}
	checkExpectations(t, mock)
}

func TestBookingRepository_RecentPendingFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)
	customerID := int64(7)

	mock.ExpectQuery(`ORDER BY \(booking_status = \$3\) DESC, created_at DESC, id DESC`).
		WithArgs(&customerID, pgxmock.AnyArg(), "PENDING", 3).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	bookings, err := repo.Recent(context.Background(), BookingFilter{CustomerID: &customerID, Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 0 {
		t.Errorf("expected no bookings, got %d", len(bookings))
	}
	checkExpectations(t, mock)
}

func TestPaymentRepository_UpdateSecondCompletion(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentRepository(mock)

	mock.ExpectExec(`UPDATE payments`).
		WithArgs(append([]any{int64(1), model.PaymentStatusCompleted}, anyArgs(4)...)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_payments_completed_per_booking"})

	err := repo.Update(context.Background(), &model.Payment{ID: 1, Status: model.PaymentStatusCompleted})
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestPaymentRepository_ExpirePending(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentRepository(mock)
	cutoff := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE payments`).
		WithArgs(model.PaymentStatusFailed, model.PaymentStatusPending, cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.ExpirePending(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 expired payments, got %d", n)
	}
	checkExpectations(t, mock)
}

func TestPaymentRepository_LatestByBookingMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentRepository(mock)

	mock.ExpectQuery(`FROM payments p`).
		WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	p, err := repo.LatestByBooking(context.Background(), 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil payment, got %+v", p)
	}
	checkExpectations(t, mock)
}

func TestProviderRepository_GetForUpdate(t *testing.T) {
	mock := newMock(t)
	repo := NewProviderRepository(mock)
	created := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "business_name", "total_bookings", "cancelled_bookings", "completed_bookings",
			"completion_rate", "total_earnings", "average_rating", "total_reviews", "created_at",
		}).AddRow(
			int64(3), int64(11), "Sharma Plumbing", 4, 1, 2,
			decimal.RequireFromString("50.00"), decimal.RequireFromString("1200.00"), decimal.RequireFromString("4.50"), 2, created,
		))

	p, err := repo.GetForUpdate(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != 11 || p.Stats.TotalBookings != 4 || p.Stats.CompletedBookings != 2 {
		t.Errorf("unexpected provider: %+v", p)
	}
	if !p.Stats.TotalEarnings.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("expected earnings 1200, got %s", p.Stats.TotalEarnings)
	}
	checkExpectations(t, mock)
}

func TestProviderRepository_SaveStatsMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewProviderRepository(mock)

	mock.ExpectExec(`UPDATE service_providers`).
		WithArgs(append([]any{int64(99)}, anyArgs(7)...)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SaveStats(context.Background(), 99, model.ProviderStats{}); err == nil {
		t.Error("expected error for missing provider")
	}
	checkExpectations(t, mock)
}

func TestReviewRepository_CreateTwice(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery(`INSERT INTO reviews`).
		WithArgs(append([]any{int64(1)}, anyArgs(10)...)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}))

	err := repo.Create(context.Background(), &model.Review{BookingID: 1, OverallRating: decimal.NewFromInt(5)})
	if !errors.Is(err, ErrDuplicateReview) {
		t.Errorf("expected ErrDuplicateReview, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestUserRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	cols := []string{"id", "name", "email", "phone", "profile_image_url", "role", "telegram_id", "created_at"}
	mock.ExpectQuery(`FROM users`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(int64(9), "Asha", nil, "9876543210", nil, model.RoleCustomer, nil, created))
	mock.ExpectQuery(`FROM users`).
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows(cols))

	user, err := repo.GetByID(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "Asha" || user.Role != model.RoleCustomer || user.Email != nil {
		t.Errorf("unexpected user: %+v", user)
	}

	missing, err := repo.GetByID(context.Background(), 10)
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing user, got (%v, %v)", missing, err)
	}
	checkExpectations(t, mock)
}

func TestPgStore_WithinTxCommits(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE services SET times_booked`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.Offerings.IncrementTimesBooked(ctx, 5)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkExpectations(t, mock)
}

func TestPgStore_WithinTxRollsBack(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE services SET times_booked`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		if err := repos.Offerings.IncrementTimesBooked(ctx, 5); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected the callback error, got %v", err)
	}
	checkExpectations(t, mock)
}
