package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/hirelink/booking-core/internal/events"
	"github.com/hirelink/booking-core/internal/gateway"
	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

// memStore keeps every table in maps. WithinTx snapshots the maps and restores
// them when fn fails, which is enough transaction semantics for single-goroutine tests.
type memStore struct {
	clock *fakeClock

	users     map[int64]*model.User
	providers map[int64]*model.Provider
	offerings map[int64]*model.Offering
	bookings  map[int64]*model.Booking
	payments  map[int64]*model.Payment
	reviews   map[int64]*model.Review
	nextID    int64

	// beforeBookingUpdate runs ahead of the version check, simulating a concurrent writer.
	beforeBookingUpdate func(stored *model.Booking)
	// Non-nil errors make the matching write fail without changing anything.
	bookingUpdateErr error
	saveStatsErr     error
}

func newMemStore(clock *fakeClock) *memStore {
	return &memStore{
		clock:     clock,
		users:     make(map[int64]*model.User),
		providers: make(map[int64]*model.Provider),
		offerings: make(map[int64]*model.Offering),
		bookings:  make(map[int64]*model.Booking),
		payments:  make(map[int64]*model.Payment),
		reviews:   make(map[int64]*model.Review),
		nextID:    1000,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Repositories() repository.Repositories {
	return repository.Repositories{
		Bookings:  memBookings{s},
		Payments:  memPayments{s},
		Providers: memProviders{s},
		Offerings: memOfferings{s},
		Reviews:   memReviews{s},
		Users:     memUsers{s},
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	snap := s.snapshot()
	if err := fn(ctx, s.Repositories()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	users     map[int64]*model.User
	providers map[int64]*model.Provider
	offerings map[int64]*model.Offering
	bookings  map[int64]*model.Booking
	payments  map[int64]*model.Payment
	reviews   map[int64]*model.Review
	nextID    int64
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		users:     copyMap(s.users),
		providers: copyMap(s.providers),
		offerings: copyMap(s.offerings),
		bookings:  copyMap(s.bookings),
		payments:  copyMap(s.payments),
		reviews:   copyMap(s.reviews),
		nextID:    s.nextID,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.users = snap.users
	s.providers = snap.providers
	s.offerings = snap.offerings
	s.bookings = snap.bookings
	s.payments = snap.payments
	s.reviews = snap.reviews
	s.nextID = snap.nextID
}

// copyMap copies values one level deep. Stored rows are replaced, never mutated in place.
func copyMap[T any](m map[int64]*T) map[int64]*T {
	out := make(map[int64]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.Customer, c.Provider, c.Offering = nil, nil, nil
	return &c
}

type memBookings struct{ s *memStore }

func (r memBookings) Create(_ context.Context, b *model.Booking) error {
	for _, existing := range r.s.bookings {
		if existing.Number == b.Number {
			return repository.ErrDuplicateNumber
		}
	}
	now := r.s.clock.Now()
	b.ID = r.s.id()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now
	r.s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r memBookings) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return cloneBooking(b), nil
}

func (r memBookings) GetByNumber(_ context.Context, number string) (*model.Booking, error) {
	for _, b := range r.s.bookings {
		if b.Number == number {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (r memBookings) List(_ context.Context, f repository.BookingFilter) ([]*model.Booking, int, error) {
	var matched []*model.Booking
	for _, b := range r.s.bookings {
		if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
			continue
		}
		if f.ProviderID != nil && b.ProviderID != *f.ProviderID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		matched = append(matched, cloneBooking(b))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if f.Offset >= total {
		return []*model.Booking{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r memBookings) Recent(_ context.Context, f repository.BookingFilter) ([]*model.Booking, error) {
	var matched []*model.Booking
	for _, b := range r.s.bookings {
		if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
			continue
		}
		if f.ProviderID != nil && b.ProviderID != *f.ProviderID {
			continue
		}
		matched = append(matched, cloneBooking(b))
	}
	sort.Slice(matched, func(i, j int) bool {
		pi := matched[i].Status == model.BookingStatusPending
		pj := matched[j].Status == model.BookingStatusPending
		if pi != pj {
			return pi
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (r memBookings) ExistsActive(_ context.Context, customerID, offeringID int64) (bool, error) {
	for _, b := range r.s.bookings {
		if b.CustomerID != customerID || b.OfferingID != offeringID {
			continue
		}
		for _, st := range model.ActiveBookingStatuses {
			if b.Status == st {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r memBookings) Update(_ context.Context, b *model.Booking) error {
	stored, ok := r.s.bookings[b.ID]
	if !ok {
		return fmt.Errorf("booking %d not found", b.ID)
	}
	if r.s.bookingUpdateErr != nil {
		return r.s.bookingUpdateErr
	}
	if r.s.beforeBookingUpdate != nil {
		r.s.beforeBookingUpdate(stored)
	}
	if stored.Version != b.Version {
		return repository.ErrVersionConflict
	}
	b.Version++
	b.UpdatedAt = r.s.clock.Now()
	r.s.bookings[b.ID] = cloneBooking(b)
	return nil
}

type memPayments struct{ s *memStore }

func (r memPayments) Create(_ context.Context, p *model.Payment) error {
	for _, existing := range r.s.payments {
		if existing.Number == p.Number || existing.GatewayOrderID == p.GatewayOrderID {
			return repository.ErrDuplicateNumber
		}
	}
	p.ID = r.s.id()
	p.InitiatedAt = r.s.clock.Now()
	c := *p
	r.s.payments[p.ID] = &c
	return nil
}

func (r memPayments) GetByOrderID(_ context.Context, orderID string) (*model.Payment, error) {
	for _, p := range r.s.payments {
		if p.GatewayOrderID == orderID {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (r memPayments) LatestByBooking(_ context.Context, bookingID int64) (*model.Payment, error) {
	var latest *model.Payment
	for _, p := range r.s.payments {
		if p.BookingID != bookingID {
			continue
		}
		if latest == nil || p.InitiatedAt.After(latest.InitiatedAt) ||
			(p.InitiatedAt.Equal(latest.InitiatedAt) && p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (r memPayments) Update(_ context.Context, p *model.Payment) error {
	if _, ok := r.s.payments[p.ID]; !ok {
		return fmt.Errorf("payment %d not found", p.ID)
	}
	if p.Status == model.PaymentStatusCompleted {
		for _, other := range r.s.payments {
			if other.ID != p.ID && other.BookingID == p.BookingID && other.Status == model.PaymentStatusCompleted {
				return repository.ErrAlreadyCompleted
			}
		}
	}
	c := *p
	r.s.payments[p.ID] = &c
	return nil
}

func (r memPayments) ExpirePending(_ context.Context, initiatedBefore time.Time) (int64, error) {
	var n int64
	for _, p := range r.s.payments {
		if p.Status == model.PaymentStatusPending && p.InitiatedAt.Before(initiatedBefore) {
			p.Status = model.PaymentStatusFailed
			n++
		}
	}
	return n, nil
}

type memProviders struct{ s *memStore }

func (r memProviders) GetByID(_ context.Context, id int64) (*model.Provider, error) {
	p, ok := r.s.providers[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r memProviders) GetByUserID(_ context.Context, userID int64) (*model.Provider, error) {
	for _, p := range r.s.providers {
		if p.UserID == userID {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (r memProviders) GetForUpdate(ctx context.Context, id int64) (*model.Provider, error) {
	return r.GetByID(ctx, id)
}

func (r memProviders) SaveStats(_ context.Context, id int64, stats model.ProviderStats) error {
	if r.s.saveStatsErr != nil {
		return r.s.saveStatsErr
	}
	p, ok := r.s.providers[id]
	if !ok {
		return fmt.Errorf("provider %d not found", id)
	}
	c := *p
	c.Stats = stats
	r.s.providers[id] = &c
	return nil
}

type memOfferings struct{ s *memStore }

func (r memOfferings) GetByID(_ context.Context, id int64) (*model.Offering, error) {
	o, ok := r.s.offerings[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (r memOfferings) IncrementTimesBooked(_ context.Context, id int64) error {
	o, ok := r.s.offerings[id]
	if !ok {
		return fmt.Errorf("offering %d not found", id)
	}
	c := *o
	c.TimesBooked++
	r.s.offerings[id] = &c
	return nil
}

type memReviews struct{ s *memStore }

func (r memReviews) Create(_ context.Context, rv *model.Review) error {
	for _, existing := range r.s.reviews {
		if existing.BookingID == rv.BookingID {
			return repository.ErrDuplicateReview
		}
	}
	rv.ID = r.s.id()
	rv.CreatedAt = r.s.clock.Now()
	c := *rv
	r.s.reviews[rv.ID] = &c
	return nil
}

func (r memReviews) ExistsByBooking(_ context.Context, bookingID int64) (bool, error) {
	for _, rv := range r.s.reviews {
		if rv.BookingID == bookingID {
			return true, nil
		}
	}
	return false, nil
}

func (r memReviews) RatingSummary(_ context.Context, providerID int64) (decimal.Decimal, int, error) {
	sum := decimal.Zero
	count := 0
	for _, rv := range r.s.reviews {
		if rv.ProviderID == providerID {
			sum = sum.Add(rv.OverallRating)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero, 0, nil
	}
	return sum.Div(decimal.NewFromInt(int64(count))), count, nil
}

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// seqNumbers hands out queued booking numbers first, then sequential ones.
type seqNumbers struct {
	bookingQueue []string
	booking      int
	payment      int
	mock         int
}

func (n *seqNumbers) BookingNumber(now time.Time) string {
	if len(n.bookingQueue) > 0 {
		next := n.bookingQueue[0]
		n.bookingQueue = n.bookingQueue[1:]
		return next
	}
	n.booking++
	return fmt.Sprintf("HL%s%05d", now.Format("20060102"), n.booking)
}

func (n *seqNumbers) PaymentNumber(now time.Time) string {
	n.payment++
	return fmt.Sprintf("PAY%s%06d", now.Format("20060102"), n.payment)
}

func (n *seqNumbers) MockOrderID(now time.Time) string {
	n.mock++
	return fmt.Sprintf("%s%s_%04d", gateway.MockOrderPrefix, now.Format("20060102150405"), n.mock)
}

type stubGateway struct {
	mock     bool
	orderID  string
	err      error
	secret   string
	calls    int
	receipts []string
	amounts  []int64
}

func (g *stubGateway) CreateOrder(_ context.Context, amountMinor int64, _ string, receipt string) (string, error) {
	g.calls++
	g.receipts = append(g.receipts, receipt)
	g.amounts = append(g.amounts, amountMinor)
	if g.err != nil {
		return "", g.err
	}
	return g.orderID, nil
}

func (g *stubGateway) KeyID() string {
	if g.mock {
		return gateway.MockKeyID
	}
	return "rzp_test_key"
}

func (g *stubGateway) Mock() bool { return g.mock }

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.ValidSignature(g.secret, orderID, paymentID, signature)
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

const (
	customerID      int64 = 1
	providerUserID  int64 = 2
	adminID         int64 = 3
	otherCustomerID int64 = 4
	otherProvUserID int64 = 5

	providerID      int64 = 10
	otherProviderID int64 = 11

	offeringID      int64 = 20
	otherOfferingID int64 = 21
)

type fixture struct {
	store     *memStore
	clock     *fakeClock
	numbers   *seqNumbers
	gateway   *stubGateway
	publisher *recordingPublisher

	bookings *BookingService
	payments *PaymentService
	reviews  *ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	store := newMemStore(clock)
	numbers := &seqNumbers{}
	gw := &stubGateway{orderID: "order_Nx1", secret: "test_secret"}
	pub := &recordingPublisher{}
	logger := zaptest.NewLogger(t)

	email := "asha@example.com"
	store.users[customerID] = &model.User{ID: customerID, Name: "Asha", Email: &email, Phone: "9000000001", Role: model.RoleCustomer}
	store.users[providerUserID] = &model.User{ID: providerUserID, Name: "Ravi", Phone: "9000000002", Role: model.RoleProvider}
	store.users[adminID] = &model.User{ID: adminID, Name: "Ops", Phone: "9000000003", Role: model.RoleAdmin}
	store.users[otherCustomerID] = &model.User{ID: otherCustomerID, Name: "Meera", Phone: "9000000004", Role: model.RoleCustomer}
	store.users[otherProvUserID] = &model.User{ID: otherProvUserID, Name: "Kiran", Phone: "9000000005", Role: model.RoleProvider}

	store.providers[providerID] = &model.Provider{ID: providerID, UserID: providerUserID, BusinessName: "Ravi Plumbing"}
	store.providers[otherProviderID] = &model.Provider{ID: otherProviderID, UserID: otherProvUserID, BusinessName: "Kiran Electric"}

	store.offerings[offeringID] = &model.Offering{ID: offeringID, ProviderID: providerID, Name: "Pipe repair", BasePrice: decimal.RequireFromString("500.00"), PriceType: "FIXED", IsActive: true}
	store.offerings[otherOfferingID] = &model.Offering{ID: otherOfferingID, ProviderID: otherProviderID, Name: "Wiring", BasePrice: decimal.RequireFromString("750.00"), PriceType: "FIXED", IsActive: true}

	return &fixture{
		store:     store,
		clock:     clock,
		numbers:   numbers,
		gateway:   gw,
		publisher: pub,
		bookings:  NewBookingService(store, clock, numbers, pub, logger),
		payments:  NewPaymentService(store, gw, clock, numbers, pub, "INR", logger),
		reviews:   NewReviewService(store, clock, pub, logger),
	}
}

// seedBooking stores a booking for customerID with providerID/offeringID in the given state.
func (f *fixture) seedBooking(t *testing.T, status model.BookingStatus, mutate ...func(b *model.Booking)) *model.Booking {
	t.Helper()

	b := &model.Booking{
		CustomerID:      customerID,
		ProviderID:      providerID,
		OfferingID:      offeringID,
		ScheduledDate:   f.clock.Now().AddDate(0, 0, 2),
		ScheduledTime:   "10:30",
		Address:         "12 MG Road",
		Pincode:         "560001",
		Urgency:         model.UrgencyMedium,
		EstimatedAmount: decimal.RequireFromString("500.00"),
		Status:          status,
		PaymentStatus:   model.BookingUnpaid,
	}
	for _, m := range mutate {
		m(b)
	}
	b.Number = f.numbers.BookingNumber(f.clock.Now())

	if err := (memBookings{f.store}).Create(context.Background(), b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func (f *fixture) storedBooking(t *testing.T, id int64) *model.Booking {
	t.Helper()
	b, ok := f.store.bookings[id]
	if !ok {
		t.Fatalf("booking %d not stored", id)
	}
	return b
}

func (f *fixture) stats(id int64) model.ProviderStats {
	return f.store.providers[id].Stats
}

func validBookingInput(f *fixture) CreateBookingInput {
	return CreateBookingInput{
		OfferingID:    offeringID,
		ProviderID:    providerID,
		ScheduledDate: f.clock.Now().AddDate(0, 0, 3),
		ScheduledTime: "14:00",
		Address:       "12 MG Road",
		Pincode:       "560001",
		IssueImages:   []string{"https://img.example.com/leak.jpg"},
	}
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
}

func assertMessage(t *testing.T, err error, want string) {
	t.Helper()
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *service.Error, got %T: %v", err, err)
	}
	if svcErr.Message != want {
		t.Errorf("message = %q, want %q", svcErr.Message, want)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}
