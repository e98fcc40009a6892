package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/service"
	"go.uber.org/zap"
)

// BookingAPI is the booking service as the handlers see it.
type BookingAPI interface {
	CreateBooking(ctx context.Context, customerID int64, in service.CreateBookingInput) (*model.Booking, error)
	UpdateStatus(ctx context.Context, bookingID, actingUserID int64, in service.UpdateStatusInput) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID int64, actor service.Actor) (*model.Booking, error)
	GetBookingByNumber(ctx context.Context, number string, actor service.Actor) (*model.Booking, error)
	ListBookings(ctx context.Context, actor service.Actor, f service.ListFilter) (*service.BookingPage, error)
	RecentBookings(ctx context.Context, actor service.Actor, limit int) ([]*model.Booking, error)
}

// ReviewAPI adds customer reviews.
type ReviewAPI interface {
	AddReview(ctx context.Context, bookingID, customerID int64, in service.ReviewInput) (*model.Review, error)
}

// PaymentAPI covers gateway checkout for a booking.
type PaymentAPI interface {
	CreateOrder(ctx context.Context, customerID, bookingID int64) (*service.OrderResponse, error)
	VerifyPayment(ctx context.Context, in service.VerifyInput) (*model.Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID int64, actor service.Actor) (*model.Payment, error)
}

// Handler binds requests, calls the services and writes the response envelope.
type Handler struct {
	bookings BookingAPI
	reviews  ReviewAPI
	payments PaymentAPI
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler wires the services into gin handlers. now supplies the date
// used to reject bookings scheduled for today or earlier.
func NewHandler(bookings BookingAPI, reviews ReviewAPI, payments PaymentAPI, now func() time.Time, logger *zap.Logger) *Handler {
	return &Handler{
		bookings: bookings,
		reviews:  reviews,
		payments: payments,
		now:      now,
		logger:   logger,
	}
}

// CreateBooking books a provider for the calling customer.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	in, err := req.toInput(h.now())
	if err != nil {
		abortWith(c, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), actorFrom(c).UserID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, "Booking created successfully", booking)
}

// MyBookings lists the caller's bookings: as customer, or as provider for provider accounts.
func (h *Handler) MyBookings(c *gin.Context) {
	actor := actorFrom(c)
	if actor.IsAdmin() {
		actor.Role = model.RoleCustomer
	}
	h.listBookings(c, actor)
}

// RecentBookings feeds the dashboard: the caller's latest bookings, PENDING first.
func (h *Handler) RecentBookings(c *gin.Context) {
	var q recentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid query: "+err.Error())
		return
	}

	actor := actorFrom(c)
	if actor.IsAdmin() {
		actor.Role = model.RoleCustomer
	}

	bookings, err := h.bookings.RecentBookings(c.Request.Context(), actor, q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "", bookings)
}

// AllBookings is the admin listing across every customer and provider.
func (h *Handler) AllBookings(c *gin.Context) {
	h.listBookings(c, actorFrom(c))
}

func (h *Handler) listBookings(c *gin.Context, actor service.Actor) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid query: "+err.Error())
		return
	}
	filter, err := q.toFilter()
	if err != nil {
		abortWith(c, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.bookings.ListBookings(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "", page)
}

// GetBooking returns one booking by id. Bookings the caller cannot see are 404.
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "", booking)
}

// GetBookingByNumber looks a booking up by its HL number.
func (h *Handler) GetBookingByNumber(c *gin.Context) {
	booking, err := h.bookings.GetBookingByNumber(c.Request.Context(), c.Param("number"), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "", booking)
}

// UpdateStatus moves a booking through its lifecycle.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		abortWith(c, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.bookings.UpdateStatus(c.Request.Context(), id, actorFrom(c).UserID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "Booking status updated", booking)
}

// AddReview records the customer's review of a completed booking.
func (h *Handler) AddReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req addReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	review, err := h.reviews.AddReview(c.Request.Context(), id, actorFrom(c).UserID, req.toInput())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, "Review added successfully", review)
}

// CreateOrder opens a gateway order for the booking's amount.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.payments.CreateOrder(c.Request.Context(), actorFrom(c).UserID, req.BookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "Payment order created", order)
}

// VerifyPayment handles the checkout callback.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	payment, err := h.payments.VerifyPayment(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "Payment verified successfully", payment)
}

// PaymentByBooking returns the latest payment of a booking visible to the caller.
func (h *Handler) PaymentByBooking(c *gin.Context) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}

	payment, err := h.payments.GetPaymentByBooking(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "", payment)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortWith(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}
