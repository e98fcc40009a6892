package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hirelink/booking-core/internal/auth"
	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/obs"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries what NewRouter needs. DB backs /health and may be nil.
type RouterConfig struct {
	ServiceName string
	Tokens      *auth.Tokens
	Handler     *Handler
	DB          Pinger
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with middleware, health, metrics and the /api routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware())

	r.GET("/health", healthHandler(cfg.DB))
	r.GET("/metrics", gin.WrapH(obs.Handler()))

	h := cfg.Handler
	api := r.Group("/api", AuthMiddleware(cfg.Tokens))

	bookings := api.Group("/bookings")
	{
		bookings.POST("",
			RequireRole("Only customers can create bookings", model.RoleCustomer),
			h.CreateBooking)
		bookings.GET("/my-bookings", h.MyBookings)
		bookings.GET("/recent", h.RecentBookings)
		bookings.GET("/all",
			RequireRole("Admin access required", model.RoleAdmin),
			h.AllBookings)
		bookings.GET("/number/:number", h.GetBookingByNumber)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id/status", h.UpdateStatus)
		bookings.POST("/:id/review",
			RequireRole("Only customers can add reviews", model.RoleCustomer),
			h.AddReview)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/create-order", h.CreateOrder)
		payments.POST("/verify", h.VerifyPayment)
		payments.GET("/booking/:bookingId", h.PaymentByBooking)
	}

	return r
}

func healthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}
