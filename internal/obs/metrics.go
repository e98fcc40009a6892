package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	bookingsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total number of bookings created",
		},
	)

	bookingTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status transitions by outcome",
		},
		[]string{"from", "to", "result"},
	)

	paymentOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_orders_total",
			Help: "Payment orders created, by gateway mode",
		},
		[]string{"mode"},
	)

	paymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verifications by result",
		},
		[]string{"result"},
	)

	paymentsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_expired_total",
			Help: "Pending payments failed by the expiry sweep",
		},
	)

	reviewsAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reviews_added_total",
			Help: "Total number of reviews added",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(bookingsCreatedTotal)
	prometheus.MustRegister(bookingTransitionsTotal)
	prometheus.MustRegister(paymentOrdersTotal)
	prometheus.MustRegister(paymentVerificationsTotal)
	prometheus.MustRegister(paymentsExpiredTotal)
	prometheus.MustRegister(reviewsAddedTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, endpoint, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func RecordBookingCreated() {
	bookingsCreatedTotal.Inc()
}

// RecordTransition counts an attempted status change; result is "ok" or "rejected".
func RecordTransition(from, to, result string) {
	bookingTransitionsTotal.WithLabelValues(from, to, result).Inc()
}

// RecordPaymentOrder counts a created order; mode is "live" or "mock".
func RecordPaymentOrder(mode string) {
	paymentOrdersTotal.WithLabelValues(mode).Inc()
}

func RecordPaymentVerification(result string) {
	paymentVerificationsTotal.WithLabelValues(result).Inc()
}

func RecordPaymentsExpired(n int64) {
	paymentsExpiredTotal.Add(float64(n))
}

func RecordReviewAdded() {
	reviewsAddedTotal.Inc()
}
