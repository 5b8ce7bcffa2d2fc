package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement outcomes.
type CheckoutMetrics struct {
	ordersCreated        *prometheus.CounterVec
	checkoutFailures     *prometheus.CounterVec
	reservationConflicts prometheus.Counter
	gatewayInitiate      *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, by payment method.",
	}, []string{"payment_method"})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout attempts that did not produce an order, by reason.",
	}, []string{"reason"})
	reservationConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_conflicts_total",
		Help: "Checkout attempts rejected for insufficient stock.",
	})
	gatewayInitiate := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_initiate_duration_seconds",
		Help:    "Duration of gateway session initiation calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	reg.MustRegister(ordersCreated, checkoutFailures, reservationConflicts, gatewayInitiate)
	return &CheckoutMetrics{
		ordersCreated:        ordersCreated,
		checkoutFailures:     checkoutFailures,
		reservationConflicts: reservationConflicts,
		gatewayInitiate:      gatewayInitiate,
	}
}

// IncOrderCreated increments the created counter for the payment method.
func (c *CheckoutMetrics) IncOrderCreated(method string) {
	if c == nil || c.ordersCreated == nil {
		return
	}
	c.ordersCreated.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncCheckoutFailure increments the failure counter for the given reason.
func (c *CheckoutMetrics) IncCheckoutFailure(reason string) {
	if c == nil || c.checkoutFailures == nil {
		return
	}
	c.checkoutFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncReservationConflict counts an out-of-stock rejection.
func (c *CheckoutMetrics) IncReservationConflict() {
	if c == nil || c.reservationConflicts == nil {
		return
	}
	c.reservationConflicts.Inc()
}

// ObserveGatewayInitiate records the duration of a gateway initiation call.
func (c *CheckoutMetrics) ObserveGatewayInitiate(provider string, duration time.Duration) {
	if c == nil || c.gatewayInitiate == nil {
		return
	}
	c.gatewayInitiate.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
