package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records reservation calls made while checking out.
type CheckoutMetrics struct {
	reservations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a recorder that drops everything.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "festicart_reservations_total",
		Help: "Reservation calls by payment method and result.",
	}, []string{"payment", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "festicart_checkout_duration_seconds",
		Help:    "Duration of whole checkouts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(reservations, duration)
	return &CheckoutMetrics{
		reservations: reservations,
		duration:     duration,
	}
}

func (c *CheckoutMetrics) IncReservation(payment string, ok bool) {
	if c == nil || c.reservations == nil {
		return
	}
	c.reservations.WithLabelValues(normalizeLabel(payment), result(ok)).Inc()
}

func (c *CheckoutMetrics) ObserveCheckout(duration time.Duration, ok bool) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(result(ok)).Observe(duration.Seconds())
}

// ScanMetrics counts gate scan outcomes.
type ScanMetrics struct {
	outcomes   *prometheus.CounterVec
	validation *prometheus.HistogramVec
}

func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	if reg == nil {
		return &ScanMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "festicart_scan_outcomes_total",
		Help: "Scanned codes by payload kind and outcome.",
	}, []string{"kind", "outcome"})
	validation := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "festicart_scan_validation_seconds",
		Help:    "Duration of remote ticket validation calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(outcomes, validation)
	return &ScanMetrics{
		outcomes:   outcomes,
		validation: validation,
	}
}

func (s *ScanMetrics) IncOutcome(kind, outcome string) {
	if s == nil || s.outcomes == nil {
		return
	}
	s.outcomes.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (s *ScanMetrics) ObserveValidation(kind string, duration time.Duration) {
	if s == nil || s.validation == nil {
		return
	}
	s.validation.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
