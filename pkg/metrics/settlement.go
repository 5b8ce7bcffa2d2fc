package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics records gateway callback and notification outcomes.
type SettlementMetrics struct {
	callbacks *prometheus.CounterVec
	smsSent   *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Gateway callbacks processed, by provider and outcome.",
	}, []string{"provider", "outcome"})
	smsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_dispatched_total",
		Help: "Outbound SMS attempts, by status.",
	}, []string{"status"})
	reg.MustRegister(callbacks, smsSent)
	return &SettlementMetrics{callbacks: callbacks, smsSent: smsSent}
}

// IncCallback counts a processed callback for the provider and outcome.
func (s *SettlementMetrics) IncCallback(provider, outcome string) {
	if s == nil || s.callbacks == nil {
		return
	}
	s.callbacks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncSMS counts an outbound SMS attempt with its final status.
func (s *SettlementMetrics) IncSMS(status string) {
	if s == nil || s.smsSent == nil {
		return
	}
	s.smsSent.WithLabelValues(normalizeLabel(status)).Inc()
}
