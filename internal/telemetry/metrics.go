package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Payments created, by initial status.",
	}, []string{"status"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Gateway webhook events received, by processing result.",
	}, []string{"result"})

	PricingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_failures_total",
		Help: "Cart pricing attempts rejected, by reason.",
	}, []string{"reason"})
)
