// Package metrics exposes the gateway's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_readings_accepted_total",
		Help: "Telemetry readings accepted and stored.",
	})
	ReadingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_readings_rejected_total",
		Help: "Telemetry readings rejected before any side effect.",
	}, []string{"reason"})
	RisksFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_risks_fired_total",
		Help: "Risk events produced by threshold classification.",
	}, []string{"level"})
	AdvisoriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_advisories_created_total",
		Help: "Advisories recorded from supervisory breaches.",
	})
	PositionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_crew_positions_accepted_total",
		Help: "Crew position reports accepted.",
	})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_events_published_total",
		Help: "Events handed to the broker, by event name.",
	}, []string{"event"})
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_events_dropped_total",
		Help: "Deliveries dropped because a subscriber buffer was full.",
	})
	ActiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_stream_subscribers",
		Help: "Currently registered stream subscribers.",
	})
	RouteFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_route_fallbacks_total",
		Help: "Route lookups served by the synthetic fallback.",
	})
)
