package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LocationTierAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_tier_attempts_total",
			Help: "Location tier attempts by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	LocationResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_resolutions_total",
			Help: "Completed location resolutions by the tier that produced the fix",
		},
		[]string{"tier"},
	)

	SessionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_mutations_total",
			Help: "Session updates and clears",
		},
		[]string{"op"},
	)

	SessionPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_persist_failures_total",
			Help: "Failed writes and removals against durable session storage",
		},
		[]string{"op"},
	)

	SessionAuthenticated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_authenticated",
			Help: "1 while the session is authenticated",
		},
	)

	AuthOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Sign-in, sign-up and sign-out attempts by result",
		},
		[]string{"op", "result"},
	)

	HazardReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_reports_total",
			Help: "Hazard reports submitted by hazard type",
		},
		[]string{"type"},
	)

	GeocodeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "geocode_request_duration_seconds",
			Help: "Duration of address search and reverse geocoding requests",
		},
		[]string{"op"},
	)
)
