package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lifecycle counters exposed on /metrics. Policy rejections (flagged,
// already-patted, rate-limited) are counted too, since they are expected
// outcomes worth watching, not faults.
var (
	WorriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyre_worries_created_total",
		Help: "Worries accepted and stored.",
	})

	WorriesBurned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyre_worries_burned_total",
		Help: "Manual burns that won the conditional transition.",
	})

	PatsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyre_pats_registered_total",
		Help: "First-time pat registrations that incremented a counter.",
	})

	ContentFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyre_content_flagged_total",
		Help: "Submissions rejected by the sensitive-content screen.",
	})

	WorriesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyre_worries_purged_total",
		Help: "Expired worries removed by sweeps.",
	})

	RequestsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyre_requests_rate_limited_total",
		Help: "Requests rejected by the fixed-window rate limiter.",
	})
)
