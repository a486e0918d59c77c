// Package metrics registers the API's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "novel_sessions_created_total",
		Help: "Total number of sessions started.",
	})

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_transitions_total",
			Help: "Narrative operations applied, by operation and whether state changed.",
		},
		[]string{"operation", "changed"},
	)

	ChoiceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_choice_errors_total",
			Help: "Rejected choice selections by reason.",
		},
		[]string{"reason"},
	)

	BattleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_battle_outcomes_total",
			Help: "Completed battles by scene and outcome.",
		},
		[]string{"scene", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Changed formats a bool label value.
func Changed(changed bool) string {
	if changed {
		return "true"
	}
	return "false"
}
