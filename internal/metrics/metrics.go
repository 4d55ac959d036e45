// Package metrics defines Sentra's Prometheus collectors. Collectors are
// registered with the default registry at init and exposed by the server at
// /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/sentra/internal/analysis"
)

var (
	// RequestsTotal counts HTTP requests by method, route, and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// RequestDuration tracks handler latency per route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentra_request_duration_seconds",
		Help:    "Time spent serving HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// AnalysisDuration tracks analyzer latency.
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentra_analysis_duration_seconds",
		Help:    "Time spent in one analyzer.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"kind", "language"})

	// AnalysisScore tracks the distribution of analyzer scores.
	AnalysisScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentra_analysis_score",
		Help:    "Scores produced by each analyzer.",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	}, []string{"kind"})

	// FindingsTotal counts findings by analyzer and severity.
	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_findings_total",
		Help: "Findings reported by analyzers.",
	}, []string{"kind", "severity"})

	// SourceBytes tracks the size of submitted sources.
	SourceBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentra_source_bytes",
		Help:    "Size of submitted source text in bytes.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})

	// AgentDuration tracks agent call latency per provider.
	AgentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentra_agent_duration_seconds",
		Help:    "Time spent waiting on the agent.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"provider"})

	// AgentFallbacks counts replies replaced by the fallback message.
	AgentFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_agent_fallbacks_total",
		Help: "Agent calls answered with the fallback message.",
	}, []string{"provider", "reason"})

	// AgentAvailable tracks whether the agent provider is reachable.
	AgentAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentra_agent_available",
		Help: "Whether the agent provider is available (1) or not (0).",
	}, []string{"provider"})

	// ActiveSessions tracks chat sessions held in memory.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentra_active_sessions",
		Help: "Chat sessions currently held in memory.",
	})

	// WebSocketConnections tracks open websocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentra_websocket_connections",
		Help: "Open websocket connections.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RouteLabel returns the mux pattern that served r, which keeps path labels
// bounded. Requests no route matched are labelled "unmatched".
func RouteLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

// AnalysisObserver records analyzer runs.
type AnalysisObserver struct{}

var _ analysis.Observer = AnalysisObserver{}

// ObserveAnalysis implements analysis.Observer.
func (AnalysisObserver) ObserveAnalysis(kind analysis.Kind, lang analysis.Language, score int, findings []analysis.Finding, duration time.Duration) {
	AnalysisDuration.WithLabelValues(string(kind), string(lang)).Observe(duration.Seconds())
	AnalysisScore.WithLabelValues(string(kind)).Observe(float64(score))
	for _, f := range findings {
		FindingsTotal.WithLabelValues(string(kind), string(f.Severity)).Inc()
	}
}

// SetAvailable records the availability of an agent provider.
func SetAvailable(provider string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	AgentAvailable.WithLabelValues(provider).Set(v)
}
