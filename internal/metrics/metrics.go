package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinfolk_tool_calls_total",
			Help: "Tool calls executed, labeled by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinfolk_model_requests_total",
			Help: "Model backend requests, labeled by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kinfolk_model_request_seconds",
			Help:    "Model backend request latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
		},
		[]string{"provider"},
	)

	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinfolk_chat_turns_total",
			Help: "Completed chat turns, labeled by how they ended.",
		},
		[]string{"outcome"},
	)

	ChatJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinfolk_chat_jobs_total",
			Help: "Async chat jobs processed by workers, labeled by status.",
		},
		[]string{"status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinfolk_http_requests_total",
			Help: "HTTP requests served, labeled by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
)
