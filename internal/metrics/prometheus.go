package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayard_query_total",
			Help: "Total queries processed, by branch and status",
		},
		[]string{"branch", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bayard_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"branch"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bayard_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	RateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bayard_rate_limit_rejections_total",
			Help: "Requests denied by the rate limiter",
		},
	)

	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayard_auth_rejections_total",
			Help: "Requests rejected before dispatch, by reason",
		},
		[]string{"reason"},
	)

	RetrievalDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bayard_retrieval_documents",
			Help:    "Documents returned per retrieval call",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	PersistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayard_persistence_failures_total",
			Help: "Swallowed persistence failures, by store",
		},
		[]string{"store"},
	)

	KeysIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bayard_api_keys_issued_total",
			Help: "API keys issued",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(AuthRejections)
	prometheus.MustRegister(RetrievalDocuments)
	prometheus.MustRegister(PersistenceFailures)
	prometheus.MustRegister(KeysIssued)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
