package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DispatchJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_jobs_total", Help: "Dispatch jobs started"},
	)
	DispatchRecipientsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_recipients_sent_total", Help: "Recipients delivered"},
	)
	DispatchRecipientsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_recipients_failed_total", Help: "Recipients failed"},
	)
	DispatchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_retries_total", Help: "Gateway retries performed"},
	)
	DispatchJobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_job_duration_seconds",
			Help:    "Time spent running a dispatch job",
			Buckets: prometheus.DefBuckets,
		},
	)

	GatewayRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Notification gateway call duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	TemplateCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "template_cache_hits_total", Help: "Template cache hits"},
	)
	TemplateCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "template_cache_misses_total", Help: "Template cache misses"},
	)

	ReportEventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "report_events_published_total", Help: "Dispatch report events published"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration,
		DispatchJobsTotal, DispatchRecipientsSent, DispatchRecipientsFailed,
		DispatchRetries, DispatchJobDuration, GatewayRequestDuration,
		TemplateCacheHits, TemplateCacheMisses, ReportEventsPublished,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
