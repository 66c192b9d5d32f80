package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "khabar"

// Registry holds every collector exposed at /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	SSEClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sse",
		Name:      "clients",
		Help:      "Number of connected SSE clients.",
	})

	SSEWriteFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sse",
		Name:      "write_failures_total",
		Help:      "SSE writes that failed and dropped the client.",
	})

	RSSPasses = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rss",
		Name:      "passes_total",
		Help:      "RSS passes by result.",
	}, []string{"result"})

	RSSItemsPublished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rss",
		Name:      "items_published_total",
		Help:      "RSS items published by target.",
	}, []string{"target"})

	CarScrapes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scraper",
		Name:      "runs_total",
		Help:      "Car price scrapes by result.",
	}, []string{"result"})

	BlockedLogins = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "blocked_logins_total",
		Help:      "Login identifiers blocked after repeated failures.",
	})

	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
