// Package monitoring provides the Prometheus metrics for DASHBOARD-CORE.
//
// Usage:
//
//  1. Setup metrics on the router:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Record custom metrics where the work happens:
//
//	start := time.Now()
//	// ... repository call ...
//	monitoring.RecordRepoOperation("save", time.Since(start), true)
//
//	monitoring.RecordStoreOperation("get", "hit")
//	monitoring.RecordFilterFallback("sort")
//
// Available Metrics:
//   - dashboard_core_http_requests_total{method, endpoint, status_code}
//   - dashboard_core_http_request_duration_seconds{method, endpoint}
//   - dashboard_core_store_operations_total{operation, result}
//   - dashboard_core_repo_operations_total{operation, status}
//   - dashboard_core_repo_operation_duration_seconds{operation}
//   - dashboard_core_filter_fallbacks_total{step}
//   - dashboard_core_layout_rejections_total{reason}
//   - dashboard_core_catalog_reloads_total{result}
//   - dashboard_core_edit_sessions_active
//   - dashboard_core_errors_total{type, component}
//   - dashboard_core_build_info{version, component}
package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported through dashboard_core_build_info.
var Version = "v0.3.0"

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_core_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Record store metrics
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_core_store_operations_total",
			Help: "Total number of record store operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, success, conflict, error
	)

	// Repository metrics
	repoOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_core_repo_operations_total",
			Help: "Total number of dashboard repository operations",
		},
		[]string{"operation", "status"},
	)

	repoOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_core_repo_operation_duration_seconds",
			Help:    "Dashboard repository operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// Filter pipeline fallbacks to the untransformed dataset
	filterFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_core_filter_fallbacks_total",
			Help: "Number of filter applications that fell back to the original dataset",
		},
		[]string{"step"},
	)

	layoutRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_core_layout_rejections_total",
			Help: "Number of rejected layout changes",
		},
		[]string{"reason"}, // mismatch, invalid_cell
	)

	catalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_core_catalog_reloads_total",
			Help: "Number of chart template catalog reloads",
		},
		[]string{"result"},
	)

	editSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_core_edit_sessions_active",
			Help: "Number of open websocket edit sessions",
		},
	)

	// Error rate metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_core_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // type: http, repo, store, catalog
	)
)

// SetupPrometheusMetrics registers the collectors on the default registry
// and exposes them on /metrics.
func SetupPrometheusMetrics(router gin.IRoutes) {
	RegisterMetrics()
	router.GET("/metrics", Handler())
}

// Handler serves the default registry, for mounting on a custom path.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RegisterMetrics registers every collector once; repeated calls
// (tests, multiple servers in one process) are ignored.
func RegisterMetrics() {
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dashboard_core_build_info",
		Help: "Build information for DASHBOARD-CORE",
		ConstLabels: prometheus.Labels{
			"version":   Version,
			"component": "dashboard-core",
		},
	}, func() float64 { return 1 }))

	_ = prometheus.Register(httpRequestsTotal)
	_ = prometheus.Register(httpRequestDuration)
	_ = prometheus.Register(storeOperationsTotal)
	_ = prometheus.Register(repoOperationsTotal)
	_ = prometheus.Register(repoOperationDuration)
	_ = prometheus.Register(filterFallbacksTotal)
	_ = prometheus.Register(layoutRejectionsTotal)
	_ = prometheus.Register(catalogReloadsTotal)
	_ = prometheus.Register(editSessionsActive)
	_ = prometheus.Register(errorsTotal)
}

// RecordHTTPRequest records one served request. endpoint is the route
// template (c.FullPath()), never the raw path.
func RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, failed bool) {
	if endpoint == "" {
		endpoint = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if failed {
		errorsTotal.WithLabelValues("http", endpoint).Inc()
	}
}

// RecordStoreOperation records record store operation metrics
func RecordStoreOperation(operation, result string) {
	storeOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("store", operation).Inc()
	}
}

// RecordRepoOperation records dashboard repository operation metrics
func RecordRepoOperation(operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("repo", operation).Inc()
	}

	repoOperationsTotal.WithLabelValues(operation, status).Inc()
	repoOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFilterFallback counts a pipeline step failure that made the
// pipeline return the original dataset.
func RecordFilterFallback(step string) {
	filterFallbacksTotal.WithLabelValues(step).Inc()
}

func RecordLayoutRejection(reason string) {
	layoutRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordCatalogReload(success bool) {
	if success {
		catalogReloadsTotal.WithLabelValues("success").Inc()
		return
	}
	catalogReloadsTotal.WithLabelValues("error").Inc()
	errorsTotal.WithLabelValues("catalog", "reload").Inc()
}

// EditSessionOpened / EditSessionClosed track live websocket sessions.
func EditSessionOpened() { editSessionsActive.Inc() }
func EditSessionClosed() { editSessionsActive.Dec() }
