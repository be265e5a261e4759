// Package observability exposes prometheus metrics for the overdue engine.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vulnmgt",
		Subsystem: "aggregate",
		Name:      "rebuild_duration_seconds",
		Help:      "Duration of overdue aggregate rebuilds.",
		Buckets:   prometheus.DefBuckets,
	})

	rebuildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vulnmgt",
		Subsystem: "aggregate",
		Name:      "rebuild_total",
		Help:      "Number of aggregate rebuilds by outcome.",
	}, []string{"status"})

	rebuildRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vulnmgt",
		Subsystem: "aggregate",
		Name:      "rows",
		Help:      "Row count of the current aggregate snapshot.",
	})

	workflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vulnmgt",
		Subsystem: "exceptions",
		Name:      "transitions_total",
		Help:      "Exception request transitions by action and outcome.",
	}, []string{"action", "result"})
)

// ObserveRebuild records one rebuild attempt.
func ObserveRebuild(duration time.Duration, rows int, err error) {
	if err != nil {
		rebuildTotal.WithLabelValues("error").Inc()
		return
	}
	rebuildTotal.WithLabelValues("ok").Inc()
	rebuildDuration.Observe(duration.Seconds())
	rebuildRows.Set(float64(rows))
}

// ObserveTransition records one workflow action outcome. result is "ok",
// "denied", "conflict", or "error".
func ObserveTransition(action, result string) {
	workflowTransitions.WithLabelValues(action, result).Inc()
}

// ServeMetrics runs the prometheus scrape endpoint on its own listener so
// scrapes never contend with API traffic.
func ServeMetrics(addr string, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infof("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorw("metrics server stopped", "error", err)
	}
}
