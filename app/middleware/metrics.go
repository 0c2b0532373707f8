// Package middleware holds fiber middleware shared by every route group
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpLabels = []string{"group", "method", "route", "status"}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsflow_http_requests_total",
			Help: "HTTP requests by route group, method, route template and status code",
		},
		httpLabels,
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smsflow_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		httpLabels,
	)

	httpInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsflow_http_inflight_requests",
			Help: "HTTP requests currently being served by route group",
		},
		[]string{"group"},
	)
)

// RouteGroup names the API area a path belongs to: campaigns, conversations,
// webhooks, storage, health, metrics or other
func RouteGroup(path string) string {
	switch {
	case strings.HasPrefix(path, "/webhooks/"):
		return "webhooks"
	case strings.HasPrefix(path, "/storage/"):
		return "storage"
	case path == "/metrics":
		return "metrics"
	}

	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "other"
	}
	segment, _, _ := strings.Cut(rest, "/")
	switch segment {
	case "campaigns", "conversations", "health":
		return segment
	default:
		return "other"
	}
}

// Metrics records request count, latency and in-flight requests per route group.
// The route label uses the matched route template, not the raw path, so campaign
// ids do not create new series.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		group := RouteGroup(c.Path())
		inFlight := httpInFlight.WithLabelValues(group)
		inFlight.Inc()
		defer inFlight.Dec()

		err := c.Next()

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		status := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(group, c.Method(), route, status).Inc()
		httpRequestDuration.WithLabelValues(group, c.Method(), route, status).Observe(time.Since(start).Seconds())

		return err
	}
}
