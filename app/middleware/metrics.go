package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpLabels = []string{"method", "route", "status"}

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "founder_pass",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route pattern",
	}, httpLabels)

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "founder_pass",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency. Pledge writes include the Stripe round trip.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, httpLabels)

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "founder_pass",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "HTTP requests currently being served",
	})
)

// Metrics records request count and latency. The route label is the matched
// pattern (/api/v1/pledges/:pledge_id/...), never the raw path.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  routePattern(c),
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

func routePattern(c fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return "unmatched"
}
