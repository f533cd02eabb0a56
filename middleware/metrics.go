package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shopwire/message"
)

// MetricsBuilder counts requests by type and result and tracks their latency.
type MetricsBuilder struct {
	Namespace string
	Subsystem string
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

func (m MetricsBuilder) Build() Middleware {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.Namespace,
		Subsystem: m.Subsystem,
		Name:      "requests_total",
		Help:      "Requests handled, by message type and result code.",
	}, []string{"type", "code"})
	latency := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: m.Namespace,
		Subsystem: m.Subsystem,
		Name:      "request_duration_seconds",
		Help:      "Request handling latency in seconds.",
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.9:   0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{"type"})

	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(requests, latency)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Body) message.Body {
			start := time.Now()
			resp := next(ctx, req)
			typ := req.Type().String()
			latency.WithLabelValues(typ).Observe(time.Since(start).Seconds())
			requests.WithLabelValues(typ, codeOf(resp).String()).Inc()
			return resp
		}
	}
}
