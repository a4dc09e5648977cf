package middleware

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "moneywright.auth"

// authMetrics carries the middleware instruments: a counter of authentication
// decisions and a histogram of guarded-request durations, both labeled with
// the decision outcome. otelhttp records transport-level metrics for the
// whole mux; the outcome label is what the transport layer cannot see.
type authMetrics struct {
	decisions metric.Int64Counter
	duration  metric.Float64Histogram
}

// newAuthMetrics builds the instruments from the global meter provider.
// Without a provider installed they are no-ops, so unit tests and the local
// sidecar pay nothing.
func newAuthMetrics() *authMetrics {
	meter := otel.Meter(meterName)
	m := &authMetrics{}
	var err error
	m.decisions, err = meter.Int64Counter("auth.decisions",
		metric.WithDescription("Authentication decisions by outcome"))
	if err != nil {
		log.Printf("middleware: auth.decisions counter: %v", err)
	}
	m.duration, err = meter.Float64Histogram("auth.request.duration",
		metric.WithDescription("Guarded request duration by authentication outcome"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Printf("middleware: auth.request.duration histogram: %v", err)
	}
	return m
}

// record counts one decision. outcome is "authenticated" or a rejection code.
func (m *authMetrics) record(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.decisions != nil {
		m.decisions.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Nanoseconds())/1e6, attrs)
	}
}
