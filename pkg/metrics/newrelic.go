package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// WithNewRelic attaches the application to ctx for the Record* helpers.
func WithNewRelic(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, newRelicContextKey{}, app)
}

func fromContext(ctx context.Context) (*newrelic.Application, bool) {
	app, ok := ctx.Value(newRelicContextKey{}).(*newrelic.Application)
	return app, ok && app != nil
}

// RecordCount records a count metric
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records a duration metric in milliseconds
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(duration/time.Millisecond))
	}
}

// RecordEvent records a new event with a name and set of key-value pairs
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomEvent(eventName, kvPairs)
	}
}
