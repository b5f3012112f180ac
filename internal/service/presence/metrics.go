package presence

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/iamasit07/chat-presence/presence"

type metrics struct {
	ticks             metric.Int64Counter
	tickDuration      metric.Float64Histogram
	recovered         metric.Int64Counter
	zombies           metric.Int64Counter
	transitions       metric.Int64Counter
	broadcastFailures metric.Int64Counter
}

// newMetrics registers the reconciler instruments on the global meter provider.
// Instrument creation errors leave a no-op instrument in place.
func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	m.ticks, _ = meter.Int64Counter("presence_ticks_total",
		metric.WithDescription("Reconciliation ticks by outcome"))
	m.tickDuration, _ = meter.Float64Histogram("presence_tick_duration_seconds",
		metric.WithDescription("Duration of executed reconciliation ticks"),
		metric.WithUnit("s"))
	m.recovered, _ = meter.Int64Counter("presence_sessions_recovered_total",
		metric.WithDescription("Sessions recreated from live transport connections"))
	m.zombies, _ = meter.Int64Counter("presence_zombies_removed_total",
		metric.WithDescription("Stale sessions purged"))
	m.transitions, _ = meter.Int64Counter("presence_status_transitions_total",
		metric.WithDescription("User status transitions made by the reconciler"))
	m.broadcastFailures, _ = meter.Int64Counter("presence_broadcast_failures_total",
		metric.WithDescription("Room groups whose broadcast failed"))
	return m
}

func (m *metrics) tick(ctx context.Context, outcome string) {
	m.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) record(ctx context.Context, r TickReport) {
	m.tickDuration.Record(ctx, r.Duration.Seconds())
	m.recovered.Add(ctx, int64(r.Recovered))
	m.zombies.Add(ctx, int64(r.ZombiesRemoved))
	m.transitions.Add(ctx, int64(r.WentOffline), metric.WithAttributes(attribute.String("to", "offline")))
	m.transitions.Add(ctx, int64(r.WentInactive), metric.WithAttributes(attribute.String("to", "inactive")))
	m.broadcastFailures.Add(ctx, int64(r.BroadcastFailures))
}
