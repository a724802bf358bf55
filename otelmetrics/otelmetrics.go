// Package otelmetrics registers OpenTelemetry instruments against the
// ambient global meter provider and periodically samples procbus's
// observable counters into them. It never configures an exporter itself —
// that remains entirely the caller's concern, same as this codebase's other
// OTel-instrumented components.
package otelmetrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/shalefield/procbus"
	"github.com/shalefield/procbus/observerpool"
)

// Instruments bundles every instrument this package records against. All
// fields may be nil if the underlying otel.Meter call failed; every Observe*
// method nil-checks an instrument before Add, matching the grounded pattern
// for every OTel-instrumented component in this codebase.
type Instruments struct {
	queueExecuted   metric.Int64Counter
	queueDropped    metric.Int64Counter
	timerFired      metric.Int64Counter
	timerDropped    metric.Int64Counter
	busPublished    metric.Int64Counter
	busDispatched   metric.Int64Counter
	observerDropped metric.Int64Counter
}

// New registers every instrument against otel.Meter(meterName). meterName is
// typically the importing application's module path.
func New(meterName string) *Instruments {
	meter := otel.Meter(meterName)
	in := &Instruments{}

	in.queueExecuted, _ = meter.Int64Counter("procbus.queue.executed",
		metric.WithDescription("Commands executed by a CommandQueue"),
		metric.WithUnit("{command}"))
	in.queueDropped, _ = meter.Int64Counter("procbus.queue.dropped",
		metric.WithDescription("Commands rejected by a full CommandQueue"),
		metric.WithUnit("{command}"))
	in.timerFired, _ = meter.Int64Counter("procbus.timer.fired",
		metric.WithDescription("Scheduled events executed by the TimerThread"),
		metric.WithUnit("{event}"))
	in.timerDropped, _ = meter.Int64Counter("procbus.timer.dropped",
		metric.WithDescription("Scheduled events dropped because their target queue was full"),
		metric.WithUnit("{event}"))
	in.busPublished, _ = meter.Int64Counter("procbus.bus.published",
		metric.WithDescription("Envelopes published to the MessageBus"),
		metric.WithUnit("{envelope}"))
	in.busDispatched, _ = meter.Int64Counter("procbus.bus.dispatched",
		metric.WithDescription("Envelopes that matched at least one subscriber"),
		metric.WithUnit("{envelope}"))
	in.observerDropped, _ = meter.Int64Counter("procbus.observerpool.dropped",
		metric.WithDescription("Notifications dropped by a full observer pool"),
		metric.WithUnit("{notification}"))

	return in
}

// ObserveQueue records a CommandQueue snapshot's delta against lifetime
// counters. Callers typically invoke this periodically (see Sampler).
func (in *Instruments) ObserveQueue(ctx context.Context, name string, stats procbus.QueueStats, prevExecuted, prevDropped *uint64) {
	if in.queueExecuted != nil && stats.Executed > *prevExecuted {
		in.queueExecuted.Add(ctx, int64(stats.Executed-*prevExecuted))
	}
	if in.queueDropped != nil && stats.Dropped > *prevDropped {
		in.queueDropped.Add(ctx, int64(stats.Dropped-*prevDropped))
	}
	*prevExecuted, *prevDropped = stats.Executed, stats.Dropped
}

// ObserveBus records a MessageBus snapshot's delta against lifetime
// counters.
func (in *Instruments) ObserveBus(ctx context.Context, stats procbus.BusStats, prevPublished, prevDispatched *uint64) {
	if in.busPublished != nil && stats.Published > *prevPublished {
		in.busPublished.Add(ctx, int64(stats.Published-*prevPublished))
	}
	if in.busDispatched != nil && stats.Dispatched > *prevDispatched {
		in.busDispatched.Add(ctx, int64(stats.Dispatched-*prevDispatched))
	}
	*prevPublished, *prevDispatched = stats.Published, stats.Dispatched
}

// ObserveTimer records a TimerThread snapshot's delta against lifetime
// counters.
func (in *Instruments) ObserveTimer(ctx context.Context, stats procbus.TimerStats, prevFired, prevDropped *uint64) {
	if in.timerFired != nil && stats.Fired > *prevFired {
		in.timerFired.Add(ctx, int64(stats.Fired-*prevFired))
	}
	if in.timerDropped != nil && stats.Dropped > *prevDropped {
		in.timerDropped.Add(ctx, int64(stats.Dropped-*prevDropped))
	}
	*prevFired, *prevDropped = stats.Fired, stats.Dropped
}

// ObserveObserverPool records an observerpool.Pool snapshot's delta.
func (in *Instruments) ObserveObserverPool(ctx context.Context, stats observerpool.Stats, prevDropped *uint64) {
	if in.observerDropped != nil && stats.Dropped > *prevDropped {
		in.observerDropped.Add(ctx, int64(stats.Dropped-*prevDropped))
	}
	*prevDropped = stats.Dropped
}

// Sampler periodically invokes a user-supplied sample function on an
// interval, stopping when ctx is cancelled. It is a thin convenience: every
// Observe* method above is plain-data and safe to call directly from an
// application's own scheduling loop instead.
func Sampler(ctx context.Context, interval time.Duration, sample func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample(ctx)
		}
	}
}
