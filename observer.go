package procbus

import (
	"time"

	"github.com/trickstertwo/xlog"
)

// LifecycleEventType distinguishes the kinds of lifecycle notification a
// ProcessBus or MessageBus emits through its observer pool.
type LifecycleEventType string

const (
	LifecycleStarted   LifecycleEventType = "started"
	LifecycleStopped   LifecycleEventType = "stopped"
	LifecycleQueueFull LifecycleEventType = "queue_full"
)

// LifecycleEvent is a structured notification about a ProcessBus/MessageBus
// transition, independent of QueueFullEvent (which carries the dropped
// message itself). It is meant for dashboards/alerting, not for driving
// application logic.
type LifecycleEvent struct {
	Type LifecycleEventType
	Name string
	At   time.Time
	Err  error
}

// LoggingLifecycleObserver is an Adapter that lets a function over
// LifecycleEvent be registered on an observerpool.Pool (whose Listener type
// is func(any)), mirroring the LoggingObserver Adapter this codebase uses
// elsewhere for event-type telemetry sinks.
type LoggingLifecycleObserver struct {
	Logger *xlog.Logger
}

// OnEvent logs e at Debug, or Warn if it carries an error, matching the
// severity split this codebase's bus-event logging uses throughout. It
// handles both LifecycleEvent and QueueFullEvent, since both travel through
// the same observer pool.
func (o LoggingLifecycleObserver) OnEvent(event any) {
	if o.Logger == nil {
		return
	}
	switch e := event.(type) {
	case LifecycleEvent:
		logger := o.Logger.With(xlog.Str("type", string(e.Type)), xlog.Str("name", e.Name))
		if e.Err != nil {
			logger.Warn().Err(e.Err).Msg("procbus: lifecycle event")
			return
		}
		logger.Debug().Msg("procbus: lifecycle event")
	case QueueFullEvent:
		o.Logger.With(xlog.Str("topic", e.Header.Topic())).Warn().Err(e.Err).Msg("procbus: queue full, message dropped")
	}
}
