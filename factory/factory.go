// Package factory wires one shared MessageBus and TimerThread and mints
// named ProcessBus instances against them — the Facade/Builder idiom used
// throughout this codebase, generalized to the top-level entry point a
// caller actually reaches for.
package factory

import (
	"sync"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/shalefield/procbus"
)

// ProcessContextFactory builds ProcessBus instances that all share one
// MessageBus and one TimerThread, and therefore participate in the same
// publish/subscribe and scheduling universe.
type ProcessContextFactory struct {
	bus    *procbus.MessageBus
	timer  *procbus.TimerThread
	clock  xclock.Clock
	logger *xlog.Logger

	mu      sync.Mutex
	buses   []*procbus.ProcessBus
	started bool
}

// Option customizes a ProcessContextFactory at construction.
type Option func(*ProcessContextFactory)

// WithClock overrides the shared clock used for envelope timestamps and the
// timer thread's business-time readings.
func WithClock(clock xclock.Clock) Option {
	return func(f *ProcessContextFactory) { f.clock = clock }
}

// WithLogger overrides the shared logger.
func WithLogger(logger *xlog.Logger) Option {
	return func(f *ProcessContextFactory) { f.logger = logger }
}

// New constructs a ProcessContextFactory with its own MessageBus and
// TimerThread.
func New(opts ...Option) *ProcessContextFactory {
	f := &ProcessContextFactory{}
	for _, opt := range opts {
		opt(f)
	}
	if f.clock == nil {
		f.clock = xclock.Default()
	}
	if f.logger == nil {
		f.logger = xlog.Default()
	}
	f.timer = procbus.NewTimerThread(f.clock, f.logger)
	f.bus = procbus.NewMessageBus(f.timer, f.logger)
	return f
}

// Start launches the shared MessageBus's bus thread. Must be called once,
// before any minted ProcessBus starts handling traffic.
func (f *ProcessContextFactory) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.started = true
	f.bus.Start()
}

// NewProcessBus mints a ProcessBus named name with queue capacity maxDepth
// (0 = unbounded), sharing this factory's MessageBus and TimerThread.
func (f *ProcessContextFactory) NewProcessBus(name string, maxDepth int) *procbus.ProcessBus {
	pb := procbus.NewProcessBus(name, maxDepth, f.bus, f.timer, f.clock, f.logger)
	f.mu.Lock()
	f.buses = append(f.buses, pb)
	f.mu.Unlock()
	return pb
}

// Stop stops every minted ProcessBus, the shared MessageBus, and the shared
// TimerThread, in that order, then waits for every worker to exit.
func (f *ProcessContextFactory) Stop() {
	f.mu.Lock()
	buses := append([]*procbus.ProcessBus(nil), f.buses...)
	f.mu.Unlock()

	for _, pb := range buses {
		pb.Stop()
	}
	f.bus.Stop()
	f.timer.Stop()
	for _, pb := range buses {
		pb.Join()
	}
	f.bus.Join()
}

var (
	defaultFactory   *ProcessContextFactory
	defaultFactoryMu sync.Mutex
)

// Default returns the process-wide singleton ProcessContextFactory,
// constructing and starting it on first use with the given options.
func Default(opts ...Option) *ProcessContextFactory {
	defaultFactoryMu.Lock()
	defer defaultFactoryMu.Unlock()
	if defaultFactory == nil {
		defaultFactory = New(opts...)
		defaultFactory.Start()
	}
	return defaultFactory
}

// SetDefault overrides the process-wide singleton, for callers that need to
// construct it with options not exposed by Default (or inject a fake for
// tests). It does not Start f; callers remain responsible for that.
func SetDefault(f *ProcessContextFactory) {
	defaultFactoryMu.Lock()
	defaultFactory = f
	defaultFactoryMu.Unlock()
}
