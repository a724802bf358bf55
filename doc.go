// Package procbus is an in-process concurrent messaging and scheduling
// runtime. It provides isolated process contexts — each a single logical
// worker with its own serial command queue — that communicate by publishing
// typed messages on topics through a shared bus, and that can schedule
// commands, one-shot or recurring, for deferred execution on their own
// queue.
//
// The guarantee the package exists to provide: a subscriber's callback runs
// only on the subscriber's process thread, serially, in publish order per
// publisher. Nothing here crosses an OS process boundary — for that, compose
// procbus with a transport of your own.
package procbus
