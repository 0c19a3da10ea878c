// Reactor is the single-goroutine task queue standing in for the
// original's single-OS-thread libev loop (spec.md §5, design note #9:
// "the single-threaded cooperative model maps naturally to ... lightweight
// tasks pinned to a single execution context"). Every mutation of state
// shared across connections, registries, or the Top-K index must happen
// inside a closure posted to a Reactor — that is what gives the "no two
// callbacks observe inconsistent state" guarantee without locks.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"sync"
	"time"
)

// Reactor drains posted closures strictly in FIFO order on one
// goroutine. It is the unit of "atomic with respect to other
// callbacks" access described in spec.md §5.
type Reactor struct {
	tasks chan func()
	done  chan struct{}
}

// NewReactor creates a Reactor with the given task-queue depth. A
// depth of a few thousand comfortably absorbs bursts from many
// connections' reader/writer goroutines without making Post block the
// network layer under normal load.
func NewReactor(queueDepth int) *Reactor {
	return &Reactor{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
}

// Run drains the task queue until ctx is done. It must run on exactly
// one goroutine for the lifetime of the Reactor.
func (r *Reactor) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-r.tasks:
			f()
		}
	}
}

// Post enqueues f to run on the reactor goroutine. It blocks if the
// queue is full, applying natural backpressure to whatever goroutine
// is posting (a Conn's reader, a refresher's ticker).
func (r *Reactor) Post(f func()) { r.tasks <- f }

// AfterFunc posts f to the reactor goroutine after d elapses, the Go
// equivalent of an ev_timer one-shot fire routed through the single
// event loop instead of calling back directly on a timer goroutine.
func (r *Reactor) AfterFunc(d time.Duration, f func()) *time.Timer {
	return time.AfterFunc(d, func() { r.Post(f) })
}

// Ticker posts f to the reactor goroutine on every tick of interval d,
// starting after an initial `offset` (spec.md §4.4's phase-offset
// refresh semantics: "phase-offset by offset mod interval"). The
// returned stop function halts the ticker and is safe to call more
// than once.
func (r *Reactor) Ticker(offset, interval time.Duration, f func()) (stop func()) {
	stopped := make(chan struct{})
	var once sync.Once
	stop = func() { once.Do(func() { close(stopped) }) }

	go func() {
		if offset > 0 {
			t := time.NewTimer(offset)
			select {
			case <-t.C:
			case <-stopped:
				t.Stop()
				return
			}
		}
		r.Post(f)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Post(f)
			case <-stopped:
				return
			}
		}
	}()

	return stop
}
