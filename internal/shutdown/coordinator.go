// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shutdown makes host shutdown happen exactly once, whichever
// trigger fires first.
//
// Every trigger (window close, OS signal, application exit) calls
// Request. The first caller wins an atomic test-and-set and runs the
// whole sequence: suspend the trigger's default effect, stop the worker,
// wait out the grace period, then exit the process. Every later caller
// returns immediately.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/tombee/tether/internal/lifecycle"
	internallog "github.com/tombee/tether/internal/log"
)

// Trigger names a shutdown source.
type Trigger string

const (
	TriggerWindowClose Trigger = "window-close"
	TriggerSignal      Trigger = "signal"
	TriggerAppExit     Trigger = "app-exit"
)

// State is the process-wide shutdown flag.
type State int32

const (
	StateIdle State = iota
	StateClosing
)

func (s State) String() string {
	if s == StateClosing {
		return "closing"
	}
	return "idle"
}

// Event is one shutdown request.
type Event struct {
	Trigger Trigger

	// Prevent suspends the trigger's default effect, such as the window
	// closing or the runtime exiting, until cleanup is done. Optional.
	Prevent func()
}

// Stopper stops the worker. Stop must be safe to call with nothing
// running.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Coordinator serializes shutdown requests.
type Coordinator struct {
	stopper Stopper
	logger  *slog.Logger
	events  *lifecycle.LifecycleLogger
	grace   time.Duration
	exit    func(code int)

	state  atomic.Int32
	winner atomic.Value // Trigger
	done   chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithGrace sets the pause between stopping the worker and exiting.
func WithGrace(d time.Duration) Option {
	return func(c *Coordinator) {
		c.grace = d
	}
}

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

// WithLifecycleLogger records the winning trigger in the lifecycle log.
func WithLifecycleLogger(l *lifecycle.LifecycleLogger) Option {
	return func(c *Coordinator) {
		c.events = l
	}
}

// New creates a Coordinator that stops stopper on shutdown.
func New(stopper Stopper, opts ...Option) *Coordinator {
	c := &Coordinator{
		stopper: stopper,
		logger:  slog.Default(),
		exit:    os.Exit,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = internallog.WithComponent(c.logger, "shutdown")
	return c
}

// State returns idle until the first Request, closing afterwards.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Winner returns the trigger that started shutdown, or "" while idle.
func (c *Coordinator) Winner() Trigger {
	t, _ := c.winner.Load().(Trigger)
	return t
}

// Done is closed once the worker is stopped and the grace period is
// over, just before exit is called.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Request runs the shutdown sequence if no other trigger has. It
// reports whether this call ran it. The winning call blocks until the
// sequence finishes and then calls the exit function; cancelling ctx
// does not interrupt the worker stop.
func (c *Coordinator) Request(ctx context.Context, ev Event) bool {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateClosing)) {
		c.logger.Debug("shutdown already in progress", slog.String(internallog.TriggerKey, string(ev.Trigger)))
		return false
	}
	c.winner.Store(ev.Trigger)

	logger := c.logger.With(slog.String(internallog.TriggerKey, string(ev.Trigger)))
	logger.Info("shutting down")
	start := time.Now()

	if ev.Prevent != nil {
		ev.Prevent()
	}
	_ = c.events.LogShutdown(string(ev.Trigger))

	if err := c.stopper.Stop(context.WithoutCancel(ctx)); err != nil {
		logger.Error("worker stop failed during shutdown", internallog.Error(err))
	}

	if c.grace > 0 {
		time.Sleep(c.grace)
	}

	logger.Info("shutdown complete", internallog.Duration("duration", time.Since(start).Milliseconds()))
	close(c.done)
	c.exit(0)
	return true
}
