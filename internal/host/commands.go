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

package host

import (
	"context"
	"log/slog"

	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/supervisor"
)

// Command names as the presentation layer knows them.
const (
	CommandStartWorker = "start-worker"
	CommandStopWorker  = "stop-worker"
	CommandWorkerPort  = "get-worker-port"
	CommandStatus      = "check-worker-status"
	CommandStoragePath = "get-storage-path"
)

// Worker is the part of the supervisor the commands use.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Port(ctx context.Context) (uint16, error)
	Status(ctx context.Context) (bool, error)
	StoragePath() (string, error)
	Snapshot() supervisor.Snapshot
}

// Commands turns supervisor calls into envelopes. No command panics or
// returns a Go error; failures are reported in the envelope.
type Commands struct {
	worker Worker
	logger *slog.Logger
}

// NewCommands creates the command set for worker.
func NewCommands(worker Worker, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{
		worker: worker,
		logger: internallog.WithComponent(logger, "host"),
	}
}

// StartWorker launches the worker, restarting it if already running.
func (c *Commands) StartWorker(ctx context.Context) Envelope[string] {
	if err := c.worker.Start(ctx); err != nil {
		c.logger.Error("start-worker failed", internallog.Error(err))
		return Fail[string](err)
	}
	return OK("Worker started")
}

// StopWorker stops the worker. It always succeeds.
func (c *Commands) StopWorker(ctx context.Context) Envelope[string] {
	if err := c.worker.Stop(ctx); err != nil {
		c.logger.Warn("stop-worker reported an error", internallog.Error(err))
	}
	return OK("Worker stopped")
}

// WorkerPort returns the worker's port.
func (c *Commands) WorkerPort(ctx context.Context) Envelope[uint16] {
	port, err := c.worker.Port(ctx)
	if err != nil {
		c.logger.Debug("get-worker-port failed", internallog.Error(err))
		return Fail[uint16](err)
	}
	return OK(port)
}

// CheckStatus health checks the worker. A failed check still carries
// false as data.
func (c *Commands) CheckStatus(ctx context.Context) Envelope[bool] {
	ok, err := c.worker.Status(ctx)
	if err != nil {
		return FailWith(false, err)
	}
	return OK(ok)
}

// StoragePath returns the worker data file path.
func (c *Commands) StoragePath() Envelope[string] {
	path, err := c.worker.StoragePath()
	if err != nil {
		c.logger.Error("get-storage-path failed", internallog.Error(err))
		return Fail[string](err)
	}
	return OK(path)
}

// WorkerInfo returns the supervisor snapshot.
func (c *Commands) WorkerInfo() Envelope[supervisor.Snapshot] {
	return OK(c.worker.Snapshot())
}
