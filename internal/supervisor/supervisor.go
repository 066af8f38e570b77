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

// Package supervisor owns the single worker process: it launches it,
// learns its port, checks its health and tears it down.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/tether/internal/config"
	"github.com/tombee/tether/internal/discovery"
	"github.com/tombee/tether/internal/lifecycle"
	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/logsink"
	tethererrors "github.com/tombee/tether/pkg/errors"
)

// ShutdownPath is the worker's graceful stop endpoint.
const ShutdownPath = "/api/stop"

// EventPortReady is emitted with the port (uint16) whenever the worker
// announces a new port.
const EventPortReady = "worker-port-ready"

// State is the worker lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
)

// Emitter broadcasts events to the presentation layer.
type Emitter interface {
	Emit(event string, data any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, data any)

// Emit implements Emitter.
func (f EmitterFunc) Emit(event string, data any) { f(event, data) }

// workerHandle is the supervised process. It is only read or written
// with Supervisor.mu held, and Stop moves it out before acting on it.
type workerHandle struct {
	process *lifecycle.Process
	port    uint16
	pid     int

	// runID tags every update from the drains of one spawn.
	runID string
}

func (h workerHandle) held() bool {
	return h.process != nil || h.pid != 0 || h.port != 0
}

// Snapshot is a point-in-time view of the worker.
type Snapshot struct {
	State State  `json:"state"`
	PID   int    `json:"pid,omitempty"`
	Port  uint16 `json:"port,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

// Supervisor runs at most one worker at a time.
type Supervisor struct {
	cfg        *config.Config
	logger     *slog.Logger
	spawner    *lifecycle.Spawner
	terminator lifecycle.Terminator
	resolver   LaunchResolver
	emitter    Emitter
	sink       internallog.ErrorSink
	client     *http.Client
	events     *lifecycle.LifecycleLogger
	eventsSet  bool
	devBuild   bool
	storageDir string
	pidFile    *lifecycle.PIDFileManager

	// reapTimeout bounds the wait for the killed worker to be reaped.
	reapTimeout time.Duration

	// opMu serializes Start, Stop and Close. mu guards handle, state and
	// closed and is never held across I/O.
	opMu   sync.Mutex
	mu     sync.Mutex
	handle workerHandle
	state  State
	closed bool
}

// New creates a Supervisor. No process is started.
func New(cfg *config.Config, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	storageDir, err := cfg.ResolveStorageDir()
	if err != nil {
		return nil, newError(KindStorageUnavailable, "init", err, "cannot resolve storage directory")
	}

	s := &Supervisor{
		cfg:         cfg,
		logger:      slog.Default(),
		spawner:     lifecycle.NewSpawner(),
		terminator:  lifecycle.DefaultTerminator(),
		sink:        processSink{},
		client:      &http.Client{},
		storageDir:  storageDir,
		pidFile:     lifecycle.NewPIDFileManager(filepath.Join(storageDir, "worker.pid")),
		reapTimeout: 5 * time.Second,
		state:       StateNotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil {
		s.resolver = NewResolver(cfg.Worker, s.devBuild)
	}
	if !s.eventsSet {
		s.events = lifecycle.NewLifecycleLogger(filepath.Join(storageDir, "logs", "lifecycle.log"))
	}
	s.logger = internallog.WithComponent(s.logger, "supervisor")

	return s, nil
}

// StorageDir returns the resolved storage directory. It may not exist
// yet.
func (s *Supervisor) StorageDir() string {
	return s.storageDir
}

// StoragePath creates the storage directory if needed and returns the
// path of the worker's data file inside it.
func (s *Supervisor) StoragePath() (string, error) {
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return "", newError(KindStorageUnavailable, "storage", err, "cannot create %s", s.storageDir)
	}
	return filepath.Join(s.storageDir, s.cfg.Worker.DataFile), nil
}

// State returns the lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current state and handle fields.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State: s.state,
		PID:   s.handle.pid,
		Port:  s.handle.port,
		RunID: s.handle.runID,
	}
}

// Start launches the worker, stopping any worker already held. It
// returns once the process is spawned; the port arrives later.
func (s *Supervisor) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	held := s.handle.held()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		recordStart("unresolved", "closed")
		s.logger.Warn("start refused, supervisor is closed")
		return newError(KindClosed, "start", nil, "the host is shutting down")
	}
	if held {
		s.logger.Info("worker already running, restarting")
		s.stop(ctx)
	}

	launch, err := s.resolver.Resolve()
	if err != nil {
		s.startFailed("", "unresolved", err)
		return err
	}

	dataPath, err := s.StoragePath()
	if err != nil {
		s.startFailed("", launch.Mode, err)
		return err
	}

	runID := uuid.NewString()
	logger := s.logger.With(
		slog.String(internallog.RunIDKey, runID),
		slog.String(internallog.ModeKey, launch.Mode),
	)

	s.mu.Lock()
	prev := s.state
	s.handle = workerHandle{runID: runID}
	s.state = StateStarting
	s.mu.Unlock()

	_ = s.events.LogStart(runID, launch.Mode, launch.Path)
	logger.Info("starting worker",
		slog.String("path", launch.Path),
		slog.Any("args", launch.Args),
		slog.String("dir", launch.Dir))

	env := append(append([]string(nil), launch.Env...), s.cfg.Worker.StorageEnv+"="+dataPath)
	proc, err := s.spawner.Spawn(lifecycle.LaunchSpec{
		Path:   launch.Path,
		Args:   launch.Args,
		Dir:    launch.Dir,
		Env:    env,
		Stdout: s.scanStdout(runID, logger),
		Stderr: s.drainStderr(logger),
	})
	if err != nil {
		s.mu.Lock()
		s.handle = workerHandle{}
		s.state = prev
		s.mu.Unlock()

		serr := newError(KindSpawnFailed, "start", err, "cannot launch %s", launch.Path)
		s.startFailed(runID, launch.Mode, serr)
		return serr
	}

	pid := proc.PID()
	s.mu.Lock()
	s.handle.process = proc
	s.handle.pid = pid
	s.state = StateRunning
	s.mu.Unlock()

	workerUp.Set(1)
	recordStart(launch.Mode, "ok")
	if err := s.pidFile.Write(pid); err != nil {
		logger.Warn("failed to write worker pid file", internallog.Error(err))
	}
	_ = s.events.LogStartSuccess(runID, pid)
	logger.Info("worker started", slog.Int(internallog.PIDKey, pid))

	go s.reap(runID, proc, logger.With(slog.Int(internallog.PIDKey, pid)))
	return nil
}

func (s *Supervisor) startFailed(runID, mode string, err error) {
	recordStart(mode, "error")
	s.logger.Error("failed to start worker", internallog.Error(err))
	_ = s.events.LogStartFailure(runID, err)
}

// scanStdout feeds the worker's stdout to port discovery.
func (s *Supervisor) scanStdout(runID string, logger *slog.Logger) lifecycle.StreamHandler {
	return func(r io.Reader) {
		err := discovery.Scan(r, s.cfg.Worker.Marker,
			func(port uint16) { s.setPort(runID, port, logger) },
			func(line string) { internallog.Trace(logger, "worker stdout", slog.String("line", line)) },
		)
		if err != nil {
			logger.Debug("worker stdout closed", internallog.Error(err))
		}
	}
}

// drainStderr forwards every stderr line to the sink, prefixed with the
// worker name.
func (s *Supervisor) drainStderr(logger *slog.Logger) lifecycle.StreamHandler {
	prefix := s.cfg.Worker.Name + ": "
	return func(r io.Reader) {
		err := discovery.Scan(r, "", nil, func(line string) {
			s.sink.Log(prefix + line)
			internallog.Trace(logger, "worker stderr", slog.String("line", line))
		})
		if err != nil {
			logger.Debug("worker stderr closed", internallog.Error(err))
		}
	}
}

// setPort records a port announced by the worker of runID. Repeats of
// the same port are ignored; a new value replaces the old one.
func (s *Supervisor) setPort(runID string, port uint16, logger *slog.Logger) {
	s.mu.Lock()
	if s.handle.runID != runID {
		s.mu.Unlock()
		return
	}
	changed := s.handle.port != port
	s.handle.port = port
	s.mu.Unlock()

	if !changed {
		return
	}

	logger.Info("worker port discovered", slog.Int(internallog.PortKey, int(port)))
	portDiscoveries.WithLabelValues("marker").Inc()
	if err := discovery.WriteHint(s.hintPath(), port); err != nil {
		logger.Warn("failed to persist port hint", internallog.Error(err))
	}
	_ = s.events.LogPortDiscovered(runID, port, "marker")

	if s.emitter != nil {
		s.emitter.Emit(EventPortReady, port)
	}
}

// reap waits for the worker to exit. An exit Stop did not cause clears
// the handle and is recorded as unexpected.
func (s *Supervisor) reap(runID string, proc *lifecycle.Process, logger *slog.Logger) {
	<-proc.Done()

	s.mu.Lock()
	current := s.handle.runID == runID
	if current {
		s.handle = workerHandle{}
		s.state = StateStopped
	}
	s.mu.Unlock()

	if !current {
		return
	}

	code := proc.ExitCode()
	err := proc.Err()
	logger.Error("worker exited unexpectedly", slog.Int("exit_code", code), internallog.Error(err))
	unexpectedExits.Inc()
	workerUp.Set(0)
	_ = s.events.LogExit(runID, proc.PID(), code, err)
	if err := s.pidFile.Remove(); err != nil {
		logger.Warn("failed to remove worker pid file", internallog.Error(err))
	}
}

// Port returns the worker's port. When it is not known yet it waits
// briefly, then sweeps the configured range and caches the answer.
func (s *Supervisor) Port(ctx context.Context) (uint16, error) {
	if port := s.knownPort(); port != 0 {
		return port, nil
	}

	timer := time.NewTimer(s.cfg.Timeouts.PortRecheck)
	select {
	case <-ctx.Done():
		timer.Stop()
		return 0, newError(KindPortUnknown, "port", ctx.Err(), "cancelled while waiting for the worker port")
	case <-timer.C:
	}

	if port := s.knownPort(); port != 0 {
		return port, nil
	}

	port, err := discovery.Sweep(ctx, discovery.SweepOptions{
		Host:         s.cfg.Ports.Host,
		Start:        uint16(s.cfg.Ports.SweepStart),
		End:          uint16(s.cfg.Ports.SweepEnd),
		ProbeTimeout: s.cfg.Timeouts.Probe,
		Client:       s.client,
	})
	if err != nil {
		return 0, newError(KindPortUnknown, "port", err, "no port announced and none answered in %d-%d",
			s.cfg.Ports.SweepStart, s.cfg.Ports.SweepEnd)
	}

	s.mu.Lock()
	if s.handle.port == 0 {
		s.handle.port = port
	} else {
		// A marker arrived during the sweep; it is authoritative.
		port = s.handle.port
	}
	runID := s.handle.runID
	s.mu.Unlock()

	s.logger.Info("worker port found by sweep", slog.Int(internallog.PortKey, int(port)))
	portDiscoveries.WithLabelValues("sweep").Inc()
	if err := discovery.WriteHint(s.hintPath(), port); err != nil {
		s.logger.Warn("failed to persist port hint", internallog.Error(err))
	}
	_ = s.events.LogPortDiscovered(runID, port, "sweep")

	return port, nil
}

func (s *Supervisor) knownPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle.port
}

func (s *Supervisor) hintPath() string {
	return filepath.Join(s.storageDir, s.cfg.Ports.HintFile)
}

// statusPort picks the port to health check: the live one, else the
// persisted hint, else the configured default.
func (s *Supervisor) statusPort() uint16 {
	if port := s.knownPort(); port != 0 {
		return port
	}
	if port, err := discovery.ReadHint(s.hintPath()); err == nil {
		return port
	}
	return uint16(s.cfg.Ports.Default)
}

// Status health checks the worker. A false result always comes with an
// Unreachable or UnhealthyResponse error.
func (s *Supervisor) Status(ctx context.Context) (bool, error) {
	port := s.statusPort()

	result := lifecycle.NewHealthChecker(lifecycle.HealthURL(s.cfg.Ports.Host, port)).
		WithHTTPClient(s.client).
		WithTimeout(s.cfg.Timeouts.Health).
		Check(ctx)

	switch {
	case result.Error != nil:
		statusChecks.WithLabelValues("unreachable").Inc()
		return false, newError(KindUnreachable, "status", result.Error, "no response on port %d", port)
	case !result.Success:
		statusChecks.WithLabelValues("unhealthy").Inc()
		return false, newError(KindUnhealthyResponse, "status", nil, "port %d answered with status %d", port, result.StatusCode)
	}

	statusChecks.WithLabelValues("healthy").Inc()
	return true, nil
}

// Stop tears the worker down: a graceful request, then a tree kill, then
// a direct kill. Every step is best effort and Stop always returns nil.
// With no worker held it returns at once.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stop(ctx)
	return nil
}

func (s *Supervisor) stop(ctx context.Context) {
	// A stop that has begun always runs to completion.
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	h := s.handle
	s.handle = workerHandle{}
	if h.held() {
		s.state = StateStopping
	}
	s.mu.Unlock()

	if !h.held() {
		s.logger.Debug("stop requested with no worker running")
		return
	}

	start := time.Now()
	logger := s.logger.With(
		slog.String(internallog.RunIDKey, h.runID),
		slog.Int(internallog.PIDKey, h.pid),
		slog.Int(internallog.PortKey, int(h.port)),
	)
	logger.Info("stopping worker")
	_ = s.events.LogStop(h.runID, h.pid, h.port)
	workerStops.Inc()

	if h.port != 0 {
		s.gracefulStop(ctx, h, logger)
	}

	if h.pid != 0 && s.terminator.Supported() {
		s.killTree(h, logger)
	}

	if h.process != nil {
		err := h.process.Kill()
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
		if err != nil {
			logger.Error("failed to kill worker", internallog.Error(err))
		}
		recordStopStep("kill", err)
		_ = s.events.LogStopStep(h.runID, "kill", err)
		s.awaitReap(h.process, logger)
	}

	if err := s.pidFile.Remove(); err != nil {
		logger.Warn("failed to remove worker pid file", internallog.Error(err))
	}

	s.mu.Lock()
	if s.handle.runID == "" {
		s.state = StateStopped
	}
	s.mu.Unlock()

	elapsed := time.Since(start)
	workerUp.Set(0)
	stopDuration.Observe(elapsed.Seconds())
	_ = s.events.LogStopComplete(h.runID, elapsed)
	logger.Info("worker stopped", internallog.Duration("duration", elapsed.Milliseconds()))
}

// Close stops the worker for good. Any Start waiting behind it, or
// issued later, fails with a Closed error instead of spawning. Close is
// idempotent and, like Stop, always returns nil.
func (s *Supervisor) Close(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop(ctx)
	return nil
}

// gracefulStop asks the worker to exit on its own. Any response counts
// as acknowledgement; a failed request means the worker is already down.
func (s *Supervisor) gracefulStop(ctx context.Context, h workerHandle, logger *slog.Logger) {
	timeout := s.cfg.Timeouts.Shutdown
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d%s", s.cfg.Ports.Host, h.port, ShutdownPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		logger.Error("failed to build shutdown request", internallog.Error(err))
		recordStopStep("graceful", err)
		_ = s.events.LogStopStep(h.runID, "graceful", err)
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = &tethererrors.TimeoutError{Operation: "graceful shutdown", Duration: timeout, Cause: err}
		}
		logger.Info("graceful shutdown request failed, treating worker as down", internallog.Error(err))
		recordStopStep("graceful", err)
		_ = s.events.LogStopStep(h.runID, "graceful", err)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	logger.Info("graceful shutdown acknowledged", slog.Int("status", resp.StatusCode))
	recordStopStep("graceful", nil)
	_ = s.events.LogStopStep(h.runID, "graceful", nil)

	if h.process == nil || s.cfg.Timeouts.GracefulWait <= 0 {
		return
	}
	timer := time.NewTimer(s.cfg.Timeouts.GracefulWait)
	defer timer.Stop()
	select {
	case <-h.process.Done():
		logger.Debug("worker exited after graceful request")
	case <-timer.C:
		logger.Info("worker still running after graceful request, forcing")
	case <-ctx.Done():
	}
}

func (s *Supervisor) killTree(h workerHandle, logger *slog.Logger) {
	outcome, err := s.terminator.Terminate(h.pid)
	if err != nil {
		logger.Error("failed to terminate worker process tree", internallog.Error(err))
	}
	if outcome != nil {
		logOutcome(logger, outcome)
	}
	recordStopStep("tree_kill", err)
	_ = s.events.LogStopStep(h.runID, "tree_kill", err)
}

func logOutcome(logger *slog.Logger, outcome *lifecycle.TreeOutcome) {
	for _, e := range outcome.Entries {
		switch e.Result {
		case lifecycle.KillResultKilled:
			logger.Info("killed worker process", slog.Int("target_pid", e.PID))
		case lifecycle.KillResultAlreadyExited:
			logger.Debug("worker process already exited", slog.Int("target_pid", e.PID))
		default:
			logger.Error("failed to kill worker process", slog.Int("target_pid", e.PID), internallog.Error(e.Err))
		}
	}
}

func (s *Supervisor) awaitReap(proc *lifecycle.Process, logger *slog.Logger) {
	timer := time.NewTimer(s.reapTimeout)
	defer timer.Stop()
	select {
	case <-proc.Done():
	case <-timer.C:
		logger.Warn("worker not reaped after kill", internallog.Duration("waited", s.reapTimeout.Milliseconds()))
	}
}

// ReapOrphan kills a worker recorded in the pid file by an earlier host
// that did not shut down cleanly. It reports whether a worker was
// found. A pid that no longer belongs to a worker is discarded.
func (s *Supervisor) ReapOrphan() (bool, error) {
	pid, err := s.pidFile.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		_ = s.pidFile.Remove()
		return false, err
	}

	s.mu.Lock()
	ours := s.handle.pid == pid
	s.mu.Unlock()
	if ours {
		return false, nil
	}

	if !s.isWorker(pid) {
		s.logger.Debug("discarding stale worker pid file", slog.Int(internallog.PIDKey, pid))
		return false, s.pidFile.Remove()
	}
	if !s.terminator.Supported() {
		return false, nil
	}

	logger := s.logger.With(slog.Int(internallog.PIDKey, pid))
	logger.Warn("reaping worker left by a previous run")
	outcome, terr := s.terminator.Terminate(pid)
	killed := 0
	if outcome != nil {
		logOutcome(logger, outcome)
		killed = outcome.Killed()
	}
	_ = s.events.LogOrphanReaped(pid, killed)
	if err := s.pidFile.Remove(); err != nil {
		return true, err
	}
	return true, terr
}

// isWorker checks the command line of pid against the packaged name and
// the development script.
func (s *Supervisor) isWorker(pid int) bool {
	if lifecycle.IsWorkerProcess(pid, s.cfg.Worker.Name) {
		return true
	}
	return s.cfg.Worker.Script != "" &&
		lifecycle.IsWorkerProcess(pid, filepath.Base(filepath.FromSlash(s.cfg.Worker.Script)))
}

// processSink writes to the process-wide log sink.
type processSink struct{}

func (processSink) Log(message string) {
	logsink.Log(message)
}
