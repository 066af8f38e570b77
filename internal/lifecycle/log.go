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

package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LifecycleEvent is one line of the lifecycle log.
type LifecycleEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"` // "start", "port_discovered", "stop_step", ...
	RunID     string    `json:"run_id,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Port      uint16    `json:"port,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Step      string    `json:"step,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LifecycleLogger appends worker lifecycle events to a JSON-lines file.
// A nil *LifecycleLogger discards everything.
type LifecycleLogger struct {
	mu      sync.Mutex
	logPath string
	now     func() time.Time
}

// NewLifecycleLogger creates a new lifecycle logger.
func NewLifecycleLogger(logPath string) *LifecycleLogger {
	return &LifecycleLogger{
		logPath: logPath,
		now:     time.Now,
	}
}

// LogStart logs a worker launch attempt.
func (l *LifecycleLogger) LogStart(runID, mode, path string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "start",
		RunID:   runID,
		Mode:    mode,
		Success: true,
		Message: fmt.Sprintf("Launching worker: %s", path),
	})
}

// LogStartSuccess logs a successful spawn.
func (l *LifecycleLogger) LogStartSuccess(runID string, pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "start_success",
		RunID:   runID,
		PID:     pid,
		Success: true,
		Message: "Worker spawned",
	})
}

// LogStartFailure logs a failed launch.
func (l *LifecycleLogger) LogStartFailure(runID string, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "start_failure",
		RunID:   runID,
		Success: false,
		Message: "Worker failed to start",
		Error:   errString(err),
	})
}

// LogPortDiscovered logs a port learned from the marker or a sweep.
func (l *LifecycleLogger) LogPortDiscovered(runID string, port uint16, source string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "port_discovered",
		RunID:   runID,
		Port:    port,
		Success: true,
		Message: fmt.Sprintf("Port discovered via %s", source),
	})
}

// LogExit logs the worker exiting on its own.
func (l *LifecycleLogger) LogExit(runID string, pid, exitCode int, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "exit",
		RunID:   runID,
		PID:     pid,
		Success: err == nil,
		Message: fmt.Sprintf("Worker exited (code %d)", exitCode),
		Error:   errString(err),
	})
}

// LogStop logs the start of a stop sequence.
func (l *LifecycleLogger) LogStop(runID string, pid int, port uint16) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop",
		RunID:   runID,
		PID:     pid,
		Port:    port,
		Success: true,
		Message: "Worker stop initiated",
	})
}

// LogStopStep logs one escalation step (graceful, tree_kill, kill).
func (l *LifecycleLogger) LogStopStep(runID, step string, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop_step",
		RunID:   runID,
		Step:    step,
		Success: err == nil,
		Error:   errString(err),
	})
}

// LogStopComplete logs the end of a stop sequence.
func (l *LifecycleLogger) LogStopComplete(runID string, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop_complete",
		RunID:   runID,
		Success: true,
		Message: fmt.Sprintf("Worker stopped (duration: %v)", duration),
	})
}

// LogOrphanReaped logs a worker left behind by an earlier host.
func (l *LifecycleLogger) LogOrphanReaped(pid int, killed int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "orphan_reaped",
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Reaped orphaned worker (%d processes killed)", killed),
	})
}

// LogShutdown logs the host shutting down.
func (l *LifecycleLogger) LogShutdown(trigger string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "shutdown",
		Trigger: trigger,
		Success: true,
		Message: "Host shutdown",
	})
}

// writeEvent appends a lifecycle event to the log file.
func (l *LifecycleLogger) writeEvent(event LifecycleEvent) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Timestamp = l.now()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
