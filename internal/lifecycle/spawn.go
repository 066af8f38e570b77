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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// StreamHandler consumes one of the child's output streams until EOF.
type StreamHandler func(r io.Reader)

// LaunchSpec describes a worker command.
type LaunchSpec struct {
	// Path is the executable, resolved through PATH when it has no
	// separator.
	Path string
	Args []string

	// Dir is the working directory. Empty means the host's.
	Dir string

	// Env is appended to the host environment.
	Env []string

	// Stdout and Stderr receive the captured streams. Nil handlers
	// discard.
	Stdout StreamHandler
	Stderr StreamHandler
}

// DefaultDrainGrace is how long output is still read after the child
// exits before the pipes are abandoned.
const DefaultDrainGrace = 2 * time.Second

// Spawner starts worker processes with captured output.
type Spawner struct {
	// Env is the base environment. Default: os.Environ()
	Env []string

	// DrainGrace bounds reading after the child exits. A descendant that
	// inherited stdout or stderr can hold them open indefinitely.
	// Default: DefaultDrainGrace
	DrainGrace time.Duration
}

// NewSpawner creates a new process spawner.
func NewSpawner() *Spawner {
	return &Spawner{
		Env:        os.Environ(),
		DrainGrace: DefaultDrainGrace,
	}
}

// WithEnv replaces the base environment.
func (s *Spawner) WithEnv(env []string) *Spawner {
	s.Env = env
	return s
}

// Process is a spawned child. It is done once the child has been reaped
// and its output drained, or abandoned after the drain grace.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

// Spawn starts spec. The child's stdin is closed and its stdout and
// stderr are piped to the handlers on their own goroutines.
func (s *Spawner) Spawn(spec LaunchSpec) (*Process, error) {
	if spec.Path == "" {
		return nil, errors.New("launch spec has no executable")
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(append([]string(nil), s.Env...), spec.Env...)
	cmd.Stdin = nil
	cmd.SysProcAttr = workerProcAttr()

	// Plain os pipes rather than StdoutPipe, so Wait does not block on
	// descendants that still hold the write ends.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(stdoutR, stdoutW)
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeFiles(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	// The child has its own copies.
	closeFiles(stdoutW, stderrW)

	p := &Process{cmd: cmd, done: make(chan struct{})}

	var drains sync.WaitGroup
	drains.Add(2)
	go p.drain(&drains, stdoutR, spec.Stdout)
	go p.drain(&drains, stderrR, spec.Stderr)
	drained := make(chan struct{})
	go func() {
		drains.Wait()
		close(drained)
	}()

	grace := s.DrainGrace
	if grace <= 0 {
		grace = DefaultDrainGrace
	}

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()

		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-drained:
			closeFiles(stdoutR, stderrR)
		case <-timer.C:
			// A descendant kept the pipes open. Closing the read ends
			// unblocks the handlers; it runs apart because a blocked
			// read can delay Close on some platforms.
			go closeFiles(stdoutR, stderrR)
		}
		close(p.done)
	}()

	return p, nil
}

func (p *Process) drain(wg *sync.WaitGroup, r io.Reader, handler StreamHandler) {
	defer wg.Done()
	if handler == nil {
		_, _ = io.Copy(io.Discard, r)
		return
	}
	handler(r)
	// Keep the pipe empty if the handler stopped early.
	_, _ = io.Copy(io.Discard, r)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// PID returns the OS process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has been reaped and its output
// drained or abandoned.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the wait error once Done is closed. A nil error means a
// zero exit status.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// ExitCode returns the exit code, or -1 while running or when killed by
// a signal.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
	default:
		return -1
	}
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Kill sends an immediate kill to the process itself. Returns
// os.ErrProcessDone if it was already reaped.
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	return p.cmd.Process.Kill()
}

// Wait blocks until the process is reaped or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
