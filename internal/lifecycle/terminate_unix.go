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

//go:build !windows

package lifecycle

import (
	"errors"

	"golang.org/x/sys/unix"
)

type unixTerminator struct {
	table func() (map[int][]int, error)
	kill  func(pid int, sig unix.Signal) error
}

func newPlatformTerminator() Terminator {
	return &unixTerminator{table: processTable, kill: unix.Kill}
}

func (t *unixTerminator) Supported() bool {
	return true
}

// Terminate SIGKILLs the process group led by pid (if any), then every
// descendant deepest first, then pid itself. Children are collected
// before anything is killed so reparenting cannot hide them.
//
// Workers are spawned as group leaders, and a group id stays reserved
// while any member lives, so the group kill still reaches children
// after the root has been reaped.
func (t *unixTerminator) Terminate(pid int) (*TreeOutcome, error) {
	outcome := &TreeOutcome{Root: pid}

	table, err := t.table()
	if err != nil {
		table = nil
	}
	targets := append(descendants(table, pid), pid)

	_ = t.kill(-pid, unix.SIGKILL)

	for _, target := range targets {
		entry := KillEntry{PID: target, Result: KillResultKilled}
		if kerr := t.kill(target, unix.SIGKILL); kerr != nil {
			if errors.Is(kerr, unix.ESRCH) {
				entry.Result = KillResultAlreadyExited
			} else {
				entry.Result = KillResultFailed
				entry.Err = kerr
			}
		}
		outcome.Entries = append(outcome.Entries, entry)
	}

	return outcome, err
}
