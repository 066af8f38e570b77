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
	"os/exec"
	"reflect"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestUnixTerminator_Results(t *testing.T) {
	var killed []int
	term := &unixTerminator{
		table: func() (map[int][]int, error) {
			return map[int][]int{900001: {900002, 900003}, 900002: {900004}}, nil
		},
		kill: func(pid int, sig unix.Signal) error {
			if sig != unix.SIGKILL {
				t.Errorf("kill(%d) signal = %v, want SIGKILL", pid, sig)
			}
			killed = append(killed, pid)
			switch pid {
			case 900003:
				return unix.ESRCH
			case 900004:
				return unix.EPERM
			}
			return nil
		},
	}

	outcome, err := term.Terminate(900001)
	if err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}

	if want := []int{-900001, 900004, 900002, 900003, 900001}; !reflect.DeepEqual(killed, want) {
		t.Errorf("kill order = %v, want %v", killed, want)
	}

	results := map[int]KillResult{}
	for _, e := range outcome.Entries {
		results[e.PID] = e.Result
	}
	want := map[int]KillResult{
		900004: KillResultFailed,
		900002: KillResultKilled,
		900003: KillResultAlreadyExited,
		900001: KillResultKilled,
	}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("results = %v, want %v", results, want)
	}
}

func TestUnixTerminator_KillsRealTree(t *testing.T) {
	requireSpawn(t)
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	proc, err := NewSpawner().Spawn(LaunchSpec{Path: "sh", Args: []string{"-c", "sleep 60 & sleep 60 & wait"}})
	skipOnSpawnError(t, err)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	var children []int
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		table, err := processTable()
		if err != nil {
			t.Fatalf("processTable() error = %v", err)
		}
		if children = descendants(table, proc.PID()); len(children) >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(children) < 2 {
		_ = proc.Kill()
		t.Fatalf("expected two sleeping children, found %v", children)
	}

	term := DefaultTerminator()
	if !term.Supported() {
		t.Fatal("Supported() = false on Unix")
	}
	outcome, err := term.Terminate(proc.PID())
	if err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if outcome.Root != proc.PID() || len(outcome.Entries) != len(children)+1 {
		t.Errorf("outcome = %+v", outcome)
	}

	select {
	case <-proc.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("root was not reaped after Terminate()")
	}

	for _, e := range outcome.Entries {
		if e.Result == KillResultFailed {
			t.Errorf("entry %s", e)
		}
	}
}
