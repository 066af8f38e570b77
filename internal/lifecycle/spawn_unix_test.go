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
	"bufio"
	"io"
	"os/exec"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestSpawner_DoneWhenDescendantHoldsPipes(t *testing.T) {
	requireSpawn(t)
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	handlerDone := make(chan struct{})
	spawner := NewSpawner()
	spawner.DrainGrace = 100 * time.Millisecond
	proc, err := spawner.Spawn(LaunchSpec{
		Path: "sh",
		Args: []string{"-c", "sleep 30 & echo started; exit 7"},
		Stdout: func(r io.Reader) {
			defer close(handlerDone)
			scanner := bufio.NewScanner(r)
			for scanner.Scan() {
			}
		},
	})
	skipOnSpawnError(t, err)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	// The background sleep shares the shell's process group.
	t.Cleanup(func() { _ = unix.Kill(-proc.PID(), unix.SIGKILL) })

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done() not closed while a descendant holds stdout")
	}
	if code := proc.ExitCode(); code != 7 {
		t.Errorf("ExitCode() = %d, want 7", code)
	}

	select {
	case <-handlerDone:
	case <-time.After(5 * time.Second):
		t.Error("stdout handler still blocked after the pipes were abandoned")
	}
}
