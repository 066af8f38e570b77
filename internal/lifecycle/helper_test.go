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
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// helperEnv selects the behavior of TestHelperProcess when the test
// binary is re-executed as a child.
const helperEnv = "LIFECYCLE_TEST_HELPER"

// TestHelperProcess is not a real test. It is the child process used by
// the spawn and termination tests.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}

	switch mode {
	case "echo":
		fmt.Println("hello stdout")
		fmt.Fprintln(os.Stderr, "hello stderr")
		fmt.Println("env:" + os.Getenv("LIFECYCLE_EXTRA"))
		os.Exit(3)
	case "sleep":
		fmt.Println("ready")
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

// helperSpec launches this test binary in the given helper mode.
func helperSpec(mode string) LaunchSpec {
	return LaunchSpec{
		Path: os.Args[0],
		Args: []string{"-test.run=^TestHelperProcess$"},
		Env:  []string{helperEnv + "=" + mode},
	}
}

// skipOnSpawnError skips when the environment forbids fork/exec.
func skipOnSpawnError(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("Skipping: spawn not permitted in this environment: %v", err)
	}
}

func requireSpawn(t *testing.T) {
	t.Helper()
	if os.Getenv("SKIP_SPAWN_TESTS") != "" {
		t.Skip("Skipping spawn tests (SKIP_SPAWN_TESTS is set)")
	}
	if _, err := exec.LookPath(os.Args[0]); err != nil {
		t.Skipf("test binary not executable: %v", err)
	}
}
