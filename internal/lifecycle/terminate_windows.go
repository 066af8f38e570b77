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

//go:build windows

package lifecycle

import (
	"bufio"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var (
	taskkillSuccess  = regexp.MustCompile(`SUCCESS: .*?PID (\d+)`)
	taskkillNotFound = regexp.MustCompile(`ERROR: .*"(\d+)" not found`)
)

type windowsTerminator struct{}

func newPlatformTerminator() Terminator {
	return windowsTerminator{}
}

func (windowsTerminator) Supported() bool {
	_, err := exec.LookPath("taskkill")
	return err == nil
}

// Terminate runs taskkill /T /F, which kills children before the root.
func (windowsTerminator) Terminate(pid int) (*TreeOutcome, error) {
	cmd := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F")
	cmd.SysProcAttr = hiddenWindowAttr()
	output, runErr := cmd.CombinedOutput()

	outcome := parseTaskkill(pid, string(output))
	if runErr != nil && len(outcome.Entries) == 0 {
		return outcome, fmt.Errorf("taskkill failed: %w: %s", runErr, strings.TrimSpace(string(output)))
	}
	return outcome, nil
}

func parseTaskkill(root int, output string) *TreeOutcome {
	outcome := &TreeOutcome{Root: root}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := taskkillSuccess.FindStringSubmatch(line); m != nil {
			pid, _ := strconv.Atoi(m[1])
			outcome.Entries = append(outcome.Entries, KillEntry{PID: pid, Result: KillResultKilled})
			continue
		}
		if m := taskkillNotFound.FindStringSubmatch(line); m != nil {
			pid, _ := strconv.Atoi(m[1])
			outcome.Entries = append(outcome.Entries, KillEntry{PID: pid, Result: KillResultAlreadyExited})
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			outcome.Entries = append(outcome.Entries, KillEntry{PID: root, Result: KillResultFailed, Err: fmt.Errorf("%s", line)})
		}
	}
	return outcome
}
