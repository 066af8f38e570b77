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
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"
)

// stillActive is the exit code GetExitCodeProcess reports for a live process.
const stillActive = 259

func isProcessRunning(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// Access denied still means the process exists.
		return err == windows.ERROR_ACCESS_DENIED
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// getProcessCommand returns the full command line, so a worker hosted by
// an interpreter still matches on its script name. It falls back to the
// image name from tasklist when the CIM query is unavailable.
func getProcessCommand(pid int) (string, error) {
	if line, err := cimCommandLine(pid); err == nil && line != "" {
		return line, nil
	}
	return tasklistImage(pid)
}

func cimCommandLine(pid int) (string, error) {
	query := fmt.Sprintf("(Get-CimInstance Win32_Process -Filter 'ProcessId=%d').CommandLine", pid)
	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", query)
	cmd.SysProcAttr = hiddenWindowAttr()
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("command line query failed: %w", err)
	}
	return parseCommandLine(output), nil
}

// parseCommandLine normalizes the PowerShell output: BOM and CRLF are
// stripped and wrapped lines are joined.
func parseCommandLine(output []byte) string {
	text := strings.TrimPrefix(string(output), "\ufeff")
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func tasklistImage(pid int) (string, error) {
	cmd := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid), "/FO", "CSV", "/NH")
	cmd.SysProcAttr = hiddenWindowAttr()
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tasklist failed: %w", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(output))).ReadAll()
	if err != nil || len(records) == 0 || len(records[0]) < 2 {
		return "", fmt.Errorf("no process with PID %d", pid)
	}
	return records[0][0], nil
}
