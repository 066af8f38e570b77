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
	"strings"
)

// IsProcessRunning checks if a process with the given PID exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return isProcessRunning(pid)
}

// IsWorkerProcess reports whether pid is alive and its command line
// mentions name. Used to avoid killing an unrelated process that reused
// a PID recorded by an earlier run.
func IsWorkerProcess(pid int, name string) bool {
	if name == "" || !IsProcessRunning(pid) {
		return false
	}
	cmd, err := getProcessCommand(pid)
	if err != nil {
		return false
	}
	return strings.Contains(cmd, name)
}
