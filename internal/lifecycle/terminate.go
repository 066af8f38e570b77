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

import "fmt"

// KillResult is the fate of one process in a tree termination.
type KillResult string

const (
	// KillResultKilled means the kill was delivered.
	KillResultKilled KillResult = "killed"
	// KillResultAlreadyExited means the process was gone before the kill.
	KillResultAlreadyExited KillResult = "already_exited"
	// KillResultFailed means the kill could not be delivered.
	KillResultFailed KillResult = "failed"
)

// KillEntry records what happened to one process.
type KillEntry struct {
	PID    int
	Result KillResult
	Err    error
}

// TreeOutcome lists every process a Terminate call acted on, children
// before the root.
type TreeOutcome struct {
	Root    int
	Entries []KillEntry
}

// Killed returns how many entries were killed.
func (o *TreeOutcome) Killed() int {
	n := 0
	for _, e := range o.Entries {
		if e.Result == KillResultKilled {
			n++
		}
	}
	return n
}

// Terminator kills a process and all of its descendants.
type Terminator interface {
	// Supported reports whether whole-tree termination works here.
	Supported() bool

	// Terminate kills the tree rooted at pid. The returned error covers
	// failures to enumerate or invoke; per-process results are in the
	// outcome.
	Terminate(pid int) (*TreeOutcome, error)
}

// DefaultTerminator returns the Terminator for the current platform.
func DefaultTerminator() Terminator {
	return newPlatformTerminator()
}

// descendants returns every descendant of root in table, deepest first.
func descendants(table map[int][]int, root int) []int {
	var out []int
	seen := map[int]bool{root: true}

	var walk func(pid int)
	walk = func(pid int) {
		for _, child := range table[pid] {
			if seen[child] {
				continue
			}
			seen[child] = true
			walk(child)
			out = append(out, child)
		}
	}
	walk(root)
	return out
}

func (e KillEntry) String() string {
	if e.Err != nil {
		return fmt.Sprintf("pid %d: %s (%v)", e.PID, e.Result, e.Err)
	}
	return fmt.Sprintf("pid %d: %s", e.PID, e.Result)
}
