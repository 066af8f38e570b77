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

/*
Package lifecycle holds the OS-facing pieces of worker supervision:
spawning with captured output, whole-tree termination, liveness and
health probes, the worker PID file and the lifecycle event log.

# Spawning

A LaunchSpec describes the command. Output is always captured through
pipes and handed to per-stream handlers; the child never inherits the
host's console. On Unix the child leads its own process group, on
Windows it is created without a console window.

	proc, err := lifecycle.NewSpawner().Spawn(lifecycle.LaunchSpec{
	    Path:   "/usr/bin/python3",
	    Args:   []string{"server/run.py"},
	    Stdout: func(r io.Reader) { ... },
	})

The process is reaped once both stream handlers return; Done reports it.

# Termination

Terminator is the platform capability for killing a process tree:

	outcome, err := lifecycle.DefaultTerminator().Terminate(pid)
	for _, e := range outcome.Entries {
	    fmt.Println(e.PID, e.Result)
	}

Unix walks the parent/child table (procfs on Linux, ps elsewhere) and
SIGKILLs leaves first, plus the process group when the root leads one.
Windows delegates to taskkill /T /F.

# Health Checking

	result := lifecycle.NewHealthChecker(lifecycle.HealthURL("127.0.0.1", 5000)).
	    WithTimeout(time.Second).
	    Check(ctx)

A probe is a single GET. Callers own any retry policy.

# PID File

The supervisor records the worker PID so a host that crashed can reap
its orphan on the next start:

	pf := lifecycle.NewPIDFileManager(filepath.Join(storage, "worker.pid"))
	pf.Write(pid)
	defer pf.Remove()

# Lifecycle Logging

	events := lifecycle.NewLifecycleLogger(filepath.Join(logs, "lifecycle.log"))
	events.LogStart(runID, "packaged", path)
*/
package lifecycle
