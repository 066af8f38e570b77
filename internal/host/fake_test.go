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

package host

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tombee/tether/internal/shutdown"
	"github.com/tombee/tether/internal/supervisor"
)

type fakeWorker struct {
	startErr   error
	stopErr    error
	port       uint16
	portErr    error
	healthy    bool
	statusErr  error
	storage    string
	storageErr error

	starts atomic.Int32
	stops  atomic.Int32
}

func (f *fakeWorker) Start(context.Context) error {
	f.starts.Add(1)
	return f.startErr
}

func (f *fakeWorker) Stop(context.Context) error {
	f.stops.Add(1)
	return f.stopErr
}

func (f *fakeWorker) Port(context.Context) (uint16, error) { return f.port, f.portErr }

func (f *fakeWorker) Status(context.Context) (bool, error) { return f.healthy, f.statusErr }

func (f *fakeWorker) StoragePath() (string, error) { return f.storage, f.storageErr }

func (f *fakeWorker) Snapshot() supervisor.Snapshot {
	return supervisor.Snapshot{State: supervisor.StateRunning, PID: 42, Port: f.port, RunID: "run-1"}
}

type recordingRequester struct {
	mu       sync.Mutex
	triggers []shutdown.Trigger
	called   chan struct{}
}

func newRecordingRequester() *recordingRequester {
	return &recordingRequester{called: make(chan struct{}, 8)}
}

func (r *recordingRequester) Request(_ context.Context, ev shutdown.Event) bool {
	r.mu.Lock()
	r.triggers = append(r.triggers, ev.Trigger)
	r.mu.Unlock()
	r.called <- struct{}{}
	return true
}

func (r *recordingRequester) seen() []shutdown.Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shutdown.Trigger(nil), r.triggers...)
}
