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

package control

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/tether/internal/client"
	"github.com/tombee/tether/internal/host"
	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/shutdown"
	"github.com/tombee/tether/internal/supervisor"
)

type idleWorker struct{}

func (idleWorker) Start(context.Context) error { return nil }
func (idleWorker) Stop(context.Context) error { return nil }
func (idleWorker) Port(context.Context) (uint16, error) { return 0, supervisor.ErrPortUnknown }
func (idleWorker) Status(context.Context) (bool, error) { return false, supervisor.ErrUnreachable }
func (idleWorker) StoragePath() (string, error) { return "", nil }
func (idleWorker) Snapshot() supervisor.Snapshot { return supervisor.Snapshot{State: supervisor.StateNotStarted} }

type triggerLog struct {
	mu   sync.Mutex
	seen []shutdown.Trigger
}

func (l *triggerLog) Request(_ context.Context, ev shutdown.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, ev.Trigger)
	return true
}

func (l *triggerLog) triggers() []shutdown.Trigger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]shutdown.Trigger(nil), l.seen...)
}

func useHost(t *testing.T) (*host.Broadcaster, *triggerLog) {
	t.Helper()
	triggers := &triggerLog{}
	b := host.NewBroadcaster(internallog.Discard())
	srv := host.NewServer(host.NewCommands(idleWorker{}, internallog.Discard()), b, internallog.Discard(),
		host.WithRequester(triggers))
	ts := httptest.NewServer(srv.Handler())

	prev := newClient
	newClient = func() (*client.Client, error) {
		return client.New(strings.TrimPrefix(ts.URL, "http://"), client.WithHTTPClient(ts.Client()))
	}
	t.Cleanup(func() {
		newClient = prev
		b.Close()
		ts.Close()
	})
	return b, triggers
}

func TestCloseAndExit(t *testing.T) {
	_, triggers := useHost(t)

	for _, cmd := range []func() *cobra.Command{NewCloseCommand, NewExitCommand} {
		c := cmd()
		var out bytes.Buffer
		c.SetOut(&out)
		c.SetArgs(nil)
		require.NoError(t, c.Execute())
		assert.Contains(t, out.String(), "shutdown requested")
	}

	assert.Eventually(t, func() bool {
		return len(triggers.triggers()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []shutdown.Trigger{shutdown.TriggerWindowClose, shutdown.TriggerAppExit}, triggers.triggers())
}

func TestEventsStreamsUntilHostCloses(t *testing.T) {
	b, _ := useHost(t)
	b.Emit(supervisor.EventPortReady, uint16(5004))

	cmd := NewEventsCommand()
	var out syncBuffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "5004")
	}, 5*time.Second, 10*time.Millisecond)

	b.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("events did not end when the stream closed")
	}
	assert.Contains(t, out.String(), "worker-port-ready")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
