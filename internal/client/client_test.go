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

package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tombee/tether/internal/host"
	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/supervisor"
)

type stubWorker struct {
	port    uint16
	portErr error
	healthy bool
}

func (s *stubWorker) Start(context.Context) error { return nil }
func (s *stubWorker) Stop(context.Context) error { return nil }
func (s *stubWorker) Port(context.Context) (uint16, error) { return s.port, s.portErr }
func (s *stubWorker) Status(context.Context) (bool, error) { return s.healthy, nil }
func (s *stubWorker) StoragePath() (string, error) { return "/data/chat.db", nil }
func (s *stubWorker) Snapshot() supervisor.Snapshot { return supervisor.Snapshot{State: supervisor.StateRunning, Port: s.port} }

func newTestClient(t *testing.T, w host.Worker) (*Client, *host.Broadcaster) {
	t.Helper()
	b := host.NewBroadcaster(internallog.Discard())
	srv := host.NewServer(host.NewCommands(w, internallog.Discard()), b, internallog.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		b.Close()
		ts.Close()
	})

	c, err := New(strings.TrimPrefix(ts.URL, "http://"), WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c, b
}

func TestClientCommands(t *testing.T) {
	c, _ := newTestClient(t, &stubWorker{port: 5003, healthy: true})
	ctx := context.Background()

	msg, err := c.StartWorker(ctx)
	if err != nil {
		t.Fatalf("StartWorker failed: %v", err)
	}
	if msg != "Worker started" {
		t.Errorf("Expected 'Worker started', got %q", msg)
	}

	port, err := c.WorkerPort(ctx)
	if err != nil {
		t.Fatalf("WorkerPort failed: %v", err)
	}
	if port != 5003 {
		t.Errorf("Expected port 5003, got %d", port)
	}

	ok, err := c.WorkerStatus(ctx)
	if err != nil || !ok {
		t.Errorf("Expected healthy worker, got %v, %v", ok, err)
	}

	path, err := c.StoragePath(ctx)
	if err != nil || path != "/data/chat.db" {
		t.Errorf("Unexpected storage path %q, %v", path, err)
	}

	info, err := c.WorkerInfo(ctx)
	if err != nil {
		t.Fatalf("WorkerInfo failed: %v", err)
	}
	if info.State != supervisor.StateRunning {
		t.Errorf("Expected running, got %s", info.State)
	}

	if _, err := c.StopWorker(ctx); err != nil {
		t.Errorf("StopWorker failed: %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestClientEnvelopeError(t *testing.T) {
	w := &stubWorker{portErr: &supervisor.Error{Kind: supervisor.KindPortUnknown, Op: "port", Reason: "no worker"}}
	c, _ := newTestClient(t, w)

	_, err := c.WorkerPort(context.Background())
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !strings.Contains(err.Error(), "PortUnknown") {
		t.Errorf("Expected PortUnknown in %q", err)
	}
}

func TestClientEvents(t *testing.T) {
	c, b := newTestClient(t, &stubWorker{})
	b.Emit(supervisor.EventPortReady, uint16(5002))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []host.Message
	err := c.Events(ctx, func(msg host.Message) bool {
		got = append(got, msg)
		return false
	})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	if got[0].Event != supervisor.EventPortReady || string(got[0].Data) != "5002" {
		t.Errorf("Unexpected event %s %s", got[0].Event, got[0].Data)
	}
}

func TestClientEventsEndWithHost(t *testing.T) {
	c, b := newTestClient(t, &stubWorker{})

	done := make(chan error, 1)
	go func() {
		done <- c.Events(context.Background(), func(host.Message) bool { return true })
	}()

	time.Sleep(50 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean end of stream, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Events did not return after the host closed the stream")
	}
}

func TestClientHostNotRunning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c, err := New(addr, WithTransport(&http.Transport{}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.WorkerPort(context.Background())
	if !IsHostNotRunning(err) {
		t.Fatalf("Expected host-not-running, got %v", err)
	}
	var hnr *HostNotRunningError
	if !errors.As(err, &hnr) {
		t.Fatalf("Expected *HostNotRunningError, got %T", err)
	}
	if hnr.Addr != addr {
		t.Errorf("Expected addr %s, got %s", addr, hnr.Addr)
	}
	if !strings.Contains(hnr.Guidance(), "tether run") {
		t.Errorf("Guidance should mention tether run")
	}
}

func TestResolveAddr(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		t.Setenv(HostAddrEnv, "http://127.0.0.1:9999")
		addr, err := ResolveAddr(t.TempDir())
		if err != nil || addr != "127.0.0.1:9999" {
			t.Errorf("Got %q, %v", addr, err)
		}
	})

	t.Run("file", func(t *testing.T) {
		t.Setenv(HostAddrEnv, "")
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, host.ControlAddrFile), []byte("127.0.0.1:4567\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		addr, err := ResolveAddr(dir)
		if err != nil || addr != "127.0.0.1:4567" {
			t.Errorf("Got %q, %v", addr, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(HostAddrEnv, "")
		_, err := ResolveAddr(t.TempDir())
		if !IsHostNotRunning(err) {
			t.Errorf("Expected host-not-running, got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		t.Setenv(HostAddrEnv, "")
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, host.ControlAddrFile), []byte("  \n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := FromEnvironment(dir); !IsHostNotRunning(err) {
			t.Errorf("Expected host-not-running, got %v", err)
		}
	})
}

func TestNewRequiresAddr(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("Expected error for empty address")
	}
}

func TestIsHostNotRunning(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), true},
		{&HostNotRunningError{}, true},
	}
	for _, tt := range tests {
		if got := IsHostNotRunning(tt.err); got != tt.want {
			t.Errorf("IsHostNotRunning(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
