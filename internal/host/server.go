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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/shutdown"
)

// DefaultHeartbeat is how often an idle event stream is pinged.
const DefaultHeartbeat = 15 * time.Second

// Requester accepts shutdown requests.
type Requester interface {
	Request(ctx context.Context, ev shutdown.Event) bool
}

// Server is the loopback control API.
type Server struct {
	commands    *Commands
	broadcaster *Broadcaster
	coord       Requester
	logger      *slog.Logger
	heartbeat   time.Duration

	srv      *http.Server
	listener net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHeartbeat sets the event stream heartbeat interval.
func WithHeartbeat(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithRequester routes window-close and app-exit to r.
func WithRequester(r Requester) ServerOption {
	return func(s *Server) {
		s.coord = r
	}
}

// NewServer creates a control API server.
func NewServer(commands *Commands, broadcaster *Broadcaster, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		commands:    commands,
		broadcaster: broadcaster,
		logger:      internallog.WithComponent(logger, "control"),
		heartbeat:   DefaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRequester sets the shutdown target after construction. The
// coordinator's stopper usually needs the server, so it cannot exist
// first.
func (s *Server) SetRequester(r Requester) {
	s.coord = r
}

// Handler returns the routed control API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /commands/start-worker", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, s.commands.StartWorker(r.Context()))
	})
	mux.HandleFunc("POST /commands/stop-worker", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, s.commands.StopWorker(r.Context()))
	})
	mux.HandleFunc("GET /commands/worker-port", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, s.commands.WorkerPort(r.Context()))
	})
	mux.HandleFunc("GET /commands/worker-status", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, s.commands.CheckStatus(r.Context()))
	})
	mux.HandleFunc("GET /commands/storage-path", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, s.commands.StoragePath())
	})
	mux.HandleFunc("GET /commands/worker-info", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, s.commands.WorkerInfo())
	})

	mux.HandleFunc("POST /window/close", s.trigger(shutdown.TriggerWindowClose))
	mux.HandleFunc("POST /app/exit", s.trigger(shutdown.TriggerAppExit))

	mux.HandleFunc("GET /events", s.streamEvents)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return internallog.HTTPMiddleware(s.logger, mux)
}

// trigger acknowledges the request, then hands it to the coordinator.
// The response is written first because a winning request ends the
// process.
func (s *Server) trigger(t shutdown.Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.coord == nil {
			writeEnvelope(w, Fail[string](errors.New("shutdown is not available")))
			return
		}
		writeEnvelope(w, OK(string(t)))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		go s.coord.Request(context.Background(), shutdown.Event{Trigger: t})
	}
}

// streamEvents serves the broadcaster as server-sent events.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgs, cancel := s.broadcaster.Subscribe()
	defer cancel()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// Listen binds addr. Use Addr afterwards to learn the bound address.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve() error {
	if s.srv == nil {
		return errors.New("server is not listening")
	}
	s.logger.Info("control API listening", slog.String("addr", s.Addr()))
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Close the broadcaster first or open event streams hold it up.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
