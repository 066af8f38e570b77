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

package supervisor

import (
	"log/slog"
	"net/http"

	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/lifecycle"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithSpawner replaces the process spawner.
func WithSpawner(spawner *lifecycle.Spawner) Option {
	return func(s *Supervisor) {
		s.spawner = spawner
	}
}

// WithTerminator replaces the platform tree terminator.
// This is primarily used for testing.
func WithTerminator(t lifecycle.Terminator) Option {
	return func(s *Supervisor) {
		s.terminator = t
	}
}

// WithLaunchResolver replaces the config-driven launch resolution.
func WithLaunchResolver(r LaunchResolver) Option {
	return func(s *Supervisor) {
		s.resolver = r
	}
}

// WithEmitter sets where worker-port-ready events are broadcast.
func WithEmitter(e Emitter) Option {
	return func(s *Supervisor) {
		s.emitter = e
	}
}

// WithSink sets where worker stderr lines are recorded. Defaults to the
// process-wide log sink.
func WithSink(sink internallog.ErrorSink) Option {
	return func(s *Supervisor) {
		s.sink = sink
	}
}

// WithHTTPClient sets the client used for health probes and the
// graceful stop request. Per-call timeouts still come from config.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Supervisor) {
		s.client = client
	}
}

// WithDevBuild makes auto launch mode resolve to development.
func WithDevBuild(dev bool) Option {
	return func(s *Supervisor) {
		s.devBuild = dev
	}
}

// WithLifecycleLogger sets the lifecycle event log. Nil disables it.
func WithLifecycleLogger(l *lifecycle.LifecycleLogger) Option {
	return func(s *Supervisor) {
		s.events = l
		s.eventsSet = true
	}
}
