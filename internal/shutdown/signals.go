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

package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WatchSignals turns the first of sigs into a TriggerSignal request.
// With no sigs it watches SIGINT and SIGTERM. Watching ends when ctx is
// done or shutdown completes.
func (c *Coordinator) WatchSignals(ctx context.Context, sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sigs...)

	go func() {
		// Notify stays registered through the stop so a second signal
		// cannot kill the host halfway.
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			c.logger.Info("received signal", slog.String("signal", sig.String()))
			c.Request(ctx, Event{Trigger: TriggerSignal})
		case <-ctx.Done():
		case <-c.done:
		}
	}()
}
