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
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/tether/internal/commands/shared"
	"github.com/tombee/tether/internal/host"
)

// newClient is replaced in tests.
var newClient = shared.HostClient

// NewCloseCommand creates the close command
func NewCloseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the host window (window-close shutdown)",
		Annotations: map[string]string{
			"group": "host",
		},
		Long: `Send the window-close trigger to the running host.

The host stops the worker and exits. If another shutdown is already in
progress the request is acknowledged and ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.CloseWindow(cmd.Context()); err != nil {
				return shared.HostError("close failed", err)
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("shutdown requested"))
			}
			return nil
		},
	}
}

// NewExitCommand creates the exit command
func NewExitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "Exit the host (app-exit shutdown)",
		Annotations: map[string]string{
			"group": "host",
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.Exit(cmd.Context()); err != nil {
				return shared.HostError("exit failed", err)
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("shutdown requested"))
			}
			return nil
		},
	}
}

// NewEventsCommand creates the events command
func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Stream host events such as worker-port-ready",
		Annotations: map[string]string{
			"group": "host",
		},
		Long: `Print events from the running host, one per line.

The latest value of each event is printed first, then new events as they
happen. Streaming ends when the host shuts down or on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = c.Events(ctx, func(msg host.Message) bool {
				printEvent(cmd, msg)
				return true
			})
			if err != nil && ctx.Err() == nil {
				return shared.HostError("events failed", err)
			}
			return nil
		},
	}
}

func printEvent(cmd *cobra.Command, msg host.Message) {
	if shared.GetJSON() {
		_ = shared.EmitJSON(cmd.OutOrStdout(), msg)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", shared.Bold.Render(msg.Event), msg.Data)
}
