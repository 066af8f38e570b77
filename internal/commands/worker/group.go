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

package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tether/internal/client"
	"github.com/tombee/tether/internal/commands/shared"
	"github.com/tombee/tether/internal/supervisor"
)

// newClient is replaced in tests.
var newClient = shared.HostClient

// NewCommand creates the worker command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Control the worker of a running host",
		Annotations: map[string]string{
			"group": "worker",
		},
		Long: `Control the worker process supervised by a running 'tether run'.

Subcommands:
  start   Start or restart the worker
  stop    Stop the worker
  port    Print the worker port
  status  Health check the worker
  info    Show state, pid, port and run id`,
	}

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newPortCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newInfoCommand())

	return cmd
}

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start or restart the worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				msg, err := c.StartWorker(ctx)
				if err != nil {
					return fail(cmd, "worker start", shared.NewFailure("worker did not start", err))
				}
				return succeed(cmd, "worker start", msg, shared.RenderOK(msg))
			})
		},
	}
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				msg, err := c.StopWorker(ctx)
				if err != nil {
					return fail(cmd, "worker stop", shared.HostError("worker stop failed", err))
				}
				return succeed(cmd, "worker stop", msg, shared.RenderOK(msg))
			})
		},
	}
}

func newPortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "port",
		Short: "Print the worker port",
		Long: `Print the port the worker listens on.

If the worker has not announced its port yet, the host waits briefly and
then probes the configured port range.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				port, err := c.WorkerPort(ctx)
				if err != nil {
					return fail(cmd, "worker port", shared.NewWorkerUnavailableError("worker port unknown", err))
				}
				return succeed(cmd, "worker port", port, strconv.Itoa(int(port)))
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Health check the worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				ok, err := c.WorkerStatus(ctx)
				if err != nil {
					return fail(cmd, "worker status", shared.NewWorkerUnavailableError("worker is not healthy", err))
				}
				return succeed(cmd, "worker status", ok, shared.RenderOK("worker is healthy"))
			})
		},
	}
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show state, pid, port and run id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				snap, err := c.WorkerInfo(ctx)
				if err != nil {
					return fail(cmd, "worker info", shared.HostError("worker info failed", err))
				}
				return succeed(cmd, "worker info", snap, renderSnapshot(snap))
			})
		},
	}
}

func renderSnapshot(s supervisor.Snapshot) string {
	dash := func(v string) string {
		if v == "" || v == "0" {
			return shared.Muted.Render("-")
		}
		return v
	}
	return shared.RenderKV("state", shared.RenderState(string(s.State))) + "\n" +
		shared.RenderKV("pid", dash(strconv.Itoa(s.PID))) + "\n" +
		shared.RenderKV("port", dash(strconv.Itoa(int(s.Port)))) + "\n" +
		shared.RenderKV("run", dash(s.RunID))
}

// withClient resolves the host and runs fn with a bounded context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := newClient()
	if err != nil {
		return fail(cmd, cmd.CommandPath(), err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, client.DefaultTimeout+5*time.Second)
	defer cancel()

	return fn(ctx, c)
}

func succeed(cmd *cobra.Command, name string, data any, human string) error {
	if shared.GetJSON() {
		return shared.EmitJSONResult(cmd.OutOrStdout(), name, data)
	}
	if !shared.GetQuiet() || name == "worker port" {
		fmt.Fprintln(cmd.OutOrStdout(), human)
	}
	return nil
}

func fail(cmd *cobra.Command, name string, err error) error {
	if shared.GetJSON() {
		_ = shared.EmitJSONError(cmd.OutOrStdout(), name, []shared.JSONError{{Message: err.Error()}})
	}
	return err
}
