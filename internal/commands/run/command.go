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

package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tether/internal/commands/shared"
	"github.com/tombee/tether/internal/config"
	"github.com/tombee/tether/internal/host"
	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/logsink"
)

// options holds the run flags.
type options struct {
	noAutoStart bool
	controlAddr string
	mode        string
	grace       time.Duration
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Host the worker until shutdown",
		Annotations: map[string]string{
			"group": "host",
		},
		Long: `Run hosts the worker process in the foreground.

The worker is launched according to the launch mode:
  development  Run the worker script with the configured interpreter
  packaged     Run the bundled worker executable next to tether
  auto         development for dev builds, packaged otherwise

The control API address is written to <storage>/control.addr so that
'tether worker ...' commands can reach this host.

Shutdown happens exactly once, on the first of:
  SIGINT or SIGTERM
  'tether close' (window-close)
  'tether exit' (app-exit)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noAutoStart, "no-autostart", false, "Do not launch the worker on startup")
	cmd.Flags().StringVar(&opts.controlAddr, "control-addr", "", "Control API listen address (default from config)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Launch mode: auto, development or packaged")
	cmd.Flags().DurationVar(&opts.grace, "grace", 0, "Pause after stopping the worker before exiting")

	return cmd
}

func runHost(cmd *cobra.Command, opts options) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg, opts); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	err = host.Run(ctx, host.AppOptions{
		Config:   cfg,
		Logger:   newLogger(cfg),
		DevBuild: shared.IsDevBuild(),
		Ready: func(addr string) {
			if shared.GetQuiet() || addr == "" {
				return
			}
			fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderOK("tether host listening on "+addr))
		},
	})
	if err != nil {
		return shared.NewFailure("host failed", err)
	}
	return nil
}

// applyFlags overlays command-line flags on cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) error {
	if opts.noAutoStart {
		cfg.Worker.AutoStart = false
	}
	if opts.controlAddr != "" {
		cfg.Control.Addr = opts.controlAddr
	}
	if opts.mode != "" {
		cfg.Worker.Mode = opts.mode
	}
	if cmd.Flags().Changed("grace") {
		cfg.Shutdown.Grace = opts.grace
	}
	if err := cfg.Validate(); err != nil {
		return shared.NewInvalidConfigError("invalid flags", err)
	}
	return nil
}

// newLogger builds the host logger. Environment variables win over the
// config file; --verbose wins over both.
func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := internallog.FromEnv()
	if os.Getenv("TETHER_DEBUG") == "" && os.Getenv("TETHER_LOG_LEVEL") == "" && os.Getenv("LOG_LEVEL") == "" && cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if shared.GetVerbose() {
		logCfg.Level = "debug"
	}
	if os.Getenv("LOG_FORMAT") == "" && cfg.Log.Format != "" {
		logCfg.Format = internallog.Format(cfg.Log.Format)
	}
	logCfg.AddSource = logCfg.AddSource || cfg.Log.AddSource
	logCfg.Sink = sinkFunc(logsink.Log)
	return internallog.New(logCfg)
}

type sinkFunc func(string)

func (f sinkFunc) Log(message string) { f(message) }
