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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tombee/tether/internal/config"
	"github.com/tombee/tether/internal/lifecycle"
	internallog "github.com/tombee/tether/internal/log"
	"github.com/tombee/tether/internal/logsink"
	"github.com/tombee/tether/internal/shutdown"
	"github.com/tombee/tether/internal/supervisor"
)

// ControlAddrFile holds the control API address inside the storage
// directory while the host runs.
const ControlAddrFile = "control.addr"

// serverShutdownTimeout bounds draining the control API at shutdown.
const serverShutdownTimeout = 5 * time.Second

// ControlAddrPath returns the control address file for storageDir.
func ControlAddrPath(storageDir string) string {
	return filepath.Join(storageDir, ControlAddrFile)
}

// AppOptions configures Run.
type AppOptions struct {
	Config *config.Config

	// Logger overrides the logger built from Config.Log.
	Logger *slog.Logger

	// DevBuild marks a development build for launch mode auto.
	DevBuild bool

	// Resolver overrides the worker launch resolver.
	Resolver supervisor.LaunchResolver

	// Exit is called once shutdown completes. Default: no-op, so Run
	// returns and the caller exits.
	Exit func(code int)

	// Ready, if set, is called with the control address once the API is
	// up and before the worker is started.
	Ready func(addr string)
}

type stopFunc func(ctx context.Context) error

func (f stopFunc) Stop(ctx context.Context) error { return f(ctx) }

// Run hosts the worker until a shutdown trigger fires: a window-close
// or app-exit request on the control API, SIGINT or SIGTERM, or ctx
// being cancelled. Only failure to create the storage directory or to
// bind the control API is fatal.
func Run(ctx context.Context, opts AppOptions) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	storageDir, err := cfg.ResolveStorageDir()
	if err != nil {
		return fmt.Errorf("resolving storage directory: %w", err)
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	logDir := filepath.Join(storageDir, "logs")

	if err := logsink.Init(logsink.Options{
		Dir:          logDir,
		FileName:     cfg.Log.FileName,
		MaxFileSize:  cfg.Log.MaxFileSize,
		MaxBackups:   cfg.Log.MaxBackups,
		MaxTotalSize: cfg.Log.MaxTotalSize,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: error log unavailable: %v\n", err)
	}

	logger := opts.Logger
	if logger == nil {
		logCfg := internallog.FromEnv()
		if cfg.Log.Level != "" && os.Getenv("TETHER_LOG_LEVEL") == "" && os.Getenv("TETHER_DEBUG") == "" {
			logCfg.Level = cfg.Log.Level
		}
		if cfg.Log.Format != "" {
			logCfg.Format = internallog.Format(cfg.Log.Format)
		}
		logCfg.AddSource = logCfg.AddSource || cfg.Log.AddSource
		if sink := logsink.Default(); sink != nil {
			logCfg.Sink = sink
		}
		logger = internallog.New(logCfg)
	}

	events := lifecycle.NewLifecycleLogger(filepath.Join(logDir, "lifecycle.log"))
	broadcaster := NewBroadcaster(logger)

	supOpts := []supervisor.Option{
		supervisor.WithLogger(logger),
		supervisor.WithEmitter(broadcaster),
		supervisor.WithDevBuild(opts.DevBuild),
		supervisor.WithLifecycleLogger(events),
	}
	if opts.Resolver != nil {
		supOpts = append(supOpts, supervisor.WithLaunchResolver(opts.Resolver))
	}
	sup, err := supervisor.New(cfg, supOpts...)
	if err != nil {
		return err
	}

	if reaped, err := sup.ReapOrphan(); err != nil {
		logger.Warn("orphan check failed", internallog.Error(err))
	} else if reaped {
		logger.Info("reaped worker left by a previous run")
	}

	commands := NewCommands(sup, logger)
	server := NewServer(commands, broadcaster, logger)
	addrPath := ControlAddrPath(storageDir)

	serveErr := make(chan error, 1)
	if cfg.Control.Enabled {
		if err := server.Listen(cfg.Control.Addr); err != nil {
			return err
		}
		if err := lifecycle.WriteFileAtomic(addrPath, []byte(server.Addr()+"\n")); err != nil {
			logger.Warn("failed to write control address", internallog.Error(err))
		}
		go func() {
			serveErr <- server.Serve()
		}()
	}

	teardown := stopFunc(func(ctx context.Context) error {
		stopErr := sup.Close(ctx)
		broadcaster.Close()

		sctx, cancel := context.WithTimeout(ctx, serverShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			logger.Warn("control API did not drain", internallog.Error(err))
		}
		if cfg.Control.Enabled {
			_ = os.Remove(addrPath)
		}
		return stopErr
	})

	exit := opts.Exit
	if exit == nil {
		exit = func(int) {}
	}
	coord := shutdown.New(teardown,
		shutdown.WithLogger(logger),
		shutdown.WithGrace(cfg.Shutdown.Grace),
		shutdown.WithExit(exit),
		shutdown.WithLifecycleLogger(events),
	)
	server.SetRequester(coord)
	coord.WatchSignals(ctx)

	if opts.Ready != nil {
		opts.Ready(server.Addr())
	}

	if cfg.Worker.AutoStart {
		go func() {
			if env := commands.StartWorker(context.WithoutCancel(ctx)); !env.Success {
				logger.Error("worker did not start", slog.String("reason", *env.Error))
			}
		}()
	}

	var runErr error
	select {
	case <-coord.Done():
		return nil
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("control API failed", internallog.Error(err))
			runErr = err
		}
	}

	coord.Request(context.Background(), shutdown.Event{Trigger: shutdown.TriggerAppExit})
	<-coord.Done()
	return runErr
}
