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

// Package config loads tether's YAML configuration and environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	tethererrors "github.com/tombee/tether/pkg/errors"
)

// Launch modes for the worker.
const (
	ModeAuto        = "auto"
	ModeDevelopment = "development"
	ModePackaged    = "packaged"
)

// Config is the complete tether configuration.
type Config struct {
	// AppID names the per-user application data directory.
	AppID string `yaml:"app_id"`

	// StorageDir overrides the application data directory shared with
	// the worker. Empty means DataDir(AppID).
	StorageDir string `yaml:"storage_dir,omitempty"`

	Worker   WorkerConfig   `yaml:"worker"`
	Ports    PortsConfig    `yaml:"ports"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Control  ControlConfig  `yaml:"control"`
	Log      LogConfig      `yaml:"log"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
}

// WorkerConfig describes how the worker is launched.
type WorkerConfig struct {
	// Name identifies the worker in logs and is the packaged executable's
	// base name.
	Name string `yaml:"name"`

	// Mode is auto, development or packaged.
	Mode string `yaml:"mode"`

	// Interpreter and Script form the development launch command.
	Interpreter string `yaml:"interpreter"`
	Script      string `yaml:"script"`

	// ProjectRoot pins the development working directory.
	ProjectRoot string `yaml:"project_root,omitempty"`

	// ShellDir is the directory name that, when it is the current
	// directory, means the project root is its parent.
	ShellDir string `yaml:"shell_dir"`

	// ResourceDir holds packaged executables. Empty means the directory
	// of the running binary.
	ResourceDir string `yaml:"resource_dir,omitempty"`

	// Marker is the bootstrap token printed before the port.
	Marker string `yaml:"marker"`

	// StorageEnv is the variable carrying the data file path.
	StorageEnv string `yaml:"storage_env"`

	// DataFile is the worker's data file inside the storage directory.
	DataFile string `yaml:"data_file"`

	// DevEnv is added to the environment in development mode.
	DevEnv map[string]string `yaml:"dev_env,omitempty"`

	// Env is added to the environment in every mode.
	Env map[string]string `yaml:"env,omitempty"`

	// AutoStart starts the worker when the host comes up.
	AutoStart bool `yaml:"auto_start"`
}

// PortsConfig covers port discovery.
type PortsConfig struct {
	Host       string `yaml:"host"`
	SweepStart int    `yaml:"sweep_start"`
	SweepEnd   int    `yaml:"sweep_end"`
	Default    int    `yaml:"default"`
	HintFile   string `yaml:"hint_file"`
}

// TimeoutsConfig bounds every outbound call.
type TimeoutsConfig struct {
	// Probe limits each sweep probe.
	Probe time.Duration `yaml:"probe"`
	// Health limits the status health check.
	Health time.Duration `yaml:"health"`
	// Shutdown limits the graceful stop request.
	Shutdown time.Duration `yaml:"shutdown"`
	// PortRecheck is the pause before re-reading an unknown port.
	PortRecheck time.Duration `yaml:"port_recheck"`
	// GracefulWait is how long to let an acknowledged worker exit on
	// its own before forcing it.
	GracefulWait time.Duration `yaml:"graceful_wait"`
}

// ControlConfig configures the local control API.
type ControlConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig configures structured logging and the error log sink.
type LogConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	AddSource    bool   `yaml:"add_source,omitempty"`
	FileName     string `yaml:"file_name"`
	MaxFileSize  int64  `yaml:"max_file_size"`
	MaxBackups   int    `yaml:"max_backups"`
	MaxTotalSize int64  `yaml:"max_total_size"`
}

// ShutdownConfig configures the shutdown coordinator.
type ShutdownConfig struct {
	// Grace is slept after the worker is stopped and before the host
	// exits.
	Grace time.Duration `yaml:"grace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AppID: "tether",
		Worker: WorkerConfig{
			Name:        "flask-api",
			Mode:        ModeAuto,
			Interpreter: "python",
			Script:      "server/run.py",
			ShellDir:    "src-tauri",
			Marker:      "FLASK_PORT:",
			StorageEnv:  "DB_PATH",
			DataFile:    "chat.db",
			DevEnv: map[string]string{
				"LOG_LEVEL_DEBUG": "true",
				"FLASK_ENV":       "development",
			},
			AutoStart: true,
		},
		Ports: PortsConfig{
			Host:       "127.0.0.1",
			SweepStart: 5000,
			SweepEnd:   5100,
			Default:    5000,
			HintFile:   "port.txt",
		},
		Timeouts: TimeoutsConfig{
			Probe:        200 * time.Millisecond,
			Health:       3 * time.Second,
			Shutdown:     10 * time.Second,
			PortRecheck:  500 * time.Millisecond,
			GracefulWait: 2 * time.Second,
		},
		Control: ControlConfig{
			Enabled: true,
			Addr:    "127.0.0.1:0",
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			FileName:     "host_error.log",
			MaxFileSize:  10 * 1024 * 1024,
			MaxBackups:   5,
			MaxTotalSize: 50 * 1024 * 1024,
		},
	}
}

// Load reads configPath (a missing file means defaults), applies
// environment overrides and validates the result. An empty configPath
// uses ConfigPath().
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = os.Getenv("TETHER_CONFIG")
	}
	if configPath == "" {
		if p, err := ConfigPath(); err == nil {
			configPath = p
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &tethererrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills zero values left by a sparse config file.
func (c *Config) applyDefaults() {
	d := Default()

	if c.AppID == "" {
		c.AppID = d.AppID
	}
	if c.Worker.Name == "" {
		c.Worker.Name = d.Worker.Name
	}
	if c.Worker.Mode == "" {
		c.Worker.Mode = d.Worker.Mode
	}
	if c.Worker.Interpreter == "" {
		c.Worker.Interpreter = d.Worker.Interpreter
	}
	if c.Worker.Script == "" {
		c.Worker.Script = d.Worker.Script
	}
	if c.Worker.ShellDir == "" {
		c.Worker.ShellDir = d.Worker.ShellDir
	}
	if c.Worker.Marker == "" {
		c.Worker.Marker = d.Worker.Marker
	}
	if c.Worker.StorageEnv == "" {
		c.Worker.StorageEnv = d.Worker.StorageEnv
	}
	if c.Worker.DataFile == "" {
		c.Worker.DataFile = d.Worker.DataFile
	}
	if c.Ports.Host == "" {
		c.Ports.Host = d.Ports.Host
	}
	if c.Ports.SweepStart == 0 {
		c.Ports.SweepStart = d.Ports.SweepStart
	}
	if c.Ports.SweepEnd == 0 {
		c.Ports.SweepEnd = d.Ports.SweepEnd
	}
	if c.Ports.Default == 0 {
		c.Ports.Default = d.Ports.Default
	}
	if c.Ports.HintFile == "" {
		c.Ports.HintFile = d.Ports.HintFile
	}
	if c.Timeouts.Probe == 0 {
		c.Timeouts.Probe = d.Timeouts.Probe
	}
	if c.Timeouts.Health == 0 {
		c.Timeouts.Health = d.Timeouts.Health
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = d.Timeouts.Shutdown
	}
	if c.Timeouts.PortRecheck == 0 {
		c.Timeouts.PortRecheck = d.Timeouts.PortRecheck
	}
	if c.Control.Addr == "" {
		c.Control.Addr = d.Control.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.FileName == "" {
		c.Log.FileName = d.Log.FileName
	}
	if c.Log.MaxFileSize == 0 {
		c.Log.MaxFileSize = d.Log.MaxFileSize
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxTotalSize == 0 {
		c.Log.MaxTotalSize = d.Log.MaxTotalSize
	}
}

// loadFromEnv applies TETHER_* overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("TETHER_STORAGE_DIR"); val != "" {
		c.StorageDir = val
	}
	if val := os.Getenv("TETHER_WORKER_MODE"); val != "" {
		c.Worker.Mode = strings.ToLower(val)
	}
	if val := os.Getenv("TETHER_RESOURCE_DIR"); val != "" {
		c.Worker.ResourceDir = val
	}
	if val := os.Getenv("TETHER_PROJECT_ROOT"); val != "" {
		c.Worker.ProjectRoot = val
	}
	if val := os.Getenv("TETHER_CONTROL_ADDR"); val != "" {
		c.Control.Addr = val
	}
	if val := os.Getenv("TETHER_AUTO_START"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Worker.AutoStart = b
		}
	}
	if val := os.Getenv("TETHER_SHUTDOWN_GRACE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Shutdown.Grace = d
		}
	}
	if val := os.Getenv("TETHER_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
}

// Validate reports the first invalid setting as a *ConfigError.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return &tethererrors.ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
	}

	switch c.Worker.Mode {
	case ModeAuto, ModeDevelopment, ModePackaged:
	default:
		return invalid("worker.mode", "must be one of [auto, development, packaged], got %q", c.Worker.Mode)
	}
	if strings.TrimSpace(c.Worker.Marker) == "" {
		return invalid("worker.marker", "must not be blank")
	}
	if strings.ContainsAny(c.Worker.Name, `/\`) {
		return invalid("worker.name", "must be a bare name, got %q", c.Worker.Name)
	}
	if !validPort(c.Ports.SweepStart) || !validPort(c.Ports.SweepEnd) {
		return invalid("ports", "sweep range must be within 1-65535, got %d-%d", c.Ports.SweepStart, c.Ports.SweepEnd)
	}
	if c.Ports.SweepEnd < c.Ports.SweepStart {
		return invalid("ports.sweep_end", "must be >= sweep_start (%d), got %d", c.Ports.SweepStart, c.Ports.SweepEnd)
	}
	if !validPort(c.Ports.Default) {
		return invalid("ports.default", "must be within 1-65535, got %d", c.Ports.Default)
	}
	for key, d := range map[string]time.Duration{
		"timeouts.probe":        c.Timeouts.Probe,
		"timeouts.health":       c.Timeouts.Health,
		"timeouts.shutdown":     c.Timeouts.Shutdown,
		"timeouts.port_recheck": c.Timeouts.PortRecheck,
	} {
		if d <= 0 {
			return invalid(key, "must be positive, got %v", d)
		}
	}
	if c.Timeouts.GracefulWait < 0 {
		return invalid("timeouts.graceful_wait", "must not be negative, got %v", c.Timeouts.GracefulWait)
	}
	if c.Shutdown.Grace < 0 {
		return invalid("shutdown.grace", "must not be negative, got %v", c.Shutdown.Grace)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "must be one of [json, text], got %q", c.Log.Format)
	}
	if c.Log.MaxBackups < 1 {
		return invalid("log.max_backups", "must be at least 1, got %d", c.Log.MaxBackups)
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
