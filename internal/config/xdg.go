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

package config

import (
	"os"
	"path/filepath"
	"runtime"

	tethererrors "github.com/tombee/tether/pkg/errors"
)

// ConfigDir returns the XDG config directory for tether.
// Respects XDG_CONFIG_HOME; otherwise ~/.config/tether on every platform.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tether"), nil
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir returns the per-user application data directory for appID:
//   - Linux and other Unix: $XDG_DATA_HOME/<appID> or ~/.local/share/<appID>
//   - macOS: ~/Library/Application Support/<appID>
//   - Windows: %APPDATA%\<appID>
//
// The directory is not created.
func DataDir(appID string) (string, error) {
	switch runtime.GOOS {
	case "darwin", "windows":
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, appID), nil
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appID), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appID), nil
}

// ResolveStorageDir returns the configured storage directory, falling
// back to DataDir(AppID).
func (c *Config) ResolveStorageDir() (string, error) {
	if c.StorageDir != "" {
		return filepath.Abs(c.StorageDir)
	}
	dir, err := DataDir(c.AppID)
	if err != nil {
		return "", tethererrors.Wrap(err, "resolving application data directory")
	}
	return dir, nil
}

// LogDir returns <storage>/logs.
func (c *Config) LogDir() (string, error) {
	dir, err := c.ResolveStorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}
