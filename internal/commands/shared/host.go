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

package shared

import (
	"github.com/tombee/tether/internal/client"
	"github.com/tombee/tether/internal/config"
)

// LoadConfig loads the config named by --config (or the default
// location) and applies --storage-dir.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewInvalidConfigError("failed to load config", err)
	}
	if dir := GetStorageDir(); dir != "" {
		cfg.StorageDir = dir
	}
	return cfg, nil
}

// StorageDir returns the resolved storage directory.
func StorageDir() (string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return "", err
	}
	dir, err := cfg.ResolveStorageDir()
	if err != nil {
		return "", NewFailure("failed to resolve storage directory", err)
	}
	return dir, nil
}

// HostClient returns a client for the running host.
func HostClient() (*client.Client, error) {
	dir, err := StorageDir()
	if err != nil {
		return nil, err
	}
	c, err := client.FromEnvironment(dir)
	if err != nil {
		return nil, HostError("cannot reach tether host", err)
	}
	return c, nil
}
