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

package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"

	"github.com/tombee/tether/internal/host"
)

// HostAddrEnv overrides the control address file.
const HostAddrEnv = "TETHER_HOST_ADDR"

// ResolveAddr returns the control API address: TETHER_HOST_ADDR if set,
// otherwise the contents of <storageDir>/control.addr.
func ResolveAddr(storageDir string) (string, error) {
	if addr := strings.TrimSpace(os.Getenv(HostAddrEnv)); addr != "" {
		return strings.TrimPrefix(addr, "http://"), nil
	}

	path := host.ControlAddrPath(storageDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &HostNotRunningError{AddrFile: path, Err: err}
		}
		return "", fmt.Errorf("failed to read control address: %w", err)
	}

	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", &HostNotRunningError{AddrFile: path, Err: errors.New("control address file is empty")}
	}
	return addr, nil
}

// FromEnvironment creates a client for the host serving storageDir.
func FromEnvironment(storageDir string, opts ...Option) (*Client, error) {
	addr, err := ResolveAddr(storageDir)
	if err != nil {
		return nil, err
	}
	return New(addr, opts...)
}

// HostNotRunningError indicates no host is serving the control API.
type HostNotRunningError struct {
	Addr     string
	AddrFile string
	Err      error
}

func (e *HostNotRunningError) Error() string {
	switch {
	case e.Addr != "":
		return fmt.Sprintf("tether host is not running (address: %s)", e.Addr)
	case e.AddrFile != "":
		return fmt.Sprintf("tether host is not running (no address in %s)", e.AddrFile)
	}
	return "tether host is not running"
}

func (e *HostNotRunningError) Unwrap() error {
	return e.Err
}

// Guidance returns user-friendly guidance for starting the host.
func (e *HostNotRunningError) Guidance() string {
	return `The tether host is not running.

Start it with:
  tether run                    # Foreground
  tether run --no-autostart     # Without launching the worker

Or point the CLI at a running host:
  export TETHER_HOST_ADDR=127.0.0.1:<port>`
}

// IsHostNotRunning checks if an error indicates the host is not running.
func IsHostNotRunning(err error) bool {
	if err == nil {
		return false
	}

	var hnr *HostNotRunningError
	if errors.As(err, &hnr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	return strings.Contains(err.Error(), "connection refused")
}
