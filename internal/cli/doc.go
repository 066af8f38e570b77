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

/*
Package cli provides the root command and shared configuration for tether's CLI.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	tether
	├── run           Host the worker until shutdown
	├── worker        start, stop, port, status, info
	├── storage-path  Print the worker data file path
	├── close         window-close shutdown trigger
	├── exit          app-exit shutdown trigger
	├── events        Stream host events
	├── logs          Show the host error or lifecycle log
	├── config        show, path, validate
	├── version       Show version
	└── help          Show help

# Global Flags

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file
	--storage-dir    Storage directory override

# Exit Codes

  - 0: Success
  - 1: General error
  - 2: Invalid configuration
  - 3: Host not running
  - 4: Worker not running, unreachable or unhealthy
*/
package cli
