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
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/tombee/tether/internal/commands/shared"
	"github.com/tombee/tether/internal/config"
	"github.com/tombee/tether/internal/supervisor"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Mode     string   `json:"mode,omitempty"`
	Worker   string   `json:"worker,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and worker launch",
		Long: `Validate the configuration file and check that the worker can be launched.

Checks performed:
  - YAML syntax and setting ranges
  - Launch mode resolution (development or packaged)
  - The worker script or bundled executable exists
  - The interpreter is on PATH (development mode)
  - The storage directory can be created

With --strict, warnings are treated as errors.`,
		Example: `  # Validate configuration
  tether config validate

  # Get validation result as JSON
  tether config validate --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return outputValidationResult(cmd, validate(), strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

func validate() ValidationResult {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return ValidationResult{Errors: []string{err.Error()}}
	}

	var result ValidationResult

	resolver := supervisor.NewResolver(cfg.Worker, shared.IsDevBuild())
	result.Mode = resolver.Mode()
	launch, err := resolver.Resolve()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.Worker = launch.Path
		if launch.Mode == config.ModeDevelopment {
			if _, err := exec.LookPath(launch.Path); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("interpreter %q not found on PATH", launch.Path))
			}
			if len(launch.Args) > 0 {
				if _, err := os.Stat(launch.Args[0]); err != nil {
					result.Warnings = append(result.Warnings, fmt.Sprintf("worker script %s not found", launch.Args[0]))
				}
			}
		}
	}

	if dir, err := cfg.ResolveStorageDir(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else if err := checkWritable(dir); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("storage directory %s is not writable: %v", dir, err))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// checkWritable creates dir if needed and writes a probe file in it.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tether-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func outputValidationResult(cmd *cobra.Command, result ValidationResult, strict bool) error {
	failed := !result.Valid || (strict && len(result.Warnings) > 0)

	if shared.GetJSON() {
		if err := shared.EmitJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		if result.Mode != "" {
			fmt.Fprintln(out, shared.RenderKV("mode", result.Mode))
		}
		if result.Worker != "" {
			fmt.Fprintln(out, shared.RenderKV("worker", result.Worker))
		}
		for _, e := range result.Errors {
			fmt.Fprintln(out, shared.RenderError(e))
		}
		for _, w := range result.Warnings {
			fmt.Fprintln(out, shared.RenderWarn(w))
		}
		if !failed {
			fmt.Fprintln(out, shared.RenderOK("configuration is valid"))
		}
	}

	if failed {
		return shared.NewInvalidConfigError("configuration is invalid", nil)
	}
	return nil
}
