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


package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tombee/tether/internal/commands/shared"
	"github.com/tombee/tether/internal/supervisor"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	DevBuild  bool   `json:"dev_build"`
	Target    string `json:"target"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash and build date for tether.

The target triple is the suffix tether looks for on a bundled worker
executable in packaged mode. Development builds launch the worker
script with an interpreter when the launch mode is auto.`,
		Args: cobra.NoArgs,
		RunE: runVersion,
	}
}

// Current collects the build metadata for this binary.
func Current() VersionInfo {
	v, c, b := shared.GetVersion()
	return VersionInfo{
		Version:   v,
		Commit:    c,
		BuildDate: b,
		DevBuild:  shared.IsDevBuild(),
		Target:    supervisor.TargetTriple(runtime.GOOS, runtime.GOARCH),
		GoVersion: runtime.Version(),
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := Current()

	if shared.GetJSON() {
		return shared.EmitJSONResult(cmd.OutOrStdout(), "version", info)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, shared.Bold.Render("tether "+info.Version))
	fmt.Fprintln(out, shared.RenderKV("commit", info.Commit))
	fmt.Fprintln(out, shared.RenderKV("built", info.BuildDate))
	fmt.Fprintln(out, shared.RenderKV("target", info.Target))
	fmt.Fprintln(out, shared.RenderKV("go", info.GoVersion))
	if info.DevBuild {
		fmt.Fprintln(out, shared.Muted.Render("development build: auto mode runs the worker script"))
	}
	return nil
}
