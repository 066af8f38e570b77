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

package logs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombee/tether/internal/commands/shared"
	"github.com/tombee/tether/internal/logsink"
)

// lifecycleFile is the supervisor's JSON-lines event log.
const lifecycleFile = "lifecycle.log"

// NewCommand creates the logs command
func NewCommand() *cobra.Command {
	var (
		lines     int
		lifecycle bool
		all       bool
		pathOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the host error log",
		Annotations: map[string]string{
			"group": "diagnostics",
		},
		Long: `Show the host error log from <storage>/logs.

The error log holds host errors and everything the worker wrote to
stderr. With --lifecycle the supervisor's event log (start, port, exit,
stop, shutdown) is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			dir, err := cfg.LogDir()
			if err != nil {
				return shared.NewFailure("failed to resolve log directory", err)
			}

			name := cfg.Log.FileName
			if lifecycle {
				name = lifecycleFile
			}
			if pathOnly {
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, name))
				return nil
			}

			files, err := logsink.Files(dir, name)
			if err != nil {
				return shared.NewFailure("failed to list logs", err)
			}
			if !all && len(files) > 1 {
				files = files[len(files)-1:]
			}
			if len(files) == 0 {
				if !shared.GetQuiet() {
					fmt.Fprintln(cmd.ErrOrStderr(), shared.Muted.Render("no log entries in "+dir))
				}
				return nil
			}
			return tail(cmd.OutOrStdout(), files, lines)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	cmd.Flags().BoolVar(&lifecycle, "lifecycle", false, "Show the lifecycle event log")
	cmd.Flags().BoolVar(&all, "all", false, "Include rotated backups")
	cmd.Flags().BoolVar(&pathOnly, "path", false, "Print the log file path and exit")

	return cmd
}

// tail writes the last n lines across files, read in order. n <= 0
// writes everything.
func tail(w io.Writer, files []string, n int) error {
	var ring []string
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return shared.NewFailure("failed to read log", err)
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			ring = append(ring, sc.Text())
			if n > 0 && len(ring) > n {
				ring = ring[1:]
			}
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return shared.NewFailure("failed to read log", err)
		}
	}

	bw := bufio.NewWriter(w)
	for _, line := range ring {
		fmt.Fprintln(bw, line)
	}
	return bw.Flush()
}
