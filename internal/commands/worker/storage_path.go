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

package worker

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombee/tether/internal/client"
	"github.com/tombee/tether/internal/commands/shared"
)

// NewStoragePathCommand creates the storage-path command
func NewStoragePathCommand() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "storage-path",
		Short: "Print the worker data file path",
		Annotations: map[string]string{
			"group": "worker",
		},
		Long: `Print the path of the worker's data file inside the storage directory.

By default the running host is asked. With --offline the path is computed
from the config without contacting a host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				return offlineStoragePath(cmd)
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				path, err := c.StoragePath(ctx)
				if err != nil {
					return fail(cmd, "storage-path", shared.HostError("storage path unavailable", err))
				}
				return succeed(cmd, "storage-path", path, path)
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Compute the path from config without a running host")

	return cmd
}

func offlineStoragePath(cmd *cobra.Command) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	dir, err := cfg.ResolveStorageDir()
	if err != nil {
		return fail(cmd, "storage-path", shared.NewFailure("failed to resolve storage directory", err))
	}
	path := filepath.Join(dir, cfg.Worker.DataFile)
	return succeed(cmd, "storage-path", path, path)
}
