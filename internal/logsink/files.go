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

package logsink

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Files lists the log file set in dir oldest first: numbered backups
// from the highest index down, then the active file. Missing files are
// skipped.
func Files(dir, fileName string) ([]string, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}

	names, err := doublestar.Glob(os.DirFS(dir), fileName+".*")
	if err != nil {
		return nil, err
	}

	type backup struct {
		path  string
		index int
	}
	var backups []backup
	for _, name := range names {
		n, err := strconv.Atoi(strings.TrimPrefix(name, fileName+"."))
		if err != nil || n < 1 {
			continue
		}
		backups = append(backups, backup{path: filepath.Join(dir, name), index: n})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].index > backups[j].index
	})

	files := make([]string, 0, len(backups)+1)
	for _, b := range backups {
		files = append(files, b.path)
	}
	active := filepath.Join(dir, fileName)
	if info, err := os.Stat(active); err == nil && !info.IsDir() {
		files = append(files, active)
	}
	return files, nil
}
