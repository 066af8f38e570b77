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

package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tombee/tether/internal/lifecycle"
)

// ReadHint returns the port recorded at path by WriteHint.
func ReadHint(path string) (uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	port, err := strconv.ParseUint(text, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("invalid port hint %q in %s", text, path)
	}
	return uint16(port), nil
}

// WriteHint records port at path, creating the parent directory.
func WriteHint(path string, port uint16) error {
	if port == 0 {
		return fmt.Errorf("refusing to record port 0")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create hint directory: %w", err)
	}
	if err := lifecycle.WriteFileAtomic(path, []byte(strconv.Itoa(int(port)))); err != nil {
		return fmt.Errorf("failed to write port hint: %w", err)
	}
	return nil
}
