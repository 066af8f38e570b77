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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/tether/internal/commands/shared"
)

func isolate(t *testing.T) string {
	t.Helper()
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("TETHER_CONFIG", "")
	t.Setenv("TETHER_STORAGE_DIR", "")
	t.Setenv("TETHER_WORKER_MODE", "")
	t.Setenv("TETHER_RESOURCE_DIR", "")
	t.Setenv("TETHER_PROJECT_ROOT", "")
	t.Setenv("TETHER_DEV", "")
	shared.SetStorageDirForTest(t.TempDir())
	t.Cleanup(func() {
		shared.SetStorageDirForTest("")
		shared.SetConfigPathForTest("")
		shared.SetJSONForTest(false)
	})
	return cfgHome
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewConfigCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShowDefaults(t *testing.T) {
	isolate(t)

	out, err := execute(t, "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "using defaults") {
		t.Errorf("expected defaults notice, got:\n%s", out)
	}
	if !strings.Contains(out, "name: flask-api") {
		t.Errorf("expected worker name in YAML, got:\n%s", out)
	}
	if !strings.Contains(out, "probe: 200ms") {
		t.Errorf("expected durations as strings, got:\n%s", out)
	}
}

func TestConfigShowFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("worker:\n  name: my-worker\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	shared.SetConfigPathForTest(path)

	out, err := execute(t)
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(out, "Configuration: "+path+"\n") {
		t.Errorf("expected source path header, got:\n%s", out)
	}
	if !strings.Contains(out, "name: my-worker") {
		t.Errorf("expected file value, got:\n%s", out)
	}
}

func TestConfigShowJSON(t *testing.T) {
	isolate(t)
	shared.SetJSONForTest(true)

	out, err := execute(t, "show")
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if decoded["AppID"] != "tether" {
		t.Errorf("unexpected AppID %v", decoded["AppID"])
	}
}

func TestConfigPath(t *testing.T) {
	cfgHome := isolate(t)

	out, err := execute(t, "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(cfgHome, "tether", "config.yaml")
	if strings.TrimSpace(out) != want {
		t.Errorf("path = %q, want %q", strings.TrimSpace(out), want)
	}
}

func TestValidatePackagedMissingExecutable(t *testing.T) {
	isolate(t)
	t.Setenv("TETHER_WORKER_MODE", "packaged")
	t.Setenv("TETHER_RESOURCE_DIR", t.TempDir())

	out, err := execute(t, "validate")
	if shared.ExitCode(err) != shared.ExitInvalidConfig {
		t.Fatalf("expected invalid config, got %v", err)
	}
	if !strings.Contains(out, "MissingExecutable") {
		t.Errorf("expected missing executable error, got:\n%s", out)
	}
}

func TestValidateDevelopment(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	script := filepath.Join(root, "server", "run.py")
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(script, []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TETHER_WORKER_MODE", "development")
	t.Setenv("TETHER_PROJECT_ROOT", root)
	shared.SetJSONForTest(true)

	out, err := execute(t, "validate")
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	var result ValidationResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if !result.Valid || result.Mode != "development" {
		t.Errorf("unexpected result %+v", result)
	}
	for _, w := range result.Warnings {
		if strings.Contains(w, "worker script") {
			t.Errorf("script exists but got warning %q", w)
		}
	}
}
