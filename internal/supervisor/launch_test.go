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

package supervisor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/tether/internal/config"
)

func testResolver(t *testing.T, worker config.WorkerConfig) *Resolver {
	t.Helper()
	return &Resolver{
		Worker:     worker,
		Getwd:      func() (string, error) { return t.TempDir(), nil },
		Executable: func() (string, error) { return "", errors.New("no executable") },
		LookupEnv:  func(string) (string, bool) { return "", false },
		GOOS:       "linux",
		GOARCH:     "amd64",
	}
}

func TestResolver_Mode(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		devBuild bool
		env      string
		want     string
	}{
		{"explicit development", config.ModeDevelopment, false, "", config.ModeDevelopment},
		{"explicit packaged wins over dev build", config.ModePackaged, true, "1", config.ModePackaged},
		{"auto release build", config.ModeAuto, false, "", config.ModePackaged},
		{"auto dev build", config.ModeAuto, true, "", config.ModeDevelopment},
		{"auto with TETHER_DEV", config.ModeAuto, false, "true", config.ModeDevelopment},
		{"auto with falsy TETHER_DEV", config.ModeAuto, false, "0", config.ModePackaged},
		{"empty means auto", "", true, "", config.ModeDevelopment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testResolver(t, config.WorkerConfig{Mode: tt.mode})
			r.DevBuild = tt.devBuild
			r.LookupEnv = func(key string) (string, bool) {
				if key == "TETHER_DEV" && tt.env != "" {
					return tt.env, true
				}
				return "", false
			}
			assert.Equal(t, tt.want, r.Mode())
		})
	}
}

func TestResolver_ProjectRoot(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		root := t.TempDir()
		r := testResolver(t, config.WorkerConfig{ProjectRoot: root, ShellDir: "src-tauri"})
		got, err := r.ProjectRoot()
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("parent of shell dir", func(t *testing.T) {
		root := t.TempDir()
		shell := filepath.Join(root, "src-tauri")
		r := testResolver(t, config.WorkerConfig{ShellDir: "src-tauri", Script: "server/run.py"})
		r.Getwd = func() (string, error) { return shell, nil }

		got, err := r.ProjectRoot()
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("ancestor of executable", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "server"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "server", "run.py"), nil, 0o644))
		exe := filepath.Join(root, "target", "debug", "tether")

		r := testResolver(t, config.WorkerConfig{ShellDir: "src-tauri", Script: "server/run.py"})
		r.Executable = func() (string, error) { return exe, nil }

		got, err := r.ProjectRoot()
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("falls back to cwd", func(t *testing.T) {
		cwd := t.TempDir()
		r := testResolver(t, config.WorkerConfig{ShellDir: "src-tauri", Script: "server/run.py"})
		r.Getwd = func() (string, error) { return cwd, nil }

		got, err := r.ProjectRoot()
		require.NoError(t, err)
		assert.Equal(t, cwd, got)
	})
}

func TestResolver_Development(t *testing.T) {
	root := t.TempDir()
	worker := config.Default().Worker
	worker.Mode = config.ModeDevelopment
	worker.ProjectRoot = root
	worker.Env = map[string]string{"EXTRA": "1"}

	launch, err := testResolver(t, worker).Resolve()
	require.NoError(t, err)

	assert.Equal(t, config.ModeDevelopment, launch.Mode)
	assert.Equal(t, "python", launch.Path)
	assert.Equal(t, []string{filepath.Join(root, "server", "run.py")}, launch.Args)
	assert.Equal(t, root, launch.Dir)
	assert.Equal(t, []string{"FLASK_ENV=development", "LOG_LEVEL_DEBUG=true", "EXTRA=1"}, launch.Env)
}

func TestResolver_Packaged(t *testing.T) {
	worker := config.Default().Worker
	worker.Mode = config.ModePackaged

	t.Run("prefers target triple", func(t *testing.T) {
		dir := t.TempDir()
		worker.ResourceDir = dir
		for _, name := range []string{"flask-api", "flask-api-x86_64-unknown-linux-gnu"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o755))
		}

		launch, err := testResolver(t, worker).Resolve()
		require.NoError(t, err)
		assert.Equal(t, config.ModePackaged, launch.Mode)
		assert.Equal(t, filepath.Join(dir, "flask-api-x86_64-unknown-linux-gnu"), launch.Path)
		assert.Empty(t, launch.Args)
	})

	t.Run("falls back to plain name", func(t *testing.T) {
		dir := t.TempDir()
		worker.ResourceDir = dir
		require.NoError(t, os.WriteFile(filepath.Join(dir, "flask-api"), nil, 0o755))

		launch, err := testResolver(t, worker).Resolve()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "flask-api"), launch.Path)
	})

	t.Run("executable directory by default", func(t *testing.T) {
		dir := t.TempDir()
		worker.ResourceDir = ""
		require.NoError(t, os.WriteFile(filepath.Join(dir, "flask-api"), nil, 0o755))

		r := testResolver(t, worker)
		r.Executable = func() (string, error) { return filepath.Join(dir, "tether"), nil }
		launch, err := r.Resolve()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "flask-api"), launch.Path)
	})

	t.Run("missing", func(t *testing.T) {
		dir := t.TempDir()
		worker.ResourceDir = dir
		require.NoError(t, os.Mkdir(filepath.Join(dir, "flask-api"), 0o755))

		_, err := testResolver(t, worker).Resolve()
		require.ErrorIs(t, err, ErrMissingExecutable)
		assert.Contains(t, err.Error(), filepath.Join(dir, "flask-api-x86_64-unknown-linux-gnu"))
		assert.Contains(t, err.Error(), filepath.Join(dir, "flask-api"))
	})
}

func TestResolver_Candidates(t *testing.T) {
	r := testResolver(t, config.WorkerConfig{Name: "flask-api"})

	r.GOOS, r.GOARCH = "windows", "amd64"
	assert.Equal(t, []string{
		filepath.Join("res", "flask-api-x86_64-pc-windows-msvc.exe"),
		filepath.Join("res", "flask-api.exe"),
	}, r.Candidates("res"))

	r.GOOS, r.GOARCH = "plan9", "amd64"
	assert.Equal(t, []string{filepath.Join("res", "flask-api")}, r.Candidates("res"))
}

func TestTargetTriple(t *testing.T) {
	assert.Equal(t, "aarch64-apple-darwin", TargetTriple("darwin", "arm64"))
	assert.Equal(t, "x86_64-unknown-linux-gnu", TargetTriple("linux", "amd64"))
	assert.Equal(t, "", TargetTriple("freebsd", "riscv64"))
}
