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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/tether/internal/config"
)

// Launch is a resolved worker command, before storage and stream wiring.
type Launch struct {
	// Mode is development or packaged.
	Mode string

	Path string
	Args []string
	Dir  string
	Env  []string
}

// LaunchResolver decides how to launch the worker.
type LaunchResolver interface {
	Resolve() (*Launch, error)
}

// Resolver is the default LaunchResolver, driven by WorkerConfig.
type Resolver struct {
	Worker config.WorkerConfig

	// DevBuild makes auto mode resolve to development.
	DevBuild bool

	// Getwd, Executable and LookupEnv default to the os package.
	Getwd      func() (string, error)
	Executable func() (string, error)
	LookupEnv  func(string) (string, bool)

	// GOOS and GOARCH select the packaged target triple. Default: runtime.
	GOOS   string
	GOARCH string
}

// NewResolver creates a Resolver for the current process.
func NewResolver(worker config.WorkerConfig, devBuild bool) *Resolver {
	return &Resolver{
		Worker:     worker,
		DevBuild:   devBuild,
		Getwd:      os.Getwd,
		Executable: os.Executable,
		LookupEnv:  os.LookupEnv,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
}

// Mode returns the effective launch mode.
func (r *Resolver) Mode() string {
	if r.Worker.Mode != "" && r.Worker.Mode != config.ModeAuto {
		return r.Worker.Mode
	}
	if r.DevBuild {
		return config.ModeDevelopment
	}
	if v, ok := r.LookupEnv("TETHER_DEV"); ok {
		if b, err := strconv.ParseBool(v); err == nil && b {
			return config.ModeDevelopment
		}
	}
	return config.ModePackaged
}

// Resolve implements LaunchResolver.
func (r *Resolver) Resolve() (*Launch, error) {
	if r.Mode() == config.ModeDevelopment {
		return r.development()
	}
	return r.packaged()
}

func (r *Resolver) development() (*Launch, error) {
	root, err := r.ProjectRoot()
	if err != nil {
		return nil, newError(KindSpawnFailed, "start", err, "cannot locate project root")
	}

	env := envList(r.Worker.DevEnv)
	env = append(env, envList(r.Worker.Env)...)

	return &Launch{
		Mode: config.ModeDevelopment,
		Path: r.Worker.Interpreter,
		Args: []string{filepath.Join(root, filepath.FromSlash(r.Worker.Script))},
		Dir:  root,
		Env:  env,
	}, nil
}

// ProjectRoot finds the directory the development script lives under:
// the configured root; else the parent of the current directory when
// that is the shell directory; else the nearest ancestor of the
// executable holding the script; else the current directory.
func (r *Resolver) ProjectRoot() (string, error) {
	if r.Worker.ProjectRoot != "" {
		return filepath.Abs(r.Worker.ProjectRoot)
	}

	cwd, err := r.Getwd()
	if err != nil {
		return "", err
	}
	if r.Worker.ShellDir != "" && filepath.Base(cwd) == r.Worker.ShellDir {
		return filepath.Dir(cwd), nil
	}

	if exe, err := r.Executable(); err == nil {
		script := filepath.FromSlash(r.Worker.Script)
		for dir := filepath.Dir(exe); ; dir = filepath.Dir(dir) {
			if fileExists(filepath.Join(dir, script)) {
				return dir, nil
			}
			if parent := filepath.Dir(dir); parent == dir {
				break
			}
		}
	}

	return cwd, nil
}

func (r *Resolver) packaged() (*Launch, error) {
	dir := r.Worker.ResourceDir
	if dir == "" {
		exe, err := r.Executable()
		if err != nil {
			return nil, newError(KindMissingExecutable, "start", err, "cannot locate resource directory")
		}
		dir = filepath.Dir(exe)
	}

	candidates := r.Candidates(dir)
	for _, path := range candidates {
		if fileExists(path) {
			return &Launch{
				Mode: config.ModePackaged,
				Path: path,
				Dir:  dir,
				Env:  envList(r.Worker.Env),
			}, nil
		}
	}

	return nil, newError(KindMissingExecutable, "start", nil,
		"no worker executable found (checked %s)", strings.Join(candidates, ", "))
}

// Candidates lists the packaged executable paths in dir, most specific
// first.
func (r *Resolver) Candidates(dir string) []string {
	ext := ""
	if r.GOOS == "windows" {
		ext = ".exe"
	}

	var names []string
	if triple := TargetTriple(r.GOOS, r.GOARCH); triple != "" {
		names = append(names, r.Worker.Name+"-"+triple+ext)
	}
	names = append(names, r.Worker.Name+ext)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths
}

var targetTriples = map[string]string{
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
	"linux/386":     "i686-unknown-linux-gnu",
	"linux/arm":     "armv7-unknown-linux-gnueabihf",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
	"windows/386":   "i686-pc-windows-msvc",
}

// TargetTriple returns the sidecar suffix for a platform, or "" when
// the platform has none.
func TargetTriple(goos, goarch string) string {
	return targetTriples[goos+"/"+goarch]
}

func envList(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, m[k]))
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
