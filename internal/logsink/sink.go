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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/time/rate"
)

const (
	// DefaultFileName is the active log file name.
	DefaultFileName = "host_error.log"

	// DefaultMaxFileSize is the active file ceiling (10 MiB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// DefaultMaxBackups is the number of numbered backups kept.
	DefaultMaxBackups = 5

	// DefaultMaxTotalSize is the ceiling for the whole file set (50 MiB).
	DefaultMaxTotalSize int64 = 50 * 1024 * 1024

	// DefaultCleanupInterval is how often a write may trigger cleanup.
	DefaultCleanupInterval = 10 * time.Second
)

// Options configures a Sink. Zero values take the defaults above.
type Options struct {
	// Dir is the directory holding the log files. Required.
	Dir string

	FileName        string
	MaxFileSize     int64
	MaxBackups      int
	MaxTotalSize    int64
	CleanupInterval time.Duration

	// Fallback receives entries that could not be written and any
	// rotation or cleanup failure. Default: os.Stderr
	Fallback io.Writer

	// Now supplies entry timestamps. Default: time.Now
	Now func() time.Time
}

// Sink appends timestamped entries to a rotating file set.
type Sink struct {
	mu       sync.Mutex
	opts     Options
	active   string
	cleanups rate.Sometimes
}

// New creates the log directory if needed and runs an initial cleanup.
func New(opts Options) (*Sink, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("log sink requires a directory")
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}
	if opts.MaxTotalSize <= 0 {
		opts.MaxTotalSize = DefaultMaxTotalSize
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Fallback == nil {
		opts.Fallback = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	s := &Sink{
		opts:     opts,
		active:   filepath.Join(opts.Dir, opts.FileName),
		cleanups: rate.Sometimes{Interval: opts.CleanupInterval},
	}

	if err := s.Cleanup(); err != nil {
		fmt.Fprintf(opts.Fallback, "WARNING: failed to clean up logs: %v\n", err)
	}

	return s, nil
}

// Path returns the active log file path.
func (s *Sink) Path() string {
	return s.active
}

// Log appends one entry. Errors go to the fallback stream.
func (s *Sink) Log(message string) {
	entry := fmt.Sprintf("[%s] ERROR: %s\n", s.opts.Now().UTC().Format(time.RFC3339), message)

	if err := s.append(entry); err != nil {
		fmt.Fprintf(s.opts.Fallback, "failed to write log entry: %v\n%s", err, entry)
		return
	}

	s.cleanups.Do(func() {
		if err := s.Cleanup(); err != nil {
			fmt.Fprintf(s.opts.Fallback, "WARNING: failed to clean up logs: %v\n", err)
		}
	})
}

// Write logs p as a single entry, trimming one trailing newline.
func (s *Sink) Write(p []byte) (int, error) {
	s.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// append rotates when needed and writes entry, as one critical section.
func (s *Sink) append(entry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, err := os.Stat(s.active); err == nil && info.Size() >= s.opts.MaxFileSize {
		if err := s.rotate(); err != nil {
			fmt.Fprintf(s.opts.Fallback, "WARNING: failed to rotate log: %v\n", err)
		}
	}

	f, err := os.OpenFile(s.active, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(entry)
	return err
}

// rotate shifts every backup up one index, dropping the last, and moves
// the active file to index 1. Caller holds s.mu.
func (s *Sink) rotate() error {
	for i := s.opts.MaxBackups; i >= 1; i-- {
		src := s.backupPath(i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if i == s.opts.MaxBackups {
			if err := os.Remove(src); err != nil {
				return err
			}
			continue
		}
		if err := os.Rename(src, s.backupPath(i+1)); err != nil {
			return err
		}
	}
	return os.Rename(s.active, s.backupPath(1))
}

func (s *Sink) backupPath(i int) string {
	return fmt.Sprintf("%s.%d", s.active, i)
}

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// Cleanup deletes backups oldest-by-mtime first until the file set fits
// under MaxTotalSize. The active file counts toward the total but is
// never deleted.
func (s *Sink) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := doublestar.Glob(os.DirFS(s.opts.Dir), s.opts.FileName+"*")
	if err != nil {
		return err
	}

	var (
		total   int64
		backups []logFile
	)
	for _, name := range names {
		path := filepath.Join(s.opts.Dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if info.IsDir() {
			continue
		}
		total += info.Size()
		if path != s.active {
			backups = append(backups, logFile{path: path, size: info.Size(), modTime: info.ModTime()})
		}
	}

	if total <= s.opts.MaxTotalSize {
		return nil
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.Before(backups[j].modTime)
	})

	for _, f := range backups {
		if total <= s.opts.MaxTotalSize {
			break
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		total -= f.size
	}

	return nil
}
