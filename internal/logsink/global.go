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
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

var (
	defaultOnce sync.Once
	defaultSink atomic.Pointer[Sink]
	defaultErr  error
)

// Init sets up the process-wide sink. Only the first call has any
// effect; later calls return the first call's result.
func Init(opts Options) error {
	defaultOnce.Do(func() {
		var s *Sink
		s, defaultErr = New(opts)
		if defaultErr == nil {
			defaultSink.Store(s)
		}
	})
	return defaultErr
}

// Default returns the process-wide sink, or nil before a successful Init.
func Default() *Sink {
	return defaultSink.Load()
}

// Log writes message through the process-wide sink. Before Init the
// message goes to stderr.
func Log(message string) {
	if s := Default(); s != nil {
		s.Log(message)
		return
	}
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", message)
}

// Logf is Log with formatting.
func Logf(format string, args ...any) {
	Log(fmt.Sprintf(format, args...))
}
