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
	"fmt"

	tethererrors "github.com/tombee/tether/pkg/errors"
)

// Kind classifies supervisor failures.
type Kind string

const (
	KindSpawnFailed        Kind = "SpawnFailed"
	KindMissingExecutable  Kind = "MissingExecutable"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindPortUnknown        Kind = "PortUnknown"
	KindUnreachable        Kind = "Unreachable"
	KindUnhealthyResponse  Kind = "UnhealthyResponse"
	KindClosed             Kind = "Closed"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrSpawnFailed        = &Error{Kind: KindSpawnFailed}
	ErrMissingExecutable  = &Error{Kind: KindMissingExecutable}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrPortUnknown        = &Error{Kind: KindPortUnknown}
	ErrUnreachable        = &Error{Kind: KindUnreachable}
	ErrUnhealthyResponse  = &Error{Kind: KindUnhealthyResponse}
	ErrClosed             = &Error{Kind: KindClosed}
)

// Error is returned by every Supervisor operation that can fail.
type Error struct {
	Kind Kind

	// Op is the operation that failed: start, port, status, storage.
	Op string

	// Reason is a short human-readable explanation.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, so errors.Is(err, ErrPortUnknown) holds for any
// PortUnknown failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// IsUserVisible implements errors.UserVisibleError.
func (e *Error) IsUserVisible() bool {
	return true
}

// UserMessage implements errors.UserVisibleError.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindSpawnFailed:
		return "The worker process could not be started"
	case KindMissingExecutable:
		return "No packaged worker executable was found"
	case KindStorageUnavailable:
		return "The storage directory is not available"
	case KindPortUnknown:
		return "The worker port is not known yet"
	case KindUnreachable:
		return "The worker is not reachable"
	case KindUnhealthyResponse:
		return "The worker reported an unhealthy status"
	case KindClosed:
		return "The host is shutting down"
	}
	return e.Error()
}

// Suggestion implements errors.UserVisibleError.
func (e *Error) Suggestion() string {
	switch e.Kind {
	case KindSpawnFailed:
		return "Check that the interpreter or worker executable exists and is executable"
	case KindMissingExecutable:
		return "Reinstall the application, or set worker.resource_dir (TETHER_RESOURCE_DIR) to the directory holding the worker"
	case KindStorageUnavailable:
		return "Check permissions on the storage directory, or set storage_dir (TETHER_STORAGE_DIR)"
	case KindPortUnknown:
		return "Start the worker with 'tether worker start' and retry"
	case KindUnreachable:
		return "Start the worker with 'tether worker start'"
	case KindUnhealthyResponse:
		return "Inspect the worker output with 'tether logs'"
	case KindClosed:
		return "Run 'tether run' to start a new host"
	}
	return ""
}

var _ tethererrors.UserVisibleError = (*Error)(nil)

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Reason: fmt.Sprintf(format, args...), Err: err}
}
