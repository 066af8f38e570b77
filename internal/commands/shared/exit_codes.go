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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/tether/internal/client"
	pkgerrors "github.com/tombee/tether/pkg/errors"
)

// Exit codes for tether commands
const (
	ExitSuccess           = 0
	ExitFailure           = 1
	ExitInvalidConfig     = 2
	ExitHostNotRunning    = 3
	ExitWorkerUnavailable = 4
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewFailure creates an error for general command failures
func NewFailure(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitFailure, Message: msg, Cause: cause}
}

// NewInvalidConfigError creates an error for config files that fail to
// load or validate
func NewInvalidConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidConfig, Message: msg, Cause: cause}
}

// NewWorkerUnavailableError creates an error for a worker that is not
// running, unreachable or unhealthy
func NewWorkerUnavailableError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitWorkerUnavailable, Message: msg, Cause: cause}
}

// HostError maps a control API failure to an ExitError. A host that is
// not running gets its own exit code.
func HostError(msg string, err error) *ExitError {
	if client.IsHostNotRunning(err) {
		return &ExitError{Code: ExitHostNotRunning, Message: msg, Cause: err}
	}
	return NewFailure(msg, err)
}

// ExitCode returns the exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// HandleExitError prints err with any suggestion and exits with the
// matching code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(ReportError(os.Stderr, err))
}

// ReportError writes err and its guidance to w and returns the exit code.
func ReportError(w io.Writer, err error) int {
	fmt.Fprintln(w, RenderError("Error: "+err.Error()))
	printUserVisibleSuggestion(w, err)

	var hnr *client.HostNotRunningError
	if errors.As(err, &hnr) {
		fmt.Fprintf(w, "\n%s\n", hnr.Guidance())
	}
	return ExitCode(err)
}

// printUserVisibleSuggestion checks if an error implements UserVisibleError
// and prints the suggestion if available.
func printUserVisibleSuggestion(w io.Writer, err error) {
	var userErr pkgerrors.UserVisibleError
	if !errors.As(err, &userErr) || !userErr.IsUserVisible() {
		return
	}
	if suggestion := userErr.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
