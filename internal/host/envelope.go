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

package host

import (
	"errors"

	tethererrors "github.com/tombee/tether/pkg/errors"
)

// Envelope is the uniform command result.
type Envelope[T any] struct {
	Success bool    `json:"success"`
	Data    *T      `json:"data"`
	Error   *string `json:"error"`
}

// OK wraps a successful result.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: &data}
}

// Fail wraps a failure with no data.
func Fail[T any](err error) Envelope[T] {
	msg := errorMessage(err)
	return Envelope[T]{Error: &msg}
}

// FailWith wraps a failure that still carries data.
func FailWith[T any](data T, err error) Envelope[T] {
	env := Fail[T](err)
	env.Data = &data
	return env
}

// Err returns the failure as an error, or nil on success.
func (e Envelope[T]) Err() error {
	if e.Success {
		return nil
	}
	if e.Error == nil {
		return errors.New("command failed")
	}
	return errors.New(*e.Error)
}

// Value returns the data, or the zero value when there is none.
func (e Envelope[T]) Value() T {
	var zero T
	if e.Data == nil {
		return zero
	}
	return *e.Data
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var uv tethererrors.UserVisibleError
	if errors.As(err, &uv) && uv.IsUserVisible() {
		if s := uv.Suggestion(); s != "" {
			return err.Error() + " (" + s + ")"
		}
	}
	return err.Error()
}
