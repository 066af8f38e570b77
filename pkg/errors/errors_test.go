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

package errors_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tethererrors "github.com/tombee/tether/pkg/errors"
)

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		original := errors.New("permission denied")
		wrapped := tethererrors.Wrap(original, "creating storage directory")

		require.Error(t, wrapped)
		assert.Equal(t, "creating storage directory: permission denied", wrapped.Error())
		assert.ErrorIs(t, wrapped, original)
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		assert.NoError(t, tethererrors.Wrap(nil, "context"))
	})
}

func TestWrapf(t *testing.T) {
	original := errors.New("no such file")
	wrapped := tethererrors.Wrapf(original, "reading hint %s", "port.txt")

	assert.Equal(t, "reading hint port.txt: no such file", wrapped.Error())
	assert.Equal(t, original, tethererrors.Unwrap(wrapped))
	assert.NoError(t, tethererrors.Wrapf(nil, "x %d", 1))
}

func TestConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  *tethererrors.ConfigError
		want string
	}{
		{
			name: "with key",
			err:  &tethererrors.ConfigError{Key: "ports.sweep_end", Reason: "must be >= sweep_start"},
			want: "config error at ports.sweep_end: must be >= sweep_start",
		},
		{
			name: "without key",
			err:  &tethererrors.ConfigError{Reason: "file is not valid YAML"},
			want: "config error: file is not valid YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	t.Run("unwraps cause", func(t *testing.T) {
		cause := errors.New("yaml: line 3")
		err := fmt.Errorf("loading: %w", &tethererrors.ConfigError{Reason: "parse", Cause: cause})

		var cfgErr *tethererrors.ConfigError
		require.True(t, tethererrors.As(err, &cfgErr))
		assert.True(t, tethererrors.Is(err, cause))
	})
}

func TestTimeoutError(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &tethererrors.TimeoutError{Operation: "graceful shutdown", Duration: 10 * time.Second, Cause: cause}

	assert.Equal(t, "graceful shutdown operation timed out after 10s", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestJoin(t *testing.T) {
	a := errors.New("a")
	b := errors.New("b")

	joined := tethererrors.Join(a, nil, b)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.NoError(t, tethererrors.Join(nil, nil))
}
