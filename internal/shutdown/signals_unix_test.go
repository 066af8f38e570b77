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

//go:build !windows

package shutdown

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSignals(t *testing.T) {
	stopper := &fakeStopper{}
	exit := &exitRecorder{}
	c := newTestCoordinator(stopper, exit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.WatchSignals(ctx, syscall.SIGUSR1)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("signal did not trigger shutdown")
	}
	assert.Equal(t, TriggerSignal, c.Winner())
	assert.Equal(t, int32(1), stopper.calls.Load())
}
