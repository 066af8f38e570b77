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

package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adjacentListeners opens listeners on two consecutive loopback ports.
func adjacentListeners(t *testing.T) (net.Listener, net.Listener) {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		first, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := first.Addr().(*net.TCPAddr).Port
		if port >= 65535 {
			first.Close()
			continue
		}
		second, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port+1))
		if err != nil {
			first.Close()
			continue
		}
		return first, second
	}
	t.Skip("could not reserve two adjacent ports")
	return nil, nil
}

func serveHealth(t *testing.T, l net.Listener, status int) {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
	}))
	srv.Listener.Close()
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)
}

func portOf(l net.Listener) uint16 {
	return uint16(l.Addr().(*net.TCPAddr).Port)
}

func TestSweep_ReturnsLowestHealthyPort(t *testing.T) {
	low, high := adjacentListeners(t)
	serveHealth(t, low, http.StatusOK)
	serveHealth(t, high, http.StatusOK)

	port, err := Sweep(context.Background(), SweepOptions{
		Start:        portOf(low),
		End:          portOf(high),
		ProbeTimeout: time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, portOf(low), port)
}

func TestSweep_SkipsUnhealthyPort(t *testing.T) {
	low, high := adjacentListeners(t)
	serveHealth(t, low, http.StatusServiceUnavailable)
	serveHealth(t, high, http.StatusOK)

	port, err := Sweep(context.Background(), SweepOptions{
		Start:        portOf(low),
		End:          portOf(high),
		ProbeTimeout: time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, portOf(high), port)
}

func TestSweep_NothingAnswers(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := portOf(l)
	l.Close()

	_, err = Sweep(context.Background(), SweepOptions{Start: port, End: port})
	assert.True(t, errors.Is(err, ErrNoPort), "got %v", err)
}

func TestSweep_ProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	port := uint16(srv.Listener.Addr().(*net.TCPAddr).Port)
	start := time.Now()
	_, err := Sweep(context.Background(), SweepOptions{
		Start:        port,
		End:          port,
		ProbeTimeout: 50 * time.Millisecond,
	})

	assert.ErrorIs(t, err, ErrNoPort)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSweep_InvalidRange(t *testing.T) {
	_, err := Sweep(context.Background(), SweepOptions{Start: 10, End: 5})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoPort))
}
