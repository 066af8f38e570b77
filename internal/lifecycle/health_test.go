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

package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHealthURL(t *testing.T) {
	if got := HealthURL("127.0.0.1", 5042); got != "http://127.0.0.1:5042/api/health" {
		t.Errorf("HealthURL() = %q", got)
	}
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("returns success for healthy endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		result := NewHealthChecker(server.URL).Check(context.Background())

		if !result.Success {
			t.Errorf("Check() success = false, want true (error: %v)", result.Error)
		}
		if result.StatusCode != http.StatusOK {
			t.Errorf("Check() status = %d, want %d", result.StatusCode, http.StatusOK)
		}
		if result.ResponseTime <= 0 {
			t.Error("Check() response time should be positive")
		}
	})

	t.Run("unhealthy response has status and no transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		result := NewHealthChecker(server.URL).Check(context.Background())

		if result.Success {
			t.Error("Check() success = true, want false")
		}
		if result.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Check() status = %d, want %d", result.StatusCode, http.StatusServiceUnavailable)
		}
		if result.Error != nil {
			t.Errorf("Check() error = %v, want nil for a reachable endpoint", result.Error)
		}
	})

	t.Run("returns error for connection failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		result := NewHealthChecker(url).Check(context.Background())

		if result.Success {
			t.Error("Check() success = true, want false")
		}
		if result.Error == nil {
			t.Error("Check() error = nil, want non-nil")
		}
	})

	t.Run("respects the request timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		start := time.Now()
		result := NewHealthChecker(server.URL).WithTimeout(50 * time.Millisecond).Check(context.Background())

		if result.Success || result.Error == nil {
			t.Errorf("Check() = %+v, want timeout error", result)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("Check() took %v, want ~50ms", elapsed)
		}
	})
}

func TestHealthChecker_UsesProvidedClient(t *testing.T) {
	var hits atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		hits.Add(1)
		if r.URL.Path != HealthPath {
			t.Errorf("probe path = %q, want %q", r.URL.Path, HealthPath)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       http.NoBody,
			Request:    r,
		}, nil
	})

	result := NewHealthChecker(HealthURL("127.0.0.1", 1)).
		WithHTTPClient(&http.Client{Transport: rt}).
		WithTimeout(0).
		Check(context.Background())

	if !result.Success {
		t.Errorf("Check() = %+v, want success", result)
	}
	if hits.Load() != 1 {
		t.Errorf("transport hits = %d, want 1", hits.Load())
	}
}

func TestHealthChecker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewHealthChecker(HealthURL("127.0.0.1", 1)).Check(ctx)
	if result.Error == nil || !errors.Is(result.Error, context.Canceled) {
		t.Errorf("Check() error = %v, want context.Canceled", result.Error)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
