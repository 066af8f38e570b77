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
	"fmt"
	"io"
	"net/http"
	"time"
)

// HealthPath is the worker's readiness endpoint.
const HealthPath = "/api/health"

const defaultProbeTimeout = 5 * time.Second

// HealthURL returns the health endpoint for a worker on host:port.
func HealthURL(host string, port uint16) string {
	return fmt.Sprintf("http://%s:%d%s", host, port, HealthPath)
}

// HealthChecker issues single GET probes against a health endpoint.
type HealthChecker struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// HealthCheckResult contains the result of a health check attempt.
//
// Error is set only for transport failures (refused, timed out). A
// reachable endpoint answering non-2xx has Success false, a StatusCode
// and a nil Error.
type HealthCheckResult struct {
	Success      bool
	StatusCode   int
	ResponseTime time.Duration
	Error        error
}

// NewHealthChecker creates a checker for endpoint with a 5s timeout.
func NewHealthChecker(endpoint string) *HealthChecker {
	return &HealthChecker{
		endpoint: endpoint,
		client:   http.DefaultClient,
		timeout:  defaultProbeTimeout,
	}
}

// WithHTTPClient sets the client used for probes. Its own Timeout, if
// any, still applies.
func (h *HealthChecker) WithHTTPClient(client *http.Client) *HealthChecker {
	if client != nil {
		h.client = client
	}
	return h
}

// WithTimeout bounds each probe. Zero or negative leaves the default.
func (h *HealthChecker) WithTimeout(timeout time.Duration) *HealthChecker {
	if timeout > 0 {
		h.timeout = timeout
	}
	return h
}

// Check performs a single health check.
func (h *HealthChecker) Check(ctx context.Context) *HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return &HealthCheckResult{Error: fmt.Errorf("failed to create request: %w", err)}
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return &HealthCheckResult{
			ResponseTime: elapsed,
			Error:        fmt.Errorf("request failed: %w", err),
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return &HealthCheckResult{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed,
	}
}
