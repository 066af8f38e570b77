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

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tombee/tether/internal/host"
	"github.com/tombee/tether/internal/supervisor"
)

// DefaultTimeout bounds command requests. Start and stop can take as long
// as a graceful worker shutdown, so it is generous.
const DefaultTimeout = 60 * time.Second

// Client is a client for the tether control API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the host listening on addr (host:port).
func New(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("host address is empty")
	}
	c := &Client{
		baseURL: "http://" + addr,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: transport, Timeout: DefaultTimeout}
		return nil
	}
}

// StartWorker starts or restarts the worker.
func (c *Client) StartWorker(ctx context.Context) (string, error) {
	return command[string](ctx, c, http.MethodPost, "/commands/start-worker")
}

// StopWorker stops the worker.
func (c *Client) StopWorker(ctx context.Context) (string, error) {
	return command[string](ctx, c, http.MethodPost, "/commands/stop-worker")
}

// WorkerPort returns the worker's port.
func (c *Client) WorkerPort(ctx context.Context) (uint16, error) {
	return command[uint16](ctx, c, http.MethodGet, "/commands/worker-port")
}

// WorkerStatus health checks the worker.
func (c *Client) WorkerStatus(ctx context.Context) (bool, error) {
	return command[bool](ctx, c, http.MethodGet, "/commands/worker-status")
}

// StoragePath returns the worker data file path.
func (c *Client) StoragePath(ctx context.Context) (string, error) {
	return command[string](ctx, c, http.MethodGet, "/commands/storage-path")
}

// WorkerInfo returns the supervisor snapshot.
func (c *Client) WorkerInfo(ctx context.Context) (supervisor.Snapshot, error) {
	return command[supervisor.Snapshot](ctx, c, http.MethodGet, "/commands/worker-info")
}

// CloseWindow sends the window-close shutdown trigger.
func (c *Client) CloseWindow(ctx context.Context) error {
	_, err := command[string](ctx, c, http.MethodPost, "/window/close")
	return err
}

// Exit sends the app-exit shutdown trigger.
func (c *Client) Exit(ctx context.Context) error {
	_, err := command[string](ctx, c, http.MethodPost, "/app/exit")
	return err
}

// Ping checks if the host is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Events streams host events to fn until fn returns false, the stream
// ends or ctx is done. The latest value of each event is delivered first.
func (c *Client) Events(ctx context.Context, fn func(host.Message) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any request timeout.
	streaming := *c.httpClient
	streaming.Timeout = 0

	resp, err := streaming.Do(req)
	if err != nil {
		return c.requestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("host returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var msg host.Message
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if msg.Event != "" {
				if !fn(msg) {
					return nil
				}
			}
			msg = host.Message{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			msg.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			msg.Data = json.RawMessage(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}

func command[T any](ctx context.Context, c *Client, method, path string) (T, error) {
	var zero T

	resp, err := c.do(ctx, method, path, "application/json")
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	var env host.Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("failed to decode response: %w", err)
	}
	if err := env.Err(); err != nil {
		return env.Value(), err
	}
	return env.Value(), nil
}

func (c *Client) do(ctx context.Context, method, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.requestError(err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("host returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

func (c *Client) requestError(err error) error {
	if IsHostNotRunning(err) {
		return &HostNotRunningError{Addr: strings.TrimPrefix(c.baseURL, "http://"), Err: err}
	}
	return fmt.Errorf("request failed: %w", err)
}
