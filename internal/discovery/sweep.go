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
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tombee/tether/internal/lifecycle"
)

// ErrNoPort is returned when no port in the sweep range answers.
var ErrNoPort = errors.New("no worker answered in port range")

// SweepOptions configures Sweep.
type SweepOptions struct {
	// Host to probe. Default: 127.0.0.1
	Host string

	// Start and End bound the range, inclusive.
	Start uint16
	End   uint16

	// ProbeTimeout limits each health request. Default: 200ms
	ProbeTimeout time.Duration

	// Concurrency caps in-flight probes. Default: 64
	Concurrency int

	// Client is used for every probe. Its own Timeout is ignored in
	// favour of ProbeTimeout.
	Client *http.Client
}

func (o *SweepOptions) setDefaults() {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 200 * time.Millisecond
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 64
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
}

// Sweep probes the health endpoint of every port in [Start, End] and
// returns the lowest one that answers with a 2xx status. All probes run
// to completion (each bounded by ProbeTimeout) so the answer does not
// depend on which probe finishes first.
func Sweep(ctx context.Context, opts SweepOptions) (uint16, error) {
	opts.setDefaults()
	if opts.End < opts.Start {
		return 0, fmt.Errorf("invalid sweep range %d-%d", opts.Start, opts.End)
	}

	var (
		mu    sync.Mutex
		found uint16
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for p := int(opts.Start); p <= int(opts.End); p++ {
		port := uint16(p)
		g.Go(func() error {
			if !probe(gctx, opts, port) {
				return nil
			}
			mu.Lock()
			if found == 0 || port < found {
				found = port
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil && found == 0 {
		return 0, err
	}
	if found == 0 {
		return 0, fmt.Errorf("%w %d-%d", ErrNoPort, opts.Start, opts.End)
	}
	return found, nil
}

func probe(ctx context.Context, opts SweepOptions, port uint16) bool {
	ctx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
	defer cancel()

	checker := lifecycle.NewHealthChecker(lifecycle.HealthURL(opts.Host, port)).
		WithHTTPClient(opts.Client)
	return checker.Check(ctx).Success
}
