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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// workerStarts counts launch attempts by mode and result
	workerStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_worker_starts_total",
			Help: "Total worker launch attempts by launch mode and result",
		},
		[]string{"mode", "result"},
	)

	// workerStops counts stop sequences that found a worker to stop
	workerStops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tether_worker_stops_total",
			Help: "Total worker stop sequences executed",
		},
	)

	// stopSteps counts each escalation step by outcome
	stopSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_worker_stop_steps_total",
			Help: "Total stop escalation steps by step and result",
		},
		[]string{"step", "result"},
	)

	stopDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tether_worker_stop_duration_seconds",
			Help:    "Time taken by worker stop sequences",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		},
	)

	// portDiscoveries counts ports learned by source (marker, sweep)
	portDiscoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_worker_port_discoveries_total",
			Help: "Total worker port discoveries by source",
		},
		[]string{"source"},
	)

	// statusChecks counts health checks by result
	statusChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_worker_status_checks_total",
			Help: "Total worker health checks by result",
		},
		[]string{"result"},
	)

	unexpectedExits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tether_worker_unexpected_exits_total",
			Help: "Total worker exits not caused by a stop request",
		},
	)

	// workerUp is 1 while a worker process is held
	workerUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tether_worker_up",
			Help: "Whether a worker process is currently running",
		},
	)
)

func recordStart(mode, result string) {
	workerStarts.WithLabelValues(mode, result).Inc()
}

func recordStopStep(step string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	stopSteps.WithLabelValues(step, result).Inc()
}
