// Copyright (c) 2023 Paweł Gaczyński
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

package bench

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

type Latency struct {
	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
	P999 time.Duration
	Max  time.Duration
}

type Report struct {
	Op         Op
	Rings      int
	Ops        int
	Elapsed    time.Duration
	Throughput float64
	Latency    Latency
}

// percentile expects sorted input and uses the nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted))/100 - 1e-9))
	rank = max(1, min(rank, len(sorted)))

	return sorted[rank-1]
}

func newReport(config *Config, rings int, elapsed time.Duration, latencies []time.Duration) Report {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := Report{
		Op:      config.Op,
		Rings:   rings,
		Ops:     len(latencies),
		Elapsed: elapsed,
		Latency: Latency{
			P50:  percentile(latencies, 50),
			P90:  percentile(latencies, 90),
			P99:  percentile(latencies, 99),
			P999: percentile(latencies, 99.9),
		},
	}
	if len(latencies) > 0 {
		report.Latency.Max = latencies[len(latencies)-1]
	}
	if elapsed > 0 {
		report.Throughput = float64(report.Ops) / elapsed.Seconds()
	}

	return report
}

func (r Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("op", string(r.Op)).
		Int("rings", r.Rings).
		Int("ops", r.Ops).
		Dur("elapsed", r.Elapsed).
		Float64("throughput", r.Throughput).
		Dur("p50", r.Latency.P50).
		Dur("p90", r.Latency.P90).
		Dur("p99", r.Latency.P99).
		Dur("p99.9", r.Latency.P999).
		Dur("max", r.Latency.Max)
}

func (r Report) String() string {
	return fmt.Sprintf(
		"%s: %d ops on %d rings in %s (%.0f ops/s)\nlatency p50 %s, p90 %s, p99 %s, p99.9 %s, max %s",
		r.Op, r.Ops, r.Rings, r.Elapsed, r.Throughput,
		r.Latency.P50, r.Latency.P90, r.Latency.P99, r.Latency.P999, r.Latency.Max,
	)
}
