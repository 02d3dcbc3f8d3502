// Copyright 2026 The BakeBot Authors
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

package agent

import "sync"

// Latency metric names. Samples are milliseconds.
const (
	MetricSTTLatency     = "sttLatency"
	MetricTTSLatency     = "ttsLatency"
	MetricLLMLatency     = "llmLatency"
	MetricTotalRoundtrip = "totalRoundtrip"
)

// MetricStats are the aggregate statistics for one metric, computed over
// all samples held so far. All zero for a metric with no samples.
type MetricStats struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// LatencyMetrics holds per-agent latency samples. Append-only within a
// session; reset only on agent re-creation. No decay, no windowing.
type LatencyMetrics struct {
	mu      sync.Mutex
	samples map[string][]float64
}

func NewLatencyMetrics() *LatencyMetrics {
	return &LatencyMetrics{
		samples: map[string][]float64{
			MetricSTTLatency:     nil,
			MetricTTSLatency:     nil,
			MetricLLMLatency:     nil,
			MetricTotalRoundtrip: nil,
		},
	}
}

// Record appends a millisecond sample to the named metric.
func (m *LatencyMetrics) Record(name string, valueMs float64) {
	m.mu.Lock()
	m.samples[name] = append(m.samples[name], valueMs)
	m.mu.Unlock()
}

// Average returns the running average of the named metric, zero when it has
// no samples.
func (m *LatencyMetrics) Average(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return statsOf(m.samples[name]).Avg
}

// Snapshot computes aggregate stats for every metric.
func (m *LatencyMetrics) Snapshot() map[string]MetricStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]MetricStats, len(m.samples))
	for name, samples := range m.samples {
		result[name] = statsOf(samples)
	}
	return result
}

func statsOf(samples []float64) MetricStats {
	if len(samples) == 0 {
		return MetricStats{}
	}
	stats := MetricStats{
		Min:   samples[0],
		Max:   samples[0],
		Count: len(samples),
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
		stats.Min = min(stats.Min, v)
		stats.Max = max(stats.Max, v)
	}
	stats.Avg = sum / float64(len(samples))
	return stats
}
