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

import (
	"log/slog"
	"sync"
	"time"
)

// SpeechActivity is an event from the external voice-activity detector.
type SpeechActivity string

const (
	ActivityUserSpeechStarted  SpeechActivity = "user-speech-started"
	ActivityUserSpeechStopped  SpeechActivity = "user-speech-stopped"
	ActivityAgentSpeechStarted SpeechActivity = "agent-speech-started"
	ActivityAgentSpeechStopped SpeechActivity = "agent-speech-stopped"
	ActivitySpeechInterrupted  SpeechActivity = "speech-interrupted"
)

// RoundtripAlertThreshold is the observational latency budget for one
// voice turn. Exceeding it raises a logged alert; nothing is aborted.
const RoundtripAlertThreshold = 500 * time.Millisecond

// TurnTakingController consumes speech-activity events. It seeds latency
// measurements from the user's speech start, finalizes the recognition
// utterance when the user stops speaking, and triggers barge-in
// cancellation of in-flight synthesis. It owns no state beyond the
// current turn's start timestamp.
type TurnTakingController struct {
	bridge  *SpeechBridge
	metrics *LatencyMetrics
	now     func() time.Time

	mu        sync.Mutex
	turnStart time.Time
}

func NewTurnTakingController(bridge *SpeechBridge, metrics *LatencyMetrics) *TurnTakingController {
	return &TurnTakingController{
		bridge:  bridge,
		metrics: metrics,
		now:     time.Now,
	}
}

// HandleActivity processes one speech-activity event. Out-of-order events
// with no recorded turn start are skipped silently, never raised.
func (c *TurnTakingController) HandleActivity(activity SpeechActivity) {
	switch activity {
	case ActivityUserSpeechStarted:
		c.mu.Lock()
		c.turnStart = c.now()
		c.mu.Unlock()

	case ActivityUserSpeechStopped:
		// End of the user's utterance: flush recognition so the final
		// transcript surfaces now. No latency milestone is recorded here.
		c.bridge.FinalizeUtterance()

	case ActivityAgentSpeechStarted:
		if elapsed, ok := c.sinceTurnStart(); ok {
			c.metrics.Record(MetricSTTLatency, durationMs(elapsed))
		}

	case ActivityAgentSpeechStopped:
		elapsed, ok := c.takeTurnStart()
		if !ok {
			return
		}
		c.metrics.Record(MetricTotalRoundtrip, durationMs(elapsed))
		avg := c.metrics.Average(MetricTotalRoundtrip)
		if elapsed > RoundtripAlertThreshold {
			Logger().Warn("turn latency exceeded budget",
				slog.Duration("roundtrip", elapsed),
				slog.Duration("budget", RoundtripAlertThreshold),
				slog.Float64("running_avg_ms", avg))
		}

	case ActivitySpeechInterrupted:
		// The user barged in while agent audio was playing.
		c.bridge.CancelSynthesis()

	default:
		Logger().Debug("ignoring unknown speech activity", slog.String("activity", string(activity)))
	}
}

func (c *TurnTakingController) sinceTurnStart() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnStart.IsZero() {
		return 0, false
	}
	return c.now().Sub(c.turnStart), true
}

// takeTurnStart reads and clears the turn start, ending the measurement
// window for the turn.
func (c *TurnTakingController) takeTurnStart() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnStart.IsZero() {
		return 0, false
	}
	elapsed := c.now().Sub(c.turnStart)
	c.turnStart = time.Time{}
	return elapsed, true
}
