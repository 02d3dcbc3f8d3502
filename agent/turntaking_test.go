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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	t time.Time
}

func (c *manualClock) now() time.Time { return c.t }

func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController() (*TurnTakingController, *SpeechBridge, *LatencyMetrics, *manualClock) {
	metrics := NewLatencyMetrics()
	bridge := NewSpeechBridge(
		&fakeRecognitionModel{stream: &fakeRecognitionStream{}},
		&fakeSynthesisModel{},
		metrics,
	)
	bridge.BindSink(&recordingSink{})

	clock := &manualClock{t: time.Unix(1700000000, 0)}
	controller := NewTurnTakingController(bridge, metrics)
	controller.now = clock.now
	return controller, bridge, metrics, clock
}

func TestTurnLatencyMeasurement(t *testing.T) {
	controller, _, metrics, clock := newTestController()

	controller.HandleActivity(ActivityUserSpeechStarted)
	clock.advance(120 * time.Millisecond)
	controller.HandleActivity(ActivityUserSpeechStopped)
	controller.HandleActivity(ActivityAgentSpeechStarted)
	clock.advance(200 * time.Millisecond)
	controller.HandleActivity(ActivityAgentSpeechStopped)

	snapshot := metrics.Snapshot()
	require.Equal(t, 1, snapshot[MetricSTTLatency].Count)
	assert.Equal(t, 120.0, snapshot[MetricSTTLatency].Avg)
	require.Equal(t, 1, snapshot[MetricTotalRoundtrip].Count)
	assert.Equal(t, 320.0, snapshot[MetricTotalRoundtrip].Avg)
}

func TestAgentSpeechStoppedEndsMeasurementWindow(t *testing.T) {
	controller, _, metrics, clock := newTestController()

	controller.HandleActivity(ActivityUserSpeechStarted)
	clock.advance(50 * time.Millisecond)
	controller.HandleActivity(ActivityAgentSpeechStopped)

	// A second stop without a new turn start records nothing.
	clock.advance(50 * time.Millisecond)
	controller.HandleActivity(ActivityAgentSpeechStopped)

	assert.Equal(t, 1, metrics.Snapshot()[MetricTotalRoundtrip].Count)
}

func TestOutOfOrderActivityIsSkipped(t *testing.T) {
	controller, _, metrics, _ := newTestController()

	controller.HandleActivity(ActivityAgentSpeechStarted)
	controller.HandleActivity(ActivityAgentSpeechStopped)

	snapshot := metrics.Snapshot()
	assert.Zero(t, snapshot[MetricSTTLatency].Count)
	assert.Zero(t, snapshot[MetricTotalRoundtrip].Count)
}

func TestUserSpeechStoppedFinalizesUtterance(t *testing.T) {
	// The capability produces finals only when an utterance is finished,
	// so the stop event must flush the stream for the transcript to
	// surface before the voice session ends.
	stream := &fakeRecognitionStream{
		finishEvents: []TranscriptEvent{{Kind: TranscriptFinal, Text: "set a timer for ten minutes"}},
	}
	metrics := NewLatencyMetrics()
	bridge := NewSpeechBridge(&fakeRecognitionModel{stream: stream}, &fakeSynthesisModel{}, metrics)
	bridge.BindSink(&recordingSink{})
	controller := NewTurnTakingController(bridge, metrics)

	sess, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)
	bridge.PushAudio(PCMFrame{1, 2})

	controller.HandleActivity(ActivityUserSpeechStopped)

	transcript, ok := sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "set a timer for ten minutes", transcript)

	require.NoError(t, bridge.CloseRecognition(t.Context()))
}

func TestSpeechInterruptedCancelsSynthesis(t *testing.T) {
	controller, bridge, _, _ := newTestController()

	_, err := bridge.OpenSynthesis(t.Context())
	require.NoError(t, err)
	require.True(t, bridge.SynthesisOpen())

	controller.HandleActivity(ActivitySpeechInterrupted)
	assert.False(t, bridge.SynthesisOpen())
}

func TestUnknownActivityIsIgnored(t *testing.T) {
	controller, _, metrics, _ := newTestController()

	controller.HandleActivity("user-started-singing")

	for _, stats := range metrics.Snapshot() {
		assert.Zero(t, stats.Count)
	}
}
