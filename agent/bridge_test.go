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
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(synth *fakeSynthesisModel, rec *fakeRecognitionModel) (*SpeechBridge, *recordingSink) {
	if synth == nil {
		synth = &fakeSynthesisModel{}
	}
	if rec == nil {
		rec = &fakeRecognitionModel{stream: &fakeRecognitionStream{}}
	}
	sink := &recordingSink{}
	bridge := NewSpeechBridge(rec, synth, NewLatencyMetrics())
	bridge.BindSink(sink)
	return bridge, sink
}

func TestSynthesisEmitsInSubmissionOrder(t *testing.T) {
	synth := &fakeSynthesisModel{
		synthesize: func(_ context.Context, text string) ([]byte, error) {
			// An earlier slow segment must not be overtaken by later ones.
			if text == "B" {
				time.Sleep(30 * time.Millisecond)
			}
			return []byte(text), nil
		},
	}
	bridge, sink := newTestBridge(synth, nil)

	_, err := bridge.OpenSynthesis(t.Context())
	require.NoError(t, err)

	bridge.Speak("A")
	bridge.Speak("B")
	bridge.Speak("C")

	require.NoError(t, bridge.CloseSynthesis(t.Context()))
	assert.Equal(t, []string{"A", "B", "C"}, sink.segments())
}

func TestSynthesisBargeIn(t *testing.T) {
	inFlight := make(chan struct{})
	synth := &fakeSynthesisModel{
		synthesize: func(ctx context.Context, text string) ([]byte, error) {
			if text == "B" {
				close(inFlight)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []byte(text), nil
		},
	}
	bridge, sink := newTestBridge(synth, nil)

	sess, err := bridge.OpenSynthesis(t.Context())
	require.NoError(t, err)

	bridge.Speak("A")
	bridge.Speak("B")
	bridge.Speak("C")

	// Wait until B is the in-flight call, then barge in.
	select {
	case <-inFlight:
	case <-time.After(2 * time.Second):
		t.Fatal("segment B never started")
	}
	bridge.CancelSynthesis()

	// Only A's audio was emitted; B was discarded in flight, C never ran.
	assert.Equal(t, []string{"A"}, sink.segments())
	assert.False(t, bridge.SynthesisOpen())
	assert.Error(t, sess.PushText("late"))
}

func TestSynthesisSkipsFailedSegment(t *testing.T) {
	synth := &fakeSynthesisModel{
		synthesize: func(_ context.Context, text string) ([]byte, error) {
			if text == "bad" {
				return nil, errors.New("synthesis exploded")
			}
			return []byte(text), nil
		},
	}
	bridge, sink := newTestBridge(synth, nil)

	_, err := bridge.OpenSynthesis(t.Context())
	require.NoError(t, err)

	bridge.Speak("A")
	bridge.Speak("bad")
	bridge.Speak("C")

	require.NoError(t, bridge.CloseSynthesis(t.Context()))
	assert.Equal(t, []string{"A", "C"}, sink.segments())
}

func TestOpenSynthesisReplacesPreviousSession(t *testing.T) {
	bridge, sink := newTestBridge(nil, nil)

	first, err := bridge.OpenSynthesis(t.Context())
	require.NoError(t, err)

	second, err := bridge.OpenSynthesis(t.Context())
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// The replaced session accepts no more segments.
	assert.Error(t, first.PushText("stale"))

	bridge.Speak("fresh")
	require.NoError(t, bridge.CloseSynthesis(t.Context()))
	assert.Equal(t, []string{"fresh"}, sink.segments())
}

func TestOpenSynthesisRequiresSink(t *testing.T) {
	bridge := NewSpeechBridge(nil, &fakeSynthesisModel{}, NewLatencyMetrics())
	_, err := bridge.OpenSynthesis(t.Context())
	assert.Error(t, err)
}

func TestCancelSynthesisWithoutSessionIsNoOp(t *testing.T) {
	bridge, _ := newTestBridge(nil, nil)
	bridge.CancelSynthesis()
	assert.False(t, bridge.SynthesisOpen())
}

func TestSpeakWithoutSessionDropsSegment(t *testing.T) {
	synth := &fakeSynthesisModel{}
	bridge, _ := newTestBridge(synth, nil)

	bridge.Speak("nobody listening")
	assert.Zero(t, synth.callCount())
}

func TestRecognitionForwardsOnlyFinals(t *testing.T) {
	stream := &fakeRecognitionStream{
		onSend: func(PCMFrame) ([]TranscriptEvent, error) {
			return []TranscriptEvent{
				{Kind: TranscriptPartial, Text: "knead the"},
				{Kind: TranscriptFinal, Text: "knead the dough"},
			}, nil
		},
	}
	bridge, _ := newTestBridge(nil, &fakeRecognitionModel{stream: stream})

	sess, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)

	bridge.PushAudio(PCMFrame{1, 2, 3})
	require.NoError(t, bridge.CloseRecognition(t.Context()))

	transcript, ok := sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "knead the dough", transcript)

	_, ok = sess.NextTranscript()
	assert.False(t, ok)

	// The completion marker stays in place for later callers.
	_, ok = sess.NextTranscript()
	assert.False(t, ok)

	assert.True(t, stream.closed)
}

func TestRecognitionFlushesFinalsOnClose(t *testing.T) {
	stream := &fakeRecognitionStream{
		finishEvents: []TranscriptEvent{{Kind: TranscriptFinal, Text: "add more flour"}},
	}
	bridge, _ := newTestBridge(nil, &fakeRecognitionModel{stream: stream})

	sess, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)
	require.NoError(t, bridge.CloseRecognition(t.Context()))

	transcript, ok := sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "add more flour", transcript)

	_, ok = sess.NextTranscript()
	assert.False(t, ok)
}

func TestFinalizeUtteranceSurfacesTranscriptMidSession(t *testing.T) {
	// The capability only produces finals when the stream is finished, so
	// the transcript must surface from the utterance boundary, not from a
	// session close.
	stream := &fakeRecognitionStream{
		finishEvents: []TranscriptEvent{{Kind: TranscriptFinal, Text: "preheat to two hundred"}},
	}
	bridge, _ := newTestBridge(nil, &fakeRecognitionModel{stream: stream})

	sess, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)

	bridge.PushAudio(PCMFrame{1, 2, 3})
	bridge.FinalizeUtterance()

	transcript, ok := sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "preheat to two hundred", transcript)

	require.NoError(t, bridge.CloseRecognition(t.Context()))
}

func TestFinalizeUtteranceCyclesStream(t *testing.T) {
	var streams []*fakeRecognitionStream
	rec := &fakeRecognitionModel{}
	rec.newStream = func() RecognitionStream {
		s := &fakeRecognitionStream{
			finishEvents: []TranscriptEvent{
				{Kind: TranscriptFinal, Text: fmt.Sprintf("utterance %d", len(streams)+1)},
			},
		}
		streams = append(streams, s)
		return s
	}
	bridge, _ := newTestBridge(nil, rec)

	sess, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)

	bridge.PushAudio(PCMFrame{1, 2})
	bridge.FinalizeUtterance()
	transcript, ok := sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "utterance 1", transcript)

	bridge.PushAudio(PCMFrame{3, 4})
	bridge.FinalizeUtterance()
	transcript, ok = sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "utterance 2", transcript)

	// The close flushes the stream opened for the third utterance.
	require.NoError(t, bridge.CloseRecognition(t.Context()))
	transcript, ok = sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "utterance 3", transcript)
	_, ok = sess.NextTranscript()
	assert.False(t, ok)

	require.Equal(t, 3, rec.openedCount())
	// Each utterance's audio lands on its own stream, and flushed streams
	// are released before their replacement opens.
	assert.Equal(t, []PCMFrame{{1, 2}}, streams[0].frames)
	assert.Equal(t, []PCMFrame{{3, 4}}, streams[1].frames)
	assert.True(t, streams[0].closed)
	assert.True(t, streams[1].closed)
}

func TestFinalizeUtteranceFlushFailureKeepsSessionOpen(t *testing.T) {
	calls := 0
	rec := &fakeRecognitionModel{}
	rec.newStream = func() RecognitionStream {
		calls++
		if calls == 1 {
			return &fakeRecognitionStream{finishErr: errors.New("flush failed")}
		}
		return &fakeRecognitionStream{
			finishEvents: []TranscriptEvent{{Kind: TranscriptFinal, Text: "second try"}},
		}
	}
	bridge, _ := newTestBridge(nil, rec)

	sess, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)

	bridge.PushAudio(PCMFrame{1})
	bridge.FinalizeUtterance()

	// The failed flush reads as "the user said nothing".
	transcript, ok := sess.NextTranscript()
	require.True(t, ok)
	assert.Empty(t, transcript)

	// The next utterance proceeds on a fresh stream.
	bridge.PushAudio(PCMFrame{2})
	bridge.FinalizeUtterance()
	transcript, ok = sess.NextTranscript()
	require.True(t, ok)
	assert.Equal(t, "second try", transcript)

	require.NoError(t, bridge.CloseRecognition(t.Context()))
}

func TestFinalizeUtteranceWithoutSessionIsNoOp(t *testing.T) {
	bridge, _ := newTestBridge(nil, nil)
	bridge.FinalizeUtterance()
}

func TestRecognitionStreamFailureSurfacesEmptyTranscript(t *testing.T) {
	stream := &fakeRecognitionStream{
		onSend: func(PCMFrame) ([]TranscriptEvent, error) {
			return nil, errors.New("stream aborted")
		},
	}
	bridge, _ := newTestBridge(nil, &fakeRecognitionModel{stream: stream})

	sess, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)

	bridge.PushAudio(PCMFrame{1})

	transcript, ok := sess.NextTranscript()
	require.True(t, ok)
	assert.Empty(t, transcript)

	_, ok = sess.NextTranscript()
	assert.False(t, ok)

	require.NoError(t, bridge.CloseRecognition(t.Context()))
}

func TestOpenRecognitionTwiceFails(t *testing.T) {
	bridge, _ := newTestBridge(nil, nil)

	_, err := bridge.OpenRecognition(t.Context())
	require.NoError(t, err)

	_, err = bridge.OpenRecognition(t.Context())
	assert.Error(t, err)

	require.NoError(t, bridge.CloseRecognition(t.Context()))
}

func TestPushAudioWithoutSessionIsDropped(t *testing.T) {
	stream := &fakeRecognitionStream{}
	bridge, _ := newTestBridge(nil, &fakeRecognitionModel{stream: stream})

	bridge.PushAudio(PCMFrame{1, 2})

	stream.mu.Lock()
	defer stream.mu.Unlock()
	assert.Empty(t, stream.frames)
}
