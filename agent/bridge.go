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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bakebot/agent/asyncqueue"
	"github.com/bakebot/agent/asynctask"
)

// AudioSink receives synthesized PCM audio units for outbound playback.
type AudioSink interface {
	WriteAudio(ctx context.Context, pcm []byte) error
}

// SpeechBridge manages the two streaming speech directions of an agent:
// recognition ingest and synthesis emit. Each direction is a long-lived
// session with an internal ordered queue and one background consumer task.
// The bridge holds a single slot per direction; at most one synthesis
// session is live at a time, and opening a new one cancels the previous.
type SpeechBridge struct {
	recognition RecognitionModel
	synthesis   SynthesisModel
	metrics     *LatencyMetrics

	mu        sync.Mutex
	sink      AudioSink
	settings  SynthesisSettings
	synthSess *SynthesisSession
	recSess   *RecognitionSession
}

func NewSpeechBridge(recognition RecognitionModel, synthesis SynthesisModel, metrics *LatencyMetrics) *SpeechBridge {
	return &SpeechBridge{
		recognition: recognition,
		synthesis:   synthesis,
		metrics:     metrics,
		settings:    defaultSynthesisSettings(),
	}
}

// Clear and slightly slower delivery, tuned for spoken instructions.
func defaultSynthesisSettings() SynthesisSettings {
	return SynthesisSettings{
		SpeakingRate: 0.95,
		Pitch:        0,
	}
}

// BindSink sets the destination for synthesized audio. Must be called
// before a synthesis session is opened.
func (b *SpeechBridge) BindSink(sink AudioSink) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

// Configure applies the voice mode of a newly started voice session.
// Takes effect for synthesis sessions opened afterwards.
func (b *SpeechBridge) Configure(voiceMode string) {
	b.mu.Lock()
	b.settings = defaultSynthesisSettings()
	b.settings.Voice = voiceMode
	b.mu.Unlock()
}

// OpenRecognition opens the recognition ingest session. Opening while one
// is already open is a logic error; the caller must close it first.
func (b *SpeechBridge) OpenRecognition(ctx context.Context) (*RecognitionSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recSess != nil {
		return nil, errors.New("recognition session already open")
	}

	stream, err := b.recognition.NewStream(ctx)
	if err != nil {
		return nil, RecognitionStreamErrorf("error opening recognition stream: %w", err)
	}

	sess := newRecognitionSession(ctx, b.recognition, stream)
	b.recSess = sess
	return sess, nil
}

// PushAudio forwards an inbound audio frame to the open recognition
// session. Frames arriving with no session open are dropped.
func (b *SpeechBridge) PushAudio(frame PCMFrame) {
	b.mu.Lock()
	sess := b.recSess
	b.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Push(frame)
}

// FinalizeUtterance marks the end of the user's current utterance: the
// open recognition session flushes its stream so the final transcript
// surfaces now, then continues on a fresh stream. Called at turn
// boundaries, typically when voice-activity detection reports that the
// user stopped speaking. A no-op when no recognition session is open.
func (b *SpeechBridge) FinalizeUtterance() {
	b.mu.Lock()
	sess := b.recSess
	b.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Finalize()
}

// CloseRecognition flushes and tears down the recognition session.
// A no-op when none is open.
func (b *SpeechBridge) CloseRecognition(ctx context.Context) error {
	b.mu.Lock()
	sess := b.recSess
	b.recSess = nil
	b.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Close(ctx)
}

// OpenSynthesis opens a new synthesis emit session, cancelling any
// previous one first so no two agent voices ever overlap.
func (b *SpeechBridge) OpenSynthesis(ctx context.Context) (*SynthesisSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sink == nil {
		return nil, errors.New("no audio sink bound")
	}
	if prev := b.synthSess; prev != nil {
		prev.Cancel()
	}

	sess := newSynthesisSession(ctx, b.synthesis, b.settings, b.sink, b.metrics)
	b.synthSess = sess
	return sess, nil
}

// Speak enqueues a text segment on the open synthesis session. Segments
// arriving with no session open are dropped.
func (b *SpeechBridge) Speak(segment string) {
	b.mu.Lock()
	sess := b.synthSess
	b.mu.Unlock()

	if sess == nil {
		Logger().Debug("no open synthesis session; dropping segment")
		return
	}
	if err := sess.PushText(segment); err != nil {
		Logger().Warn("failed to enqueue synthesis segment", slog.String("error", err.Error()))
	}
}

// SynthesisOpen reports whether a synthesis session is currently live.
func (b *SpeechBridge) SynthesisOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.synthSess != nil
}

// CancelSynthesis is the barge-in primitive: it stops the open synthesis
// session immediately. Cancelling with no open session is a no-op, not an
// error.
func (b *SpeechBridge) CancelSynthesis() {
	b.mu.Lock()
	sess := b.synthSess
	b.synthSess = nil
	b.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Cancel()
}

// CloseSynthesis flushes the pending queue and tears the synthesis session
// down. A no-op when none is open.
func (b *SpeechBridge) CloseSynthesis(ctx context.Context) error {
	b.mu.Lock()
	sess := b.synthSess
	b.synthSess = nil
	b.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Close(ctx)
}

// recognition session

type recognitionInput interface{ isRecognitionInput() }

type recognitionAudio PCMFrame
type recognitionFlushSentinel struct{}
type recognitionCloseSentinel struct{}

func (recognitionAudio) isRecognitionInput()         {}
func (recognitionFlushSentinel) isRecognitionInput() {}
func (recognitionCloseSentinel) isRecognitionInput() {}

type recognitionOutput interface{ isRecognitionOutput() }

type recognitionTranscript string
type recognitionDone struct{}

func (recognitionTranscript) isRecognitionOutput() {}
func (recognitionDone) isRecognitionOutput()       {}

// RecognitionSession is the ingest direction of the bridge: audio frames
// go in, finalized transcripts come out. Partial transcript events exist
// only for the capability's internal accuracy and are discarded here.
// The session outlives individual capability streams: each Finalize
// flushes the current stream and replaces it with a fresh one, so one
// session spans every utterance of a voice session.
type RecognitionSession struct {
	model    RecognitionModel
	stream   RecognitionStream
	input    *asyncqueue.Queue[recognitionInput]
	output   *asyncqueue.Queue[recognitionOutput]
	consumer *asynctask.TaskNoValue
	closed   atomic.Bool
}

func newRecognitionSession(ctx context.Context, model RecognitionModel, stream RecognitionStream) *RecognitionSession {
	s := &RecognitionSession{
		model:  model,
		stream: stream,
		input:  asyncqueue.New[recognitionInput](),
		output: asyncqueue.New[recognitionOutput](),
	}
	s.consumer = asynctask.CreateTaskNoValue(ctx, s.run)
	return s
}

// Push enqueues one audio frame. Frames pushed after Close are dropped.
func (s *RecognitionSession) Push(frame PCMFrame) {
	if s.closed.Load() {
		return
	}
	s.input.Put(recognitionAudio(frame))
}

// Finalize ends the current utterance. The consumer flushes the stream,
// surfaces its final transcript, and opens a new stream for the next
// utterance. Finalizing after Close is a no-op.
func (s *RecognitionSession) Finalize() {
	if s.closed.Load() {
		return
	}
	s.input.Put(recognitionFlushSentinel{})
}

// NextTranscript blocks until the next finalized transcript, returning
// false once the session has completed. An empty transcript is a valid
// result and means the user said nothing.
func (s *RecognitionSession) NextTranscript() (string, bool) {
	switch v := s.output.Get().(type) {
	case recognitionTranscript:
		return string(v), true
	default:
		// Leave the completion marker in place for any later caller.
		s.output.Put(recognitionDone{})
		return "", false
	}
}

// Close enqueues the end-of-stream sentinel, awaits the consumer, then
// releases the underlying capability handle.
func (s *RecognitionSession) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.input.Put(recognitionCloseSentinel{})
	result := s.consumer.Await()
	return errors.Join(result.Error, s.stream.Close(ctx))
}

func (s *RecognitionSession) run(ctx context.Context) error {
	for {
		switch item := s.input.Get().(type) {
		case recognitionCloseSentinel:
			events, err := s.stream.Finish(ctx)
			if err != nil {
				s.surfaceStreamFailure(err)
				return nil
			}
			s.forwardFinals(events)
			s.output.Put(recognitionDone{})
			return nil

		case recognitionFlushSentinel:
			if err := s.cycleStream(ctx); err != nil {
				// Without a stream there is nothing left to ingest.
				s.output.Put(recognitionDone{})
				return nil
			}

		case recognitionAudio:
			events, err := s.stream.Send(ctx, PCMFrame(item))
			if err != nil {
				s.surfaceStreamFailure(err)
				return nil
			}
			s.forwardFinals(events)
		}
	}
}

// cycleStream flushes the current stream at an utterance boundary and
// replaces it with a fresh one. A flush failure surfaces an empty
// transcript, like any other stream abort, but the session stays open;
// only failing to open the replacement stream ends it.
func (s *RecognitionSession) cycleStream(ctx context.Context) error {
	events, err := s.stream.Finish(ctx)
	if err != nil {
		Logger().Warn("recognition stream aborted at utterance boundary",
			slog.String("error", RecognitionStreamErrorf("recognition stream failure: %w", err).Error()))
		s.output.Put(recognitionTranscript(""))
	} else {
		s.forwardFinals(events)
	}
	if err := s.stream.Close(ctx); err != nil {
		Logger().Warn("error closing recognition stream", slog.String("error", err.Error()))
	}

	next, err := s.model.NewStream(ctx)
	if err != nil {
		Logger().Error("failed to open recognition stream for next utterance",
			slog.String("error", RecognitionStreamErrorf("error opening recognition stream: %w", err).Error()))
		return err
	}
	s.stream = next
	return nil
}

func (s *RecognitionSession) forwardFinals(events []TranscriptEvent) {
	for _, ev := range events {
		if ev.Kind == TranscriptFinal {
			s.output.Put(recognitionTranscript(ev.Text))
		}
	}
}

// A recognition stream abort is treated as "the user said nothing": an
// empty transcript is surfaced and the session completes without error.
func (s *RecognitionSession) surfaceStreamFailure(err error) {
	Logger().Warn("recognition stream aborted",
		slog.String("error", RecognitionStreamErrorf("recognition stream failure: %w", err).Error()))
	s.output.Put(recognitionTranscript(""))
	s.output.Put(recognitionDone{})
}

// synthesis session

type synthesisInput interface{ isSynthesisInput() }

type synthesisSegment string
type synthesisCloseSentinel struct{}

func (synthesisSegment) isSynthesisInput()       {}
func (synthesisCloseSentinel) isSynthesisInput() {}

// SynthesisSession is the emit direction of the bridge: text segments go
// in, PCM audio units come out, in strict submission order. One consumer
// task synthesizes segments sequentially, so segment N's audio is never
// emitted before segment N-1's.
type SynthesisSession struct {
	model    SynthesisModel
	settings SynthesisSettings
	sink     AudioSink
	metrics  *LatencyMetrics
	input    *asyncqueue.Queue[synthesisInput]
	consumer *asynctask.TaskNoValue
	canceled atomic.Bool
	closed   atomic.Bool
}

func newSynthesisSession(
	ctx context.Context,
	model SynthesisModel,
	settings SynthesisSettings,
	sink AudioSink,
	metrics *LatencyMetrics,
) *SynthesisSession {
	s := &SynthesisSession{
		model:    model,
		settings: settings,
		sink:     sink,
		metrics:  metrics,
		input:    asyncqueue.New[synthesisInput](),
	}
	s.consumer = asynctask.CreateTaskNoValue(ctx, s.run)
	return s
}

// PushText enqueues one text segment for synthesis.
func (s *SynthesisSession) PushText(segment string) error {
	if s.closed.Load() || s.canceled.Load() {
		return errors.New("synthesis session is closed")
	}
	s.input.Put(synthesisSegment(segment))
	return nil
}

// Cancel stops the session immediately: no audio is emitted for segments
// that have not started, and the in-flight segment's audio is discarded.
// It returns once the consumer has stopped, which is bounded by the
// in-flight synthesis call, not by queue depth.
func (s *SynthesisSession) Cancel() {
	if s.closed.Swap(true) {
		return
	}
	s.canceled.Store(true)
	s.consumer.Cancel()
	s.input.Put(synthesisCloseSentinel{})
	s.consumer.Await()
}

// Close flushes every pending segment, then tears the session down.
func (s *SynthesisSession) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.input.Put(synthesisCloseSentinel{})
	return s.consumer.Await().Error
}

func (s *SynthesisSession) run(ctx context.Context) error {
	for {
		item := s.input.Get()
		if s.canceled.Load() {
			return nil
		}

		segment, ok := item.(synthesisSegment)
		if !ok {
			return nil
		}

		start := time.Now()
		audio, err := s.model.Synthesize(ctx, string(segment), s.settings)
		if err != nil {
			if s.canceled.Load() {
				// The in-flight call was aborted by barge-in; its loss is
				// expected, not a segment failure.
				return nil
			}
			Logger().Warn("skipping failed synthesis segment",
				slog.String("error", SynthesisSegmentErrorf("segment synthesis failed: %w", err).Error()))
			continue
		}
		s.metrics.Record(MetricTTSLatency, durationMs(time.Since(start)))

		if s.canceled.Load() {
			return nil
		}
		if err := s.sink.WriteAudio(ctx, audio); err != nil {
			Logger().Warn("failed to emit synthesized audio", slog.String("error", err.Error()))
		}
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
