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
	"slices"
	"sync"
)

// Test doubles for the external capabilities and sinks.

type fakeGenerationModel struct {
	reply string
	err   error

	mu        sync.Mutex
	messages  []string
	histories [][]Turn
	captions  []string
}

func (m *fakeGenerationModel) GenerateText(_ context.Context, message string, history []Turn) (string, error) {
	m.mu.Lock()
	m.messages = append(m.messages, message)
	m.histories = append(m.histories, slices.Clone(history))
	m.mu.Unlock()
	return m.reply, m.err
}

func (m *fakeGenerationModel) AnalyzeImage(_ context.Context, _ []byte, caption string) (string, error) {
	m.mu.Lock()
	m.captions = append(m.captions, caption)
	m.mu.Unlock()
	return m.reply, m.err
}

func (m *fakeGenerationModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages) + len(m.captions)
}

type fakeRecognitionStream struct {
	onSend       func(frame PCMFrame) ([]TranscriptEvent, error)
	finishEvents []TranscriptEvent
	finishErr    error

	mu     sync.Mutex
	frames []PCMFrame
	closed bool
}

func (s *fakeRecognitionStream) Send(_ context.Context, frame PCMFrame) ([]TranscriptEvent, error) {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	if s.onSend != nil {
		return s.onSend(frame)
	}
	return nil, nil
}

func (s *fakeRecognitionStream) Finish(context.Context) ([]TranscriptEvent, error) {
	return s.finishEvents, s.finishErr
}

func (s *fakeRecognitionStream) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakeRecognitionModel struct {
	stream    *fakeRecognitionStream
	streamErr error

	// newStream, when set, produces a distinct stream per call, so tests
	// can cover the per-utterance stream turnover.
	newStream func() RecognitionStream

	mu     sync.Mutex
	opened int
}

func (m *fakeRecognitionModel) ModelName() string { return "fake-stt" }

func (m *fakeRecognitionModel) NewStream(context.Context) (RecognitionStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	m.opened++
	if m.newStream != nil {
		return m.newStream(), nil
	}
	return m.stream, nil
}

func (m *fakeRecognitionModel) openedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// fakeSynthesisModel returns each segment's text as its audio bytes, so
// tests can assert emit order by decoding the sink content.
type fakeSynthesisModel struct {
	// synthesize overrides the default behavior when set.
	synthesize func(ctx context.Context, text string) ([]byte, error)

	mu    sync.Mutex
	calls []string
}

func (m *fakeSynthesisModel) ModelName() string { return "fake-tts" }

func (m *fakeSynthesisModel) Synthesize(ctx context.Context, text string, _ SynthesisSettings) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.synthesize != nil {
		return m.synthesize(ctx, text)
	}
	return []byte(text), nil
}

func (m *fakeSynthesisModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recordingSink struct {
	mu    sync.Mutex
	err   error
	audio [][]byte
}

func (s *recordingSink) WriteAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.audio = append(s.audio, slices.Clone(pcm))
	return nil
}

func (s *recordingSink) segments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, len(s.audio))
	for i, a := range s.audio {
		result[i] = string(a)
	}
	return result
}

type publishRecorder struct {
	mu       sync.Mutex
	err      error
	messages []OutboundMessage
}

func (p *publishRecorder) publish(_ context.Context, msg OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *publishRecorder) all() []OutboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.messages)
}

func (p *publishRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}
