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

import "context"

// GenerationModel is the external text/image generation capability.
// Fallible and latency-bearing; stateless per call from the agent's
// perspective.
type GenerationModel interface {
	// GenerateText produces a reply for a user message, given the prior
	// conversation turns in order.
	GenerateText(ctx context.Context, message string, history []Turn) (string, error)

	// AnalyzeImage produces a reply describing or answering about an image.
	AnalyzeImage(ctx context.Context, imageData []byte, caption string) (string, error)
}

// TranscriptEventKind distinguishes interim recognition results from
// finalized ones.
type TranscriptEventKind int

const (
	TranscriptPartial TranscriptEventKind = iota + 1
	TranscriptFinal
)

// TranscriptEvent is one recognition result emitted by a RecognitionStream.
type TranscriptEvent struct {
	Kind TranscriptEventKind
	Text string
}

// RecognitionStream is one live speech-to-text exchange with the external
// recognition capability. Audio goes in chunk by chunk; partial and final
// transcript events come back.
type RecognitionStream interface {
	// Send feeds one audio chunk and returns any transcript events the
	// capability produced for it.
	Send(ctx context.Context, frame PCMFrame) ([]TranscriptEvent, error)

	// Finish flushes buffered audio and returns the remaining transcript
	// events. The stream accepts no more audio afterwards. Zero audio must
	// yield an empty final transcript, not an error.
	Finish(ctx context.Context) ([]TranscriptEvent, error)

	// Close releases the underlying capability handle.
	Close(ctx context.Context) error
}

// RecognitionModel is the external speech-to-text capability.
type RecognitionModel interface {
	ModelName() string
	NewStream(ctx context.Context) (RecognitionStream, error)
}

// SynthesisSettings shape the voice of the synthesis capability.
type SynthesisSettings struct {
	// Voice name; empty selects the capability's default.
	Voice string

	// SpeakingRate in the capability's native unit; zero means default.
	SpeakingRate float64

	// Pitch adjustment; zero is neutral.
	Pitch float64
}

// SynthesisModel is the external text-to-speech capability: one text
// segment in, one PCM audio unit out.
type SynthesisModel interface {
	ModelName() string
	Synthesize(ctx context.Context, text string, settings SynthesisSettings) ([]byte, error)
}
