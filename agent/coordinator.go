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
	"log/slog"
	"strings"
	"time"
)

// Voice replies longer than this are reshaped for spoken delivery.
const voiceReplyMaxChars = 500

// How many sentence-delimited segments survive voice reshaping.
const voiceReplyMaxSegments = 3

const voiceContinuationPrompt = "Would you like me to continue with more details?"

// Fixed, user-safe fallback replies. A generation failure is never fatal
// to the session; the user hears an apology instead of silence.
const (
	fallbackTextReply  = "I'm having trouble thinking right now. Could you try asking me again?"
	fallbackImageReply = "I can see an image, but I'm having trouble analyzing it right now. Can you describe what you'd like to know about it?"
	fallbackVoiceReply = "I'm having trouble responding right now. Could you try that again?"
)

// ResponseCoordinator drives requests to the generation capability and
// shapes the results per path. After generation, if the live session is a
// voice type, the reply is also pushed into the synthesis path.
type ResponseCoordinator struct {
	model   GenerationModel
	bridge  *SpeechBridge
	session *SessionState
	metrics *LatencyMetrics
}

func NewResponseCoordinator(
	model GenerationModel,
	bridge *SpeechBridge,
	session *SessionState,
	metrics *LatencyMetrics,
) *ResponseCoordinator {
	return &ResponseCoordinator{
		model:   model,
		bridge:  bridge,
		session: session,
		metrics: metrics,
	}
}

// GenerateFromText produces a reply to a user text message.
func (c *ResponseCoordinator) GenerateFromText(ctx context.Context, content string, history []Turn) string {
	start := time.Now()
	reply, err := c.model.GenerateText(ctx, content, history)
	c.metrics.Record(MetricLLMLatency, durationMs(time.Since(start)))
	if err != nil {
		Logger().Error("text generation failed",
			slog.String("error", GenerationFailureErrorf("text generation: %w", err).Error()))
		reply = fallbackTextReply
	}

	c.speakIfVoice(ctx, reply)
	return reply
}

// GenerateFromImage produces a reply about an image.
func (c *ResponseCoordinator) GenerateFromImage(ctx context.Context, imageData []byte, caption string) string {
	start := time.Now()
	reply, err := c.model.AnalyzeImage(ctx, imageData, caption)
	c.metrics.Record(MetricLLMLatency, durationMs(time.Since(start)))
	if err != nil {
		Logger().Error("image analysis failed",
			slog.String("error", GenerationFailureErrorf("image analysis: %w", err).Error()))
		reply = fallbackImageReply
	}

	c.speakIfVoice(ctx, reply)
	return reply
}

// GenerateForVoice produces a reply to a finalized speech transcript,
// reshaped for spoken delivery.
func (c *ResponseCoordinator) GenerateForVoice(ctx context.Context, transcript string, history []Turn) string {
	start := time.Now()
	reply, err := c.model.GenerateText(ctx, transcript, history)
	c.metrics.Record(MetricLLMLatency, durationMs(time.Since(start)))
	if err != nil {
		Logger().Error("voice generation failed",
			slog.String("error", GenerationFailureErrorf("voice generation: %w", err).Error()))
		reply = fallbackVoiceReply
	} else {
		reply = shapeForVoice(reply)
	}

	c.speakIfVoice(ctx, reply)
	return reply
}

// speakIfVoice routes a reply into synthesis when the live session is a
// voice type. Barge-in leaves the bridge with no synthesis session, so a
// fresh one is opened here before the first reply after an interruption.
func (c *ResponseCoordinator) speakIfVoice(ctx context.Context, reply string) {
	config := c.session.Config()
	if config == nil || !config.SessionType.IsVoice() {
		return
	}
	if !c.bridge.SynthesisOpen() {
		if _, err := c.bridge.OpenSynthesis(ctx); err != nil {
			Logger().Error("failed to reopen synthesis session", slog.String("error", err.Error()))
			return
		}
	}
	c.bridge.Speak(reply)
}

// shapeForVoice keeps spoken replies digestible. A reply over the length
// threshold with more than three sentence-delimited segments is cut down
// to its first three plus a fixed continuation prompt. Sentence boundaries
// are the literal ". " delimiter; this is a hard rule, not summarization.
func shapeForVoice(reply string) string {
	if len(reply) <= voiceReplyMaxChars {
		return reply
	}
	sentences := strings.Split(reply, ". ")
	if len(sentences) <= voiceReplyMaxSegments {
		return reply
	}
	return strings.Join(sentences[:voiceReplyMaxSegments], ". ") + ". " + voiceContinuationPrompt
}
