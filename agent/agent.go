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

// Package agent implements the conversational orchestration core of the
// BakeBot voice assistant: message routing, session and turn-taking state,
// conversation history, and the streaming bridge between room audio and
// the external recognition, generation, and synthesis capabilities.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bakebot/agent/asyncqueue"
	"github.com/bakebot/agent/asynctask"
)

const welcomeMessage = "Hi! I'm BakeBot, your virtual sous chef! How can I help you in the kitchen today?"

// RoomEvent is an inbound event from the room transport. All events of a
// session arrive on one queue and are consumed by a single dispatch task.
type RoomEvent interface{ isRoomEvent() }

// DataReceived carries one reliable data-channel payload.
type DataReceived struct{ Payload []byte }

// AudioReceived carries one inbound PCM audio frame.
type AudioReceived struct{ Frame PCMFrame }

// SpeechActivityDetected carries one voice-activity event.
type SpeechActivityDetected struct{ Activity SpeechActivity }

// ParticipantJoined signals that a remote participant entered the room.
type ParticipantJoined struct{ Identity string }

// RoomClosed signals that the transport has shut down; no further events
// will arrive.
type RoomClosed struct{}

func (DataReceived) isRoomEvent()           {}
func (AudioReceived) isRoomEvent()          {}
func (SpeechActivityDetected) isRoomEvent() {}
func (ParticipantJoined) isRoomEvent()      {}
func (RoomClosed) isRoomEvent()             {}

// Transport is the real-time room connection: reliable byte messages and
// PCM audio in both directions, plus room-level events in.
type Transport interface {
	// Attach establishes the connection. Failure here is the only fatal
	// startup error of the agent.
	Attach(ctx context.Context) error

	// Publish sends one reliable data-channel payload.
	Publish(ctx context.Context, data []byte) error

	// PublishAudio sends one outbound PCM audio unit for playback.
	PublishAudio(ctx context.Context, pcm []byte) error

	// Inbound is the single queue of room events for this connection.
	Inbound() *asyncqueue.Queue[RoomEvent]

	// Close tears the connection down and terminates the inbound queue
	// with a RoomClosed event.
	Close(ctx context.Context) error
}

// Params configure a new Agent.
type Params struct {
	// Name of the agent, used for logging.
	Name string

	Generation  GenerationModel
	Recognition RecognitionModel
	Synthesis   SynthesisModel
}

// Agent is one per-participant assistant instance. It owns its history,
// session config, bridge sessions, and metrics; nothing is shared across
// agent instances.
type Agent struct {
	name        string
	history     *ConversationHistory
	metrics     *LatencyMetrics
	bridge      *SpeechBridge
	session     *SessionState
	coordinator *ResponseCoordinator
	controller  *TurnTakingController
	router      *MessageRouter

	transport Transport

	mu         sync.Mutex
	recSession *RecognitionSession
	voiceTask  *asynctask.TaskNoValue
	dispatch   *asynctask.TaskNoValue
}

func New(params Params) *Agent {
	a := &Agent{
		name:    params.Name,
		history: NewConversationHistory(),
		metrics: NewLatencyMetrics(),
	}
	a.bridge = NewSpeechBridge(params.Recognition, params.Synthesis, a.metrics)
	a.session = NewSessionState(a.bridge, a.publishMessage)
	a.session.SetVoiceHooks(a)
	a.coordinator = NewResponseCoordinator(params.Generation, a.bridge, a.session, a.metrics)
	a.controller = NewTurnTakingController(a.bridge, a.metrics)
	a.router = NewMessageRouter(a.history, a.session, a.coordinator, a.publishMessage)
	return a
}

// Start attaches the transport and spawns the event dispatch task.
// Transport attachment failure is surfaced to the caller; everything
// after it is absorbed into the session's own error handling.
func (a *Agent) Start(ctx context.Context, transport Transport) error {
	if err := transport.Attach(ctx); err != nil {
		return fmt.Errorf("error attaching room transport: %w", err)
	}
	a.transport = transport
	a.bridge.BindSink(transportAudioSink{transport: transport})

	a.mu.Lock()
	a.dispatch = asynctask.CreateTaskNoValue(ctx, a.dispatchEvents)
	a.mu.Unlock()

	Logger().Info("agent started", slog.String("name", a.name))
	return nil
}

func (a *Agent) dispatchEvents(ctx context.Context) error {
	for {
		switch ev := a.transport.Inbound().Get().(type) {
		case DataReceived:
			a.router.DecodeAndDispatch(ctx, ev.Payload)
		case AudioReceived:
			a.bridge.PushAudio(ev.Frame)
		case SpeechActivityDetected:
			a.controller.HandleActivity(ev.Activity)
		case ParticipantJoined:
			Logger().Info("participant joined", slog.String("identity", ev.Identity))
			a.send(ctx, NewContentMessage(MessageTypeText, welcomeMessage))
		case RoomClosed:
			return nil
		}
	}
}

// VoiceSessionStarted opens the recognition ingest path and spawns the
// transcript consumer for the new voice session.
func (a *Agent) VoiceSessionStarted(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recSession != nil {
		return // already ingesting; config swap only
	}
	sess, err := a.bridge.OpenRecognition(ctx)
	if err != nil {
		Logger().Error("failed to open recognition session", slog.String("error", err.Error()))
		return
	}
	a.recSession = sess
	a.voiceTask = asynctask.CreateTaskNoValue(ctx, func(ctx context.Context) error {
		return a.consumeTranscripts(ctx, sess)
	})
}

// VoiceSessionEnded releases the recognition ingest path; the transcript
// consumer completes once the session surfaces its end.
func (a *Agent) VoiceSessionEnded(ctx context.Context) {
	a.mu.Lock()
	sess := a.recSession
	task := a.voiceTask
	a.recSession = nil
	a.voiceTask = nil
	a.mu.Unlock()

	if sess == nil {
		return
	}
	if err := a.bridge.CloseRecognition(ctx); err != nil {
		Logger().Warn("error closing recognition session", slog.String("error", err.Error()))
	}
	if task != nil {
		task.Await()
	}
}

// consumeTranscripts is the voice turn loop. Each finalized transcript
// becomes a user turn, a generated reply, and an outbound text message;
// the coordinator also routes the reply into synthesis.
func (a *Agent) consumeTranscripts(ctx context.Context, sess *RecognitionSession) error {
	for {
		transcript, ok := sess.NextTranscript()
		if !ok {
			return nil
		}
		if transcript == "" {
			// The user said nothing; there is no turn to answer.
			continue
		}

		a.history.Append(SpeakerUser, transcript, nowTimestamp())
		reply := a.coordinator.GenerateForVoice(ctx, transcript, a.history.ContextWindow())
		a.history.Append(SpeakerAgent, reply, nowTimestamp())

		a.send(ctx, NewContentMessage(MessageTypeText, reply))
	}
}

// Cleanup tears the agent down. Every step runs even if earlier ones
// fail; step errors are logged and suppressed, never re-raised.
func (a *Agent) Cleanup(ctx context.Context) {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"cancel synthesis", func() error {
			a.bridge.CancelSynthesis()
			return nil
		}},
		{"close recognition", func() error {
			a.VoiceSessionEnded(ctx)
			return nil
		}},
		{"close transport", func() error {
			if a.transport == nil {
				return nil
			}
			return a.transport.Close(ctx)
		}},
		{"await dispatch", func() error {
			a.mu.Lock()
			task := a.dispatch
			a.mu.Unlock()
			if task != nil {
				return task.Await().Error
			}
			return nil
		}},
		{"clear history", func() error {
			a.history.Clear()
			return nil
		}},
	}

	for _, step := range steps {
		if err := runTeardownStep(step.fn); err != nil {
			Logger().Warn("teardown step failed",
				slog.String("step", step.name),
				slog.String("error", err.Error()))
		}
	}

	Logger().Info("agent cleaned up", slog.String("name", a.name))
}

func runTeardownStep(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = TeardownErrorf("teardown step panicked: %v", r)
		}
	}()
	if e := fn(); e != nil {
		err = TeardownError(e)
	}
	return
}

// PerformanceStats returns aggregate latency statistics for this agent.
func (a *Agent) PerformanceStats() map[string]MetricStats {
	return a.metrics.Snapshot()
}

// History exposes the conversation log, owned by this agent alone.
func (a *Agent) History() *ConversationHistory { return a.history }

// Session exposes the session state machine.
func (a *Agent) Session() *SessionState { return a.session }

func (a *Agent) publishMessage(ctx context.Context, msg OutboundMessage) error {
	if a.transport == nil {
		return fmt.Errorf("no transport attached")
	}
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("error encoding outbound message: %w", err)
	}
	return a.transport.Publish(ctx, data)
}

func (a *Agent) send(ctx context.Context, msg OutboundMessage) {
	if err := a.publishMessage(ctx, msg); err != nil {
		Logger().Error("failed to publish outbound message",
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()))
	}
}

// transportAudioSink feeds synthesized audio to the room for playback.
type transportAudioSink struct {
	transport Transport
}

func (s transportAudioSink) WriteAudio(ctx context.Context, pcm []byte) error {
	return s.transport.PublishAudio(ctx, pcm)
}
