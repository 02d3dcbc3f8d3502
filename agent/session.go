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
	"sync/atomic"
)

// SessionType is the interaction mode of a session.
type SessionType string

const (
	SessionTypeText     SessionType = "text"
	SessionTypeVoicePTT SessionType = "voice-ptt"
	SessionTypeVoiceVAD SessionType = "voice-vad"
)

func (t SessionType) IsVoice() bool {
	return t == SessionTypeVoicePTT || t == SessionTypeVoiceVAD
}

// TurnDetectionMode selects who decides when a user turn has ended.
type TurnDetectionMode string

const (
	TurnDetectionClient TurnDetectionMode = "client"
	TurnDetectionServer TurnDetectionMode = "server"
	TurnDetectionAuto   TurnDetectionMode = "auto"
)

// SessionConfig is the live configuration of a session. It is replaced
// wholesale on start_session and never partially mutated.
type SessionConfig struct {
	SessionType   SessionType
	VoiceMode     string
	UserID        string
	TurnDetection TurnDetectionMode
}

// PublishFunc sends an outbound message to the room participant.
type PublishFunc func(ctx context.Context, msg OutboundMessage) error

// VoiceLifecycleHooks is notified when a voice session begins or ends, so
// the owner can open or release the recognition ingest path.
type VoiceLifecycleHooks interface {
	VoiceSessionStarted(ctx context.Context)
	VoiceSessionEnded(ctx context.Context)
}

// SessionState is the session lifecycle state machine:
// NoSession -> Active(config) -> NoSession. No intermediate or error state
// is ever persisted; a malformed control action is a logged no-op.
type SessionState struct {
	config  atomic.Pointer[SessionConfig]
	bridge  *SpeechBridge
	publish PublishFunc
	hooks   VoiceLifecycleHooks
}

func NewSessionState(bridge *SpeechBridge, publish PublishFunc) *SessionState {
	return &SessionState{
		bridge:  bridge,
		publish: publish,
	}
}

// SetVoiceHooks registers lifecycle hooks. A nil value disables them.
func (s *SessionState) SetVoiceHooks(hooks VoiceLifecycleHooks) {
	s.hooks = hooks
}

// Config returns the live configuration, or nil when no session is active.
func (s *SessionState) Config() *SessionConfig {
	return s.config.Load()
}

func (s *SessionState) Active() bool {
	return s.config.Load() != nil
}

// HandleControl dispatches a control message payload to the matching
// session action.
func (s *SessionState) HandleControl(ctx context.Context, p ControlPayload) {
	switch p.Action {
	case ActionStartSession:
		s.startSession(ctx, p)
	case ActionEndSession:
		s.endSession(ctx)
	case ActionInterrupt:
		s.interrupt()
	default:
		Logger().Warn("ignoring unknown control action", slog.String("action", string(p.Action)))
	}
}

// startSession replaces any existing session configuration wholesale.
// For voice types the bridge is (re)configured before the acknowledgment
// is sent.
func (s *SessionState) startSession(ctx context.Context, p ControlPayload) {
	config, ok := sessionConfigFrom(p)
	if !ok {
		Logger().Warn("ignoring start_session with invalid payload",
			slog.String("session_type", p.SessionType),
			slog.String("turn_detection", p.TurnDetection))
		return
	}

	// No overlapping agent speech across sessions.
	s.bridge.CancelSynthesis()
	if prev := s.config.Load(); prev != nil && prev.SessionType.IsVoice() && !config.SessionType.IsVoice() {
		s.notifyVoiceEnded(ctx)
	}

	if config.SessionType.IsVoice() {
		s.bridge.Configure(config.VoiceMode)
		if _, err := s.bridge.OpenSynthesis(ctx); err != nil {
			Logger().Error("failed to open synthesis session", slog.String("error", err.Error()))
		}
	}

	s.config.Store(config)
	Logger().Info("session started",
		slog.String("session_type", string(config.SessionType)),
		slog.String("user_id", config.UserID))

	if config.SessionType.IsVoice() {
		s.notifyVoiceStarted(ctx)
	}

	s.sendAck(ctx, "session_started")
}

// endSession transitions back to NoSession. An open synthesis session is
// cancelled first, best-effort: a downstream fault must not block teardown.
func (s *SessionState) endSession(ctx context.Context) {
	prev := s.config.Swap(nil)

	s.bridge.CancelSynthesis()
	if prev != nil && prev.SessionType.IsVoice() {
		s.notifyVoiceEnded(ctx)
	}

	Logger().Info("session ended")
	s.sendAck(ctx, "session_ended")
}

// interrupt cancels the open synthesis session. Valid only while a session
// is active with synthesis open; otherwise it is a no-op. No
// acknowledgment is emitted.
func (s *SessionState) interrupt() {
	if !s.Active() || !s.bridge.SynthesisOpen() {
		return
	}
	Logger().Info("interrupting agent speech")
	s.bridge.CancelSynthesis()
}

// The acknowledgment is sent strictly after its transition has completed.
func (s *SessionState) sendAck(ctx context.Context, status string) {
	msg := NewOutboundMessage(MessageTypeControl, map[string]any{"status": status})
	if err := s.publish(ctx, msg); err != nil {
		Logger().Error("failed to publish control acknowledgment",
			slog.String("status", status),
			slog.String("error", err.Error()))
	}
}

func (s *SessionState) notifyVoiceStarted(ctx context.Context) {
	if s.hooks != nil {
		s.hooks.VoiceSessionStarted(ctx)
	}
}

func (s *SessionState) notifyVoiceEnded(ctx context.Context) {
	if s.hooks != nil {
		s.hooks.VoiceSessionEnded(ctx)
	}
}

func sessionConfigFrom(p ControlPayload) (*SessionConfig, bool) {
	sessionType := SessionType(p.SessionType)
	if p.SessionType == "" {
		sessionType = SessionTypeText
	}
	switch sessionType {
	case SessionTypeText, SessionTypeVoicePTT, SessionTypeVoiceVAD:
	default:
		return nil, false
	}

	turnDetection := TurnDetectionMode(p.TurnDetection)
	if p.TurnDetection == "" {
		turnDetection = TurnDetectionAuto
	}
	switch turnDetection {
	case TurnDetectionClient, TurnDetectionServer, TurnDetectionAuto:
	default:
		return nil, false
	}

	userID := p.UserID
	if userID == "" {
		userID = "unknown"
	}

	return &SessionConfig{
		SessionType:   sessionType,
		VoiceMode:     p.VoiceMode,
		UserID:        userID,
		TurnDetection: turnDetection,
	}, true
}
