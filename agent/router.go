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
	"encoding/base64"
	"log/slog"
)

// MessageRouter decodes inbound data-channel payloads and dispatches them
// by kind: text and image messages to the response coordinator, control
// messages to the session state machine.
type MessageRouter struct {
	history     *ConversationHistory
	session     *SessionState
	coordinator *ResponseCoordinator
	publish     PublishFunc
}

func NewMessageRouter(
	history *ConversationHistory,
	session *SessionState,
	coordinator *ResponseCoordinator,
	publish PublishFunc,
) *MessageRouter {
	return &MessageRouter{
		history:     history,
		session:     session,
		coordinator: coordinator,
		publish:     publish,
	}
}

// DecodeAndDispatch decodes one raw data-channel payload and routes it.
// Malformed payloads are dropped and logged.
func (r *MessageRouter) DecodeAndDispatch(ctx context.Context, data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		Logger().Warn("dropping malformed inbound message", slog.String("error", err.Error()))
		return
	}
	r.Dispatch(ctx, msg)
}

// Dispatch routes a decoded inbound message. The user turn is appended to
// history before generation begins, and the agent reply after generation
// completes, even if the outbound send subsequently fails: history
// reflects what was said, not what was delivered.
func (r *MessageRouter) Dispatch(ctx context.Context, msg *InboundMessage) {
	switch msg.Type {
	case MessageTypeText:
		r.dispatchText(ctx, msg)
	case MessageTypeImage:
		r.dispatchImage(ctx, msg)
	case MessageTypeControl:
		r.dispatchControl(ctx, msg)
	}
}

func (r *MessageRouter) dispatchText(ctx context.Context, msg *InboundMessage) {
	p, err := msg.TextPayload()
	if err != nil {
		Logger().Warn("dropping invalid text message", slog.String("error", err.Error()))
		return
	}
	if p.Content == "" {
		return
	}

	r.history.Append(SpeakerUser, p.Content, msg.Timestamp)
	reply := r.coordinator.GenerateFromText(ctx, p.Content, r.history.ContextWindow())
	r.history.Append(SpeakerAgent, reply, nowTimestamp())

	r.send(ctx, NewContentMessage(MessageTypeText, reply))
}

func (r *MessageRouter) dispatchImage(ctx context.Context, msg *InboundMessage) {
	p, err := msg.ImagePayload()
	if err != nil {
		Logger().Warn("dropping invalid image message", slog.String("error", err.Error()))
		return
	}
	if p.Data == "" {
		return
	}

	imageBytes, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		Logger().Warn("dropping image message with invalid base64 data",
			slog.String("error", MalformedPayloadErrorf("image data: %w", err).Error()))
		return
	}

	entry := "[Image]"
	if p.Caption != "" {
		entry = "[Image] " + p.Caption
	}
	r.history.Append(SpeakerUser, entry, msg.Timestamp)
	reply := r.coordinator.GenerateFromImage(ctx, imageBytes, p.Caption)
	r.history.Append(SpeakerAgent, reply, nowTimestamp())

	r.send(ctx, NewContentMessage(MessageTypeText, reply))
}

func (r *MessageRouter) dispatchControl(ctx context.Context, msg *InboundMessage) {
	p, err := msg.ControlPayload()
	if err != nil {
		Logger().Warn("dropping invalid control message", slog.String("error", err.Error()))
		return
	}
	r.session.HandleControl(ctx, p)
}

func (r *MessageRouter) send(ctx context.Context, msg OutboundMessage) {
	if err := r.publish(ctx, msg); err != nil {
		Logger().Error("failed to publish outbound message",
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()))
	}
}
