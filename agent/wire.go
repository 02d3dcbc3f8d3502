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
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of a data-channel message.
type MessageType string

const (
	MessageTypeText    MessageType = "text"
	MessageTypeImage   MessageType = "image"
	MessageTypeControl MessageType = "control"
)

// ControlAction is the action carried by a control message payload.
type ControlAction string

const (
	ActionStartSession ControlAction = "start_session"
	ActionEndSession   ControlAction = "end_session"
	ActionInterrupt    ControlAction = "interrupt"
)

// InboundMessage is the wire envelope for messages received over the data
// channel. The payload is kept opaque until a typed accessor parses it for
// the message kind at hand.
type InboundMessage struct {
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp float64        `json:"timestamp"`
	MessageID string         `json:"message_id"`
}

// TextPayload is the payload of a "text" message.
type TextPayload struct {
	Content string
}

// ImagePayload is the payload of an "image" message.
// Data is base64-encoded image bytes; Caption is optional.
type ImagePayload struct {
	Data    string
	Caption string
}

// ControlPayload is the payload of a "control" message.
type ControlPayload struct {
	Action        ControlAction
	SessionType   string
	VoiceMode     string
	UserID        string
	TurnDetection string
}

var envelopeFields = []string{"type", "payload", "timestamp", "message_id"}

// DecodeMessage parses and validates an inbound wire envelope.
// It fails with a MalformedPayloadError if the bytes are not a well-formed
// JSON object, if any of the four envelope fields is missing, or if the
// message type is not recognized. Unknown types are rejected, never
// silently ignored.
func DecodeMessage(data []byte) (*InboundMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, MalformedPayloadErrorf("malformed message envelope: %w", err)
	}
	for _, field := range envelopeFields {
		if _, ok := raw[field]; !ok {
			return nil, MalformedPayloadErrorf("message envelope is missing required field %q", field)
		}
	}

	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, MalformedPayloadErrorf("malformed message envelope: %w", err)
	}

	switch msg.Type {
	case MessageTypeText, MessageTypeImage, MessageTypeControl:
	default:
		return nil, MalformedPayloadErrorf("unrecognized message type %q", msg.Type)
	}
	return &msg, nil
}

func (m *InboundMessage) payloadString(key string) string {
	v, _ := m.Payload[key].(string)
	return v
}

// TextPayload extracts the payload of a text message.
func (m *InboundMessage) TextPayload() (TextPayload, error) {
	if m.Type != MessageTypeText {
		return TextPayload{}, MalformedPayloadErrorf("not a text message: %q", m.Type)
	}
	return TextPayload{Content: m.payloadString("content")}, nil
}

// ImagePayload extracts the payload of an image message.
func (m *InboundMessage) ImagePayload() (ImagePayload, error) {
	if m.Type != MessageTypeImage {
		return ImagePayload{}, MalformedPayloadErrorf("not an image message: %q", m.Type)
	}
	return ImagePayload{
		Data:    m.payloadString("data"),
		Caption: m.payloadString("caption"),
	}, nil
}

// ControlPayload extracts the payload of a control message.
func (m *InboundMessage) ControlPayload() (ControlPayload, error) {
	if m.Type != MessageTypeControl {
		return ControlPayload{}, MalformedPayloadErrorf("not a control message: %q", m.Type)
	}
	return ControlPayload{
		Action:        ControlAction(m.payloadString("action")),
		SessionType:   m.payloadString("session_type"),
		VoiceMode:     m.payloadString("voice_mode"),
		UserID:        m.payloadString("user_id"),
		TurnDetection: m.payloadString("turn_detection"),
	}, nil
}

// OutboundMessage is the wire envelope for messages sent over the data
// channel. It is always freshly constructed per send: a new message id and
// the current timestamp, never a reused inbound identifier.
type OutboundMessage struct {
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp float64        `json:"timestamp"`
	MessageID string         `json:"message_id"`
}

// NewOutboundMessage builds an envelope with a fresh message id and the
// current wall-clock timestamp. The caller supplies only type and payload.
func NewOutboundMessage(t MessageType, payload map[string]any) OutboundMessage {
	return OutboundMessage{
		Type:      t,
		Payload:   payload,
		Timestamp: nowTimestamp(),
		MessageID: uuid.NewString(),
	}
}

// NewContentMessage builds an outbound message whose payload carries a
// single content string.
func NewContentMessage(t MessageType, content string) OutboundMessage {
	return NewOutboundMessage(t, map[string]any{"content": content})
}

func (m OutboundMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// nowTimestamp returns the current wall-clock time as fractional seconds
// since the Unix epoch, the timestamp unit used on the wire.
func nowTimestamp() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
