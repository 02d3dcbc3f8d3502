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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageText(t *testing.T) {
	data := []byte(`{
		"type": "text",
		"payload": {"content": "how do I proof yeast?"},
		"timestamp": 1700000000.5,
		"message_id": "msg-1"
	}`)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeText, msg.Type)
	assert.Equal(t, 1700000000.5, msg.Timestamp)
	assert.Equal(t, "msg-1", msg.MessageID)

	p, err := msg.TextPayload()
	require.NoError(t, err)
	assert.Equal(t, "how do I proof yeast?", p.Content)
}

func TestDecodeMessageControl(t *testing.T) {
	data := []byte(`{
		"type": "control",
		"payload": {
			"action": "start_session",
			"session_type": "voice-vad",
			"voice_mode": "ash",
			"user_id": "u-42",
			"turn_detection": "server"
		},
		"timestamp": 1,
		"message_id": "msg-2"
	}`)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)

	p, err := msg.ControlPayload()
	require.NoError(t, err)
	assert.Equal(t, ActionStartSession, p.Action)
	assert.Equal(t, "voice-vad", p.SessionType)
	assert.Equal(t, "ash", p.VoiceMode)
	assert.Equal(t, "u-42", p.UserID)
	assert.Equal(t, "server", p.TurnDetection)
}

func TestDecodeMessageRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"not JSON", `not json at all`},
		{"JSON array", `[1, 2, 3]`},
		{"missing type", `{"payload": {}, "timestamp": 1, "message_id": "m"}`},
		{"missing payload", `{"type": "text", "timestamp": 1, "message_id": "m"}`},
		{"missing timestamp", `{"type": "text", "payload": {}, "message_id": "m"}`},
		{"missing message_id", `{"type": "text", "payload": {}, "timestamp": 1}`},
		{"unknown type", `{"type": "video", "payload": {}, "timestamp": 1, "message_id": "m"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestPayloadAccessorsRejectWrongType(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type": "text", "payload": {}, "timestamp": 1, "message_id": "m"}`))
	require.NoError(t, err)

	_, err = msg.ImagePayload()
	assert.Error(t, err)
	_, err = msg.ControlPayload()
	assert.Error(t, err)
}

func TestNewOutboundMessageFreshIdentity(t *testing.T) {
	a := NewContentMessage(MessageTypeText, "hello")
	b := NewContentMessage(MessageTypeText, "hello")

	assert.NotEmpty(t, a.MessageID)
	assert.NotEqual(t, a.MessageID, b.MessageID)
	assert.Greater(t, a.Timestamp, 0.0)

	data, err := a.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "text", decoded["type"])
	assert.Equal(t, map[string]any{"content": "hello"}, decoded["payload"])
}
