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

// Package transport connects an agent to a real-time room over a
// websocket: binary frames carry PCM audio, text frames carry JSON
// event envelopes.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bakebot/agent/agent"
	"github.com/bakebot/agent/asyncqueue"
	"github.com/bakebot/agent/asynctask"
	"github.com/gorilla/websocket"
)

// Room event names on the websocket wire.
const (
	wireEventData              = "data"
	wireEventSpeechActivity    = "speech_activity"
	wireEventParticipantJoined = "participant_joined"
)

// envelope is one text frame on the room websocket.
type envelope struct {
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Activity string          `json:"activity,omitempty"`
	Identity string          `json:"identity,omitempty"`
}

// RoomParams configure a room connection.
type RoomParams struct {
	// URL of the room websocket endpoint.
	URL string

	// Token authenticates the agent, sent as a bearer Authorization header.
	Token string

	// Optional; defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Room is a websocket-backed agent.Transport. One reader task turns
// incoming frames into room events on the inbound queue; writes are
// serialized behind a mutex because the connection allows one writer at
// a time.
type Room struct {
	params  RoomParams
	inbound *asyncqueue.Queue[agent.RoomEvent]

	writeMu sync.Mutex
	conn    *websocket.Conn
	reader  *asynctask.TaskNoValue
	closed  atomic.Bool
}

func NewRoom(params RoomParams) *Room {
	if params.Dialer == nil {
		params.Dialer = websocket.DefaultDialer
	}
	return &Room{
		params:  params,
		inbound: asyncqueue.New[agent.RoomEvent](),
	}
}

// Attach dials the room endpoint and starts the reader task.
func (r *Room) Attach(ctx context.Context) error {
	header := make(http.Header)
	if r.params.Token != "" {
		header.Set("Authorization", "Bearer "+r.params.Token)
	}

	conn, _, err := r.params.Dialer.DialContext(ctx, r.params.URL, header)
	if err != nil {
		return fmt.Errorf("room websocket connection error: %w", err)
	}
	r.conn = conn
	r.reader = asynctask.CreateTaskNoValue(ctx, r.readFrames)
	return nil
}

func (r *Room) Inbound() *asyncqueue.Queue[agent.RoomEvent] { return r.inbound }

// readFrames pumps the connection into the inbound queue until the
// connection ends, then terminates the queue with RoomClosed.
func (r *Room) readFrames(context.Context) error {
	defer func() {
		r.inbound.Put(agent.RoomClosed{})
	}()

	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			if r.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("error reading websocket message: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			frame, err := agent.PCMFrameFromBytes(data)
			if err != nil {
				agent.Logger().Warn("dropping malformed audio frame", slog.String("error", err.Error()))
				continue
			}
			r.inbound.Put(agent.AudioReceived{Frame: frame})

		case websocket.TextMessage:
			r.handleTextFrame(data)
		}
	}
}

func (r *Room) handleTextFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		agent.Logger().Warn("dropping malformed room event", slog.String("error", err.Error()))
		return
	}

	switch env.Event {
	case wireEventData:
		r.inbound.Put(agent.DataReceived{Payload: env.Payload})
	case wireEventSpeechActivity:
		r.inbound.Put(agent.SpeechActivityDetected{Activity: agent.SpeechActivity(env.Activity)})
	case wireEventParticipantJoined:
		r.inbound.Put(agent.ParticipantJoined{Identity: env.Identity})
	default:
		agent.Logger().Debug("ignoring unknown room event", slog.String("event", env.Event))
	}
}

// Publish sends one reliable data-channel payload as a text frame.
func (r *Room) Publish(_ context.Context, data []byte) error {
	env, err := json.Marshal(envelope{Event: wireEventData, Payload: data})
	if err != nil {
		return fmt.Errorf("error encoding room data event: %w", err)
	}
	return r.write(websocket.TextMessage, env)
}

// PublishAudio sends one PCM audio unit as a binary frame.
func (r *Room) PublishAudio(_ context.Context, pcm []byte) error {
	return r.write(websocket.BinaryMessage, pcm)
}

func (r *Room) write(messageType int, data []byte) error {
	if r.closed.Load() {
		return errors.New("room is closed")
	}
	if r.conn == nil {
		return errors.New("room is not attached")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("error writing websocket message: %w", err)
	}
	return nil
}

// Close tears the connection down. The reader task terminates the inbound
// queue with RoomClosed on its way out.
func (r *Room) Close(context.Context) error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.conn == nil {
		r.inbound.Put(agent.RoomClosed{})
		return nil
	}

	r.writeMu.Lock()
	closeErr := r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	r.writeMu.Unlock()

	err := r.conn.Close()
	if r.reader != nil {
		r.reader.Await()
	}

	if closeErr != nil {
		// The close handshake is best-effort; the hard close matters.
		agent.Logger().Debug("error sending websocket close message", slog.String("error", closeErr.Error()))
	}
	if err != nil {
		return fmt.Errorf("error closing websocket connection: %w", err)
	}
	return nil
}
