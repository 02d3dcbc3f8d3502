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
	"slices"
	"sync"
)

// Speaker identifies which party produced a conversation turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one exchange unit in the conversation history.
// Turns are immutable once appended; append order is the context order
// passed to the generation capability.
type Turn struct {
	Speaker   Speaker
	Content   string
	Timestamp float64
}

// ConversationHistory is the append-only ordered log of turns for one
// session. It is owned exclusively by its agent and discarded on teardown.
type ConversationHistory struct {
	mu    sync.Mutex
	turns []Turn
}

func NewConversationHistory() *ConversationHistory {
	return &ConversationHistory{}
}

func (h *ConversationHistory) Append(speaker Speaker, content string, timestamp float64) {
	h.mu.Lock()
	h.turns = append(h.turns, Turn{Speaker: speaker, Content: content, Timestamp: timestamp})
	h.mu.Unlock()
}

// Turns returns a copy of the full log in append order.
func (h *ConversationHistory) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.turns)
}

// ContextWindow returns the turns to pass to a generation request: every
// turn except the most recent one, which is the in-flight turn being
// generated for and is supplied to the capability separately.
func (h *ConversationHistory) ContextWindow() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.turns) == 0 {
		return nil
	}
	return slices.Clone(h.turns[:len(h.turns)-1])
}

func (h *ConversationHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Clear discards the log. Called only on agent teardown.
func (h *ConversationHistory) Clear() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}
