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

// Command bakebot runs the BakeBot conversational agent against a room.
//
// Configuration is taken from the environment (a .env file is honored):
//
//	OPENAI_API_KEY  required
//	ROOM_URL        required, websocket endpoint of the room
//	ROOM_TOKEN      required, bearer token for the room
//	AGENT_NAME      optional, defaults to "BakeBot"
//	CHAT_MODEL      optional, generation model override
//	STT_MODEL       optional, recognition model override
//	TTS_MODEL       optional, synthesis model override
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bakebot/agent/agent"
	"github.com/bakebot/agent/transport"
	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	apiKey, err := requireEnv("OPENAI_API_KEY")
	if err != nil {
		return err
	}
	roomURL, err := requireEnv("ROOM_URL")
	if err != nil {
		return err
	}
	roomToken, err := requireEnv("ROOM_TOKEN")
	if err != nil {
		return err
	}

	if os.Getenv("BAKEBOT_DEBUG") != "" {
		agent.EnableVerboseLogging()
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	a := agent.New(agent.Params{
		Name:        cmp.Or(os.Getenv("AGENT_NAME"), "BakeBot"),
		Generation:  agent.NewOpenAIGenerationModel(os.Getenv("CHAT_MODEL"), client),
		Recognition: agent.NewOpenAIRecognitionModel(os.Getenv("STT_MODEL"), client),
		Synthesis:   agent.NewOpenAISynthesisModel(os.Getenv("TTS_MODEL"), client),
	})

	room := transport.NewRoom(transport.RoomParams{
		URL:   roomURL,
		Token: roomToken,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, room); err != nil {
		return err
	}

	<-ctx.Done()
	stop()

	a.Cleanup(context.Background())
	return nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("missing required environment variable %s", name)
	}
	return v, nil
}
