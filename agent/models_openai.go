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
	"cmp"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v2"
)

const DefaultGenerationModelName = "gpt-4o-mini"

const generationSystemPrompt = `You are BakeBot, a friendly and knowledgeable virtual sous chef.
You help users with cooking questions, recipes, techniques, and food advice.

Guidelines:
- Be encouraging and supportive, especially for beginners
- Provide clear, step-by-step instructions
- Offer substitutions for dietary restrictions when possible
- Explain cooking techniques in simple terms
- Ask clarifying questions when needed
- Keep responses conversational and engaging
- If you see an image of food or cooking, provide specific advice based on what you observe

Always be helpful, accurate, and maintain a positive, enthusiastic tone about cooking!`

// OpenAIGenerationModel backs GenerationModel with OpenAI chat completions.
type OpenAIGenerationModel struct {
	model  string
	client openai.Client
}

// NewOpenAIGenerationModel creates a generation model. An empty model name
// selects DefaultGenerationModelName.
func NewOpenAIGenerationModel(model string, client openai.Client) *OpenAIGenerationModel {
	return &OpenAIGenerationModel{
		model:  cmp.Or(model, DefaultGenerationModelName),
		client: client,
	}
}

func (m *OpenAIGenerationModel) ModelName() string { return m.model }

func (m *OpenAIGenerationModel) GenerateText(ctx context.Context, message string, history []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(generationSystemPrompt))
	for _, turn := range history {
		switch turn.Speaker {
		case SpeakerAgent:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	response, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(m.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

func (m *OpenAIGenerationModel) AnalyzeImage(ctx context.Context, imageData []byte, caption string) (string, error) {
	question := "What can you tell me about this cooking-related image?"
	if caption != "" {
		question = fmt.Sprintf("User says: %s\n\nWhat can you tell me about this image?", caption)
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)

	response, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(generationSystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(question),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("image analysis error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("image analysis returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}
