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
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/packages/param"
)

const DefaultSynthesisModelName = "gpt-4o-mini-tts"

const DefaultSynthesisVoice = openai.AudioSpeechNewParamsVoiceAsh

// OpenAISynthesisModel backs SynthesisModel with OpenAI speech synthesis.
// Each segment is one request; the response body is raw PCM.
type OpenAISynthesisModel struct {
	model  string
	client openai.Client
}

// NewOpenAISynthesisModel creates a synthesis model. An empty model name
// selects DefaultSynthesisModelName.
func NewOpenAISynthesisModel(model string, client openai.Client) *OpenAISynthesisModel {
	return &OpenAISynthesisModel{
		model:  cmp.Or(model, DefaultSynthesisModelName),
		client: client,
	}
}

func (m *OpenAISynthesisModel) ModelName() string { return m.model }

func (m *OpenAISynthesisModel) Synthesize(ctx context.Context, text string, settings SynthesisSettings) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(m.model),
		Voice:          cmp.Or(openai.AudioSpeechNewParamsVoice(settings.Voice), DefaultSynthesisVoice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if settings.SpeakingRate > 0 {
		params.Speed = param.NewOpt(settings.SpeakingRate)
	}

	resp, err := m.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis error: %w", err)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading synthesis response body: %w", err)
	}
	if e := resp.Body.Close(); e != nil {
		err = errors.Join(err, fmt.Errorf("error closing synthesis response body: %w", e))
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}
