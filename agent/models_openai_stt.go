package agent

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/bakebot/agent/util"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/openai/openai-go/v2"
)

const DefaultRecognitionModelName = "gpt-4o-transcribe"

// OpenAIRecognitionModel backs RecognitionModel with OpenAI audio
// transcriptions. Streams buffer audio locally and transcribe the whole
// utterance on Finish; no partial events are produced.
type OpenAIRecognitionModel struct {
	model  string
	client openai.Client
}

// NewOpenAIRecognitionModel creates a recognition model. An empty model
// name selects DefaultRecognitionModelName.
func NewOpenAIRecognitionModel(model string, client openai.Client) *OpenAIRecognitionModel {
	return &OpenAIRecognitionModel{
		model:  cmp.Or(model, DefaultRecognitionModelName),
		client: client,
	}
}

func (m *OpenAIRecognitionModel) ModelName() string { return m.model }

func (m *OpenAIRecognitionModel) NewStream(context.Context) (RecognitionStream, error) {
	return &openAIRecognitionStream{model: m}, nil
}

type openAIRecognitionStream struct {
	model    *OpenAIRecognitionModel
	samples  []int
	finished bool
}

func (s *openAIRecognitionStream) Send(_ context.Context, frame PCMFrame) ([]TranscriptEvent, error) {
	if s.finished {
		return nil, errors.New("recognition stream is finished")
	}
	s.samples = append(s.samples, frame.Int()...)
	return nil, nil
}

func (s *openAIRecognitionStream) Finish(ctx context.Context) ([]TranscriptEvent, error) {
	if s.finished {
		return nil, errors.New("recognition stream is finished")
	}
	s.finished = true

	// No audio means the user said nothing, which is a valid result.
	if len(s.samples) == 0 {
		return []TranscriptEvent{{Kind: TranscriptFinal, Text: ""}}, nil
	}

	wavData, err := encodeWAV(s.samples)
	if err != nil {
		return nil, err
	}

	response, err := s.model.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(s.model.model),
		File:  openai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
	})
	if err != nil {
		return nil, fmt.Errorf("audio transcription error: %w", err)
	}

	return []TranscriptEvent{{Kind: TranscriptFinal, Text: response.Text}}, nil
}

func (s *openAIRecognitionStream) Close(context.Context) error {
	s.finished = true
	s.samples = nil
	return nil
}

func encodeWAV(samples []int) ([]byte, error) {
	var buf util.SeekBuffer
	enc := wav.NewEncoder(
		&buf,
		AudioSampleRate,
		8*AudioSampleWidth,
		AudioChannels,
		1, // PCM
	)

	err := enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: AudioChannels,
			SampleRate:  AudioSampleRate,
		},
		Data:           samples,
		SourceBitDepth: 8 * AudioSampleWidth,
	})
	if err != nil {
		return nil, fmt.Errorf("error writing WAV data: %w", err)
	}
	if err = enc.Close(); err != nil {
		return nil, fmt.Errorf("error closing WAV encoder: %w", err)
	}
	return buf.Bytes(), nil
}
