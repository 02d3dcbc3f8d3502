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
	"encoding/binary"
	"fmt"
	"time"
)

// Audio format at the room boundary: raw linear PCM, 16 kHz, mono, 16-bit.
const (
	AudioSampleRate  = 16000
	AudioSampleWidth = 2
	AudioChannels    = 1
)

// PCMFrame is a chunk of signed 16-bit little-endian PCM samples.
type PCMFrame []int16

func (f PCMFrame) Len() int { return len(f) }

func (f PCMFrame) Bytes() []byte {
	b := make([]byte, len(f)*2)
	for i, v := range f {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func (f PCMFrame) Int() []int {
	result := make([]int, len(f))
	for i, v := range f {
		result[i] = int(v)
	}
	return result
}

// Duration reports the playback time of the frame at the room sample rate.
func (f PCMFrame) Duration() time.Duration {
	return time.Duration(len(f)) * time.Second / AudioSampleRate
}

// PCMFrameFromBytes decodes a little-endian 16-bit sample buffer.
func PCMFrameFromBytes(b []byte) (PCMFrame, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("PCM buffer length %d is not even: cannot decode int16 samples", len(b))
	}
	frame := make(PCMFrame, len(b)/2)
	for i := range frame {
		frame[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return frame, nil
}
