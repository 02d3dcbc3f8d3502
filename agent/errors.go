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
	"errors"
	"fmt"
)

// MalformedPayloadError is returned when an inbound data message cannot be
// decoded: not a well-formed JSON document, missing envelope fields, or an
// unrecognized message type. The message is dropped and logged.
type MalformedPayloadError error

func NewMalformedPayloadError(message string) MalformedPayloadError {
	return MalformedPayloadError(errors.New(message))
}

func MalformedPayloadErrorf(format string, a ...any) MalformedPayloadError {
	return MalformedPayloadError(fmt.Errorf(format, a...))
}

// GenerationFailureError is returned when the external generation capability
// fails. It is absorbed into a fixed fallback reply and never aborts a turn.
type GenerationFailureError error

func GenerationFailureErrorf(format string, a ...any) GenerationFailureError {
	return GenerationFailureError(fmt.Errorf(format, a...))
}

// SynthesisSegmentError is returned when synthesizing a single text segment
// fails. The segment is skipped; the synthesis session continues.
type SynthesisSegmentError error

func SynthesisSegmentErrorf(format string, a ...any) SynthesisSegmentError {
	return SynthesisSegmentError(fmt.Errorf(format, a...))
}

// RecognitionStreamError is returned when the recognition stream aborts.
// Callers surface an empty transcript instead of propagating it.
type RecognitionStreamError error

func RecognitionStreamErrorf(format string, a ...any) RecognitionStreamError {
	return RecognitionStreamError(fmt.Errorf(format, a...))
}

// TeardownError wraps a failure of one cleanup step. Teardown errors are
// logged and suppressed; cleanup always runs every step.
type TeardownError error

func TeardownErrorf(format string, a ...any) TeardownError {
	return TeardownError(fmt.Errorf(format, a...))
}
