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

package util

import (
	"fmt"
	"io"
)

// SeekBuffer collects encoder output in memory. Container encoders such
// as WAV write the body first and then seek back to patch chunk sizes
// into the header, which a plain bytes.Buffer cannot support.
type SeekBuffer struct {
	data []byte
	pos  int
}

// Bytes returns the written content. The slice is shared with the
// buffer, not a copy.
func (b *SeekBuffer) Bytes() []byte { return b.data }

func (b *SeekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *SeekBuffer) Seek(offset int64, whence int) (int64, error) {
	pos := int(offset)
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		pos += b.pos
	case io.SeekEnd:
		pos += len(b.data)
	default:
		return 0, fmt.Errorf("SeekBuffer.Seek: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("SeekBuffer.Seek: negative position %d", pos)
	}
	b.pos = pos
	return int64(pos), nil
}
