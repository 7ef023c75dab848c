// Copyright 2018 Axel Wagner
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

// Package wire implements the tagged-message codec shared by every
// Roughtime message on the wire: requests, responses, SREPs and
// certificates all nest inside the same framing. A message is a
// tag-sorted mapping from 4-byte tags to opaque byte strings; see
// Encode/Decode in encoder.go/decoder.go and the Message type in
// message.go for the random-access view required by callers that
// just want a field by tag.
package wire

import (
	"encoding/binary"
	"strconv"
)

// Tag represents a wire-format tag.
type Tag uint32

// String implements fmt.Stringer
func (t Tag) String() string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(t))
	s := strconv.Quote(string(b[:]))
	return s[1 : len(s)-1]
}

// MaxTags bounds the number of fields a single message may declare. Real
// Roughtime messages never need more than a handful of tags; this guards
// header parsing against a hostile tag count.
const MaxTags = 1024
