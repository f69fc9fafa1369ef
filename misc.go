// Copyright 2025 the webusb Authors.  All rights reserved.
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

package webusb

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/google/uuid"
)

func le16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func le32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// decodeUTF16 converts UTF-16LE descriptor payload to a Go string. An odd
// trailing byte is ignored.
func decodeUTF16(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, binary.LittleEndian.Uint16(b[i:]))
	}
	return string(utf16.Decode(u))
}

func trimNUL(s string) string {
	return strings.TrimRight(s, "\x00")
}

// asciiID converts a fixed-width, NUL-padded ASCII field (compatible IDs
// and friends) to a string.
func asciiID(b []byte) string {
	return trimNUL(string(b))
}

// guidUUID converts a 16-byte little-endian GUID, as it appears on the
// wire in platform capability and container ID descriptors, to an RFC 4122
// ordered uuid.UUID.
func guidUUID(b []byte) (uuid.UUID, error) {
	var rfc [16]byte
	if len(b) != 16 {
		return uuid.Nil, fmt.Errorf("GUID is %d bytes, want 16", len(b))
	}
	rfc[0], rfc[1], rfc[2], rfc[3] = b[3], b[2], b[1], b[0]
	rfc[4], rfc[5] = b[5], b[4]
	rfc[6], rfc[7] = b[7], b[6]
	copy(rfc[8:], b[8:16])
	return uuid.FromBytes(rfc[:])
}
