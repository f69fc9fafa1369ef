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
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"unicode/utf16"

	"github.com/google/uuid"
)

// fakeControlDevice scripts control transfer responses per request, in the
// spirit of gousb's fakeLibusb. A scripted response longer than the
// requested wLength is truncated, the way a real device answers a shorter
// host buffer.
type fakeControlDevice struct {
	responses map[controlRequest][]byte
	errs      map[controlRequest]error
	strings   map[int]string
	calls     []controlRequest
}

type controlRequest struct {
	rType, request uint8
	val, idx       uint16
}

func newFakeControlDevice() *fakeControlDevice {
	return &fakeControlDevice{
		responses: make(map[controlRequest][]byte),
		errs:      make(map[controlRequest]error),
		strings:   make(map[int]string),
	}
}

func (f *fakeControlDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	key := controlRequest{rType, request, val, idx}
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return 0, err
	}
	resp, ok := f.responses[key]
	if !ok {
		return 0, fmt.Errorf("unscripted control request %+v", key)
	}
	return copy(data, resp), nil
}

func (f *fakeControlDevice) GetStringDescriptor(descIndex int) (string, error) {
	s, ok := f.strings[descIndex]
	if !ok {
		return "", fmt.Errorf("no string descriptor at index %d", descIndex)
	}
	return s, nil
}

// bytesFromHexFile loads descriptor bytes from a testdata hex file.
func bytesFromHexFile(path string) ([]byte, error) {
	hexData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hexData = bytes.TrimSpace(hexData)
	if len(hexData)%2 == 1 {
		return nil, fmt.Errorf("hex data file has %d characters, expected an even number", len(hexData))
	}
	data := make([]byte, len(hexData)/2)
	if _, err := hex.Decode(data, hexData); err != nil {
		return nil, fmt.Errorf("failed to decode hex data: %v", err)
	}
	return data, nil
}

// Wire format builders. All length fields are computed so the fixtures
// stay consistent by construction.

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// utf16z encodes a string as NUL-terminated UTF-16LE.
func utf16z(s string) []byte {
	var b []byte
	for _, u := range utf16.Encode([]rune(s)) {
		b = append(b, u16le(u)...)
	}
	return append(b, 0, 0)
}

// guidLE converts a uuid.UUID to the 16-byte little-endian GUID wire form,
// the inverse of guidUUID.
func guidLE(u uuid.UUID) []byte {
	b := make([]byte, 16)
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:], u[8:16])
	return b
}

func compatIDBytes(version uint16, fns ...CompatFunction) []byte {
	b := u32le(uint32(compatIDHeaderLen + compatIDSectionLen*len(fns)))
	b = append(b, u16le(version)...)
	b = append(b, u16le(msos10CompatIDIndex)...)
	b = append(b, byte(len(fns)))
	b = append(b, make([]byte, 7)...)
	for _, f := range fns {
		s := make([]byte, compatIDSectionLen)
		s[0] = byte(f.FirstInterface)
		s[1] = 1
		copy(s[2:10], f.CompatibleID)
		copy(s[10:18], f.SubCompatibleID)
		b = append(b, s...)
	}
	return b
}

func extPropsBytes(props ...Property) []byte {
	var sections []byte
	for _, p := range props {
		name := utf16z(p.Name)
		s := u32le(uint32(14 + len(name) + len(p.Data)))
		s = append(s, u32le(uint32(p.DataType))...)
		s = append(s, u16le(uint16(len(name)))...)
		s = append(s, name...)
		s = append(s, u32le(uint32(len(p.Data)))...)
		s = append(s, p.Data...)
		sections = append(sections, s...)
	}
	b := u32le(uint32(extPropsHeaderLen + len(sections)))
	b = append(b, u16le(0x0100)...)
	b = append(b, u16le(msos10ExtPropsIndex)...)
	b = append(b, u16le(uint16(len(props)))...)
	return append(b, sections...)
}

func capabilityBytes(typ CapabilityType, payload []byte) []byte {
	b := []byte{byte(3 + len(payload)), descTypeDeviceCapability, byte(typ)}
	return append(b, payload...)
}

func platformCapBytes(id uuid.UUID, data []byte) []byte {
	payload := append([]byte{0}, guidLE(id)...)
	return capabilityBytes(CapabilityPlatform, append(payload, data...))
}

func bosBytes(caps ...[]byte) []byte {
	var body []byte
	for _, c := range caps {
		body = append(body, c...)
	}
	b := []byte{bosHeaderLen, descTypeBOS}
	b = append(b, u16le(uint16(bosHeaderLen+len(body)))...)
	b = append(b, byte(len(caps)))
	return append(b, body...)
}

func msos20DescBytes(typ MSOS20DescriptorType, body []byte) []byte {
	b := u16le(uint16(4 + len(body)))
	b = append(b, u16le(uint16(typ))...)
	return append(b, body...)
}

func msos20CompatIDBytes(id, sub string) []byte {
	body := make([]byte, 16)
	copy(body[0:8], id)
	copy(body[8:16], sub)
	return msos20DescBytes(MSOS20FeatureCompatibleID, body)
}

func msos20RegPropBytes(typ PropertyDataType, name string, data []byte) []byte {
	n := utf16z(name)
	body := u16le(uint16(typ))
	body = append(body, u16le(uint16(len(n)))...)
	body = append(body, n...)
	body = append(body, u16le(uint16(len(data)))...)
	body = append(body, data...)
	return msos20DescBytes(MSOS20FeatureRegProperty, body)
}

func msos20FuncSubsetBytes(firstIface byte, content ...[]byte) []byte {
	var body []byte
	for _, c := range content {
		body = append(body, c...)
	}
	b := u16le(8)
	b = append(b, u16le(uint16(MSOS20SubsetHeaderFunction))...)
	b = append(b, firstIface, 0)
	b = append(b, u16le(uint16(8+len(body)))...)
	return append(b, body...)
}

func msos20ConfigSubsetBytes(cfg byte, content ...[]byte) []byte {
	var body []byte
	for _, c := range content {
		body = append(body, c...)
	}
	b := u16le(8)
	b = append(b, u16le(uint16(MSOS20SubsetHeaderConfiguration))...)
	b = append(b, cfg, 0)
	b = append(b, u16le(uint16(8+len(body)))...)
	return append(b, body...)
}

func msos20SetBytes(windowsVersion uint32, content ...[]byte) []byte {
	var body []byte
	for _, c := range content {
		body = append(body, c...)
	}
	b := u16le(msos20SetHeaderLen)
	b = append(b, u16le(uint16(MSOS20SetHeader))...)
	b = append(b, u32le(windowsVersion)...)
	b = append(b, u16le(uint16(msos20SetHeaderLen+len(body)))...)
	return append(b, body...)
}

func urlDescriptorBytes(scheme URLScheme, url string) []byte {
	b := []byte{byte(3 + len(url)), urlDescriptorType, byte(scheme)}
	return append(b, url...)
}
