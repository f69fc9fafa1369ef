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
	"testing"

	"github.com/google/uuid"
)

func TestParseBOS(t *testing.T) {
	containerID := uuid.MustParse("9d32f82c-1fb2-4486-8501-b6145b5ba336")
	buf := bosBytes(
		capabilityBytes(CapabilityUSB20Extension, u32le(0x02)),
		capabilityBytes(CapabilitySuperSpeed, []byte{0x00, 0x0e, 0x00, 0x01, 0x0a, 0xff, 0x07}),
		capabilityBytes(CapabilityContainerID, append([]byte{0}, guidLE(containerID)...)),
		platformCapBytes(WebUSBCapabilityUUID, []byte{0x00, 0x01, 0x22, 0x01}),
	)

	bos, err := parseBOS(buf)
	if err != nil {
		t.Fatalf("parseBOS(): %v", err)
	}
	if got, want := len(bos.Capabilities), 4; got != want {
		t.Fatalf("got %d capabilities, want %d", got, want)
	}

	ext := bos.Capabilities[0].USB20Extension
	if ext == nil {
		t.Fatal("capability 0: USB20Extension is nil")
	}
	if !ext.LPM() {
		t.Errorf("USB20Extension.LPM() = false with attributes 0x%08X, want true", ext.Attributes)
	}

	ss := bos.Capabilities[1].SuperSpeed
	if ss == nil {
		t.Fatal("capability 1: SuperSpeed is nil")
	}
	if got, want := ss.SpeedsSupported, uint16(0x000e); got != want {
		t.Errorf("SuperSpeed.SpeedsSupported = 0x%04X, want 0x%04X", got, want)
	}
	if got, want := ss.U2ExitLatency, uint16(0x07ff); got != want {
		t.Errorf("SuperSpeed.U2ExitLatency = 0x%04X, want 0x%04X", got, want)
	}

	cid := bos.Capabilities[2].ContainerID
	if cid == nil {
		t.Fatal("capability 2: ContainerID is nil")
	}
	if cid.ID != containerID {
		t.Errorf("ContainerID = %s, want %s", cid.ID, containerID)
	}

	p := bos.Capabilities[3].Platform
	if p == nil {
		t.Fatal("capability 3: Platform is nil")
	}
	if p.UUID != WebUSBCapabilityUUID {
		t.Errorf("platform UUID = %s, want %s", p.UUID, WebUSBCapabilityUUID)
	}
}

func TestParseBOSUnknownCapability(t *testing.T) {
	buf := bosBytes(capabilityBytes(CapabilityType(0x0b), []byte{0xde, 0xad}))
	bos, err := parseBOS(buf)
	if err != nil {
		t.Fatalf("parseBOS(): %v", err)
	}
	c := bos.Capabilities[0]
	if got, want := c.Type, CapabilityType(0x0b); got != want {
		t.Errorf("capability type = %s, want %s", got, want)
	}
	if c.USB20Extension != nil || c.SuperSpeed != nil || c.ContainerID != nil || c.Platform != nil {
		t.Errorf("unknown capability has a decoded view: %+v", c)
	}
	if got, want := len(c.Data), 2; got != want {
		t.Errorf("got %d bytes of raw payload, want %d", got, want)
	}
}

func TestParseBOSErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"truncated header", []byte{5, 0x0f, 10}},
		{"not a BOS descriptor", []byte{5, 0x01, 5, 0, 0}},
		{"capability with zero length", []byte{5, 0x0f, 8, 0, 1, 0x00, 0x10, 0x02}},
		{"capability length overruns total", bosBytes([]byte{0x7f, 0x10, 0x02, 0, 0, 0, 0})},
		{"capability with wrong descriptor type", bosBytes([]byte{7, 0x0f, 0x02, 0, 0, 0, 0})},
		{"platform payload too short", bosBytes(capabilityBytes(CapabilityPlatform, make([]byte, 10)))},
	}
	for _, test := range tests {
		if _, err := parseBOS(test.buf); err == nil {
			t.Errorf("%s: parseBOS() succeeded, want error", test.name)
		}
	}
}

func TestGUIDRoundTrip(t *testing.T) {
	// byte layout from the MS OS 2.0 spec: {D8DD60DF-4589-4CC7-9CD2-659D9E648A9F}
	wire := []byte{
		0xdf, 0x60, 0xdd, 0xd8, 0x89, 0x45, 0xc7, 0x4c,
		0x9c, 0xd2, 0x65, 0x9d, 0x9e, 0x64, 0x8a, 0x9f,
	}
	id, err := guidUUID(wire)
	if err != nil {
		t.Fatalf("guidUUID(): %v", err)
	}
	if id != MSOS20CapabilityUUID {
		t.Errorf("guidUUID() = %s, want %s", id, MSOS20CapabilityUUID)
	}
	back := guidLE(id)
	for i := range wire {
		if wire[i] != back[i] {
			t.Fatalf("guidLE() round trip mismatch at byte %d: got % x, want % x", i, back, wire)
		}
	}
	if _, err := guidUUID(wire[:15]); err == nil {
		t.Error("guidUUID() with 15 bytes succeeded, want error")
	}
}
