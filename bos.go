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
	"fmt"

	"github.com/google/uuid"
)

// CapabilityType is the bDevCapabilityType of a BOS device capability
// descriptor.
type CapabilityType uint8

// Device capability types (USB 3.x spec, table 9-14).
const (
	CapabilityWirelessUSB    CapabilityType = 0x01
	CapabilityUSB20Extension CapabilityType = 0x02
	CapabilitySuperSpeed     CapabilityType = 0x03
	CapabilityContainerID    CapabilityType = 0x04
	CapabilityPlatform       CapabilityType = 0x05
)

var capabilityTypeDescription = map[CapabilityType]string{
	CapabilityWirelessUSB:    "Wireless USB",
	CapabilityUSB20Extension: "USB 2.0 extension",
	CapabilitySuperSpeed:     "SuperSpeed USB",
	CapabilityContainerID:    "Container ID",
	CapabilityPlatform:       "Platform",
}

// String returns a human-readable name of the capability type.
func (c CapabilityType) String() string {
	if d, ok := capabilityTypeDescription[c]; ok {
		return d
	}
	return fmt.Sprintf("Unknown (0x%02X)", uint8(c))
}

// BOS is a decoded Binary Device Object Store descriptor.
type BOS struct {
	// Raw is the complete descriptor as read from the device.
	Raw []byte
	// Capabilities are the device capability descriptors in wire order.
	Capabilities []DeviceCapability
}

// DeviceCapability is a single BOS device capability. Type and Data are
// always populated; exactly one of the typed views is non-nil for the
// capability types this package decodes.
type DeviceCapability struct {
	Type CapabilityType
	// Data is the capability payload following bDevCapabilityType.
	Data []byte

	USB20Extension *USB20Extension     `json:",omitempty"`
	SuperSpeed     *SuperSpeed         `json:",omitempty"`
	ContainerID    *ContainerID        `json:",omitempty"`
	Platform       *PlatformCapability `json:",omitempty"`
}

// USB20Extension is the USB 2.0 extension capability.
type USB20Extension struct {
	// Attributes is bmAttributes; bit 1 signals Link Power Management.
	Attributes uint32
}

// LPM reports whether the device supports Link Power Management.
func (e *USB20Extension) LPM() bool {
	return e.Attributes&0x02 != 0
}

// SuperSpeed is the SuperSpeed USB device capability.
type SuperSpeed struct {
	Attributes           uint8
	SpeedsSupported      uint16
	FunctionalitySupport uint8
	U1ExitLatency        uint8
	U2ExitLatency        uint16
}

// ContainerID carries the UUID shared by all functions of a composite
// device.
type ContainerID struct {
	ID uuid.UUID
}

// PlatformCapability is a platform capability descriptor; the UUID selects
// the payload layout. See WebUSB() and MSOS20() on BOS for the two payloads
// this package understands.
type PlatformCapability struct {
	UUID uuid.UUID
	Data []byte
}

const bosHeaderLen = 5

// parseBOS decodes a complete BOS descriptor: the 5-byte header followed
// by bNumDeviceCaps device capability descriptors. Unknown capability types
// are retained undecoded.
func parseBOS(buf []byte) (*BOS, error) {
	if len(buf) < bosHeaderLen {
		return nil, fmt.Errorf("BOS descriptor is %d bytes, need at least %d", len(buf), bosHeaderLen)
	}
	if buf[1] != descTypeBOS {
		return nil, fmt.Errorf("descriptor type is 0x%02X, want BOS (0x%02X)", buf[1], descTypeBOS)
	}
	total := int(le16(buf[2:4]))
	if total > len(buf) {
		total = len(buf)
	}
	if int(buf[0]) < bosHeaderLen {
		return nil, fmt.Errorf("BOS header declares %d bytes, need at least %d", buf[0], bosHeaderLen)
	}

	b := &BOS{Raw: buf[:total]}
	off := int(buf[0])
	for off < total {
		rest := buf[off:total]
		if len(rest) < 3 {
			return nil, fmt.Errorf("trailing %d bytes after last device capability", len(rest))
		}
		length := int(rest[0])
		if length < 3 || length > len(rest) {
			return nil, fmt.Errorf("device capability at offset %d declares %d bytes, have %d", off, length, len(rest))
		}
		if rest[1] != descTypeDeviceCapability {
			return nil, fmt.Errorf("descriptor at offset %d has type 0x%02X, want DEVICE CAPABILITY (0x%02X)", off, rest[1], descTypeDeviceCapability)
		}
		c, err := parseDeviceCapability(CapabilityType(rest[2]), rest[3:length])
		if err != nil {
			return nil, fmt.Errorf("device capability at offset %d: %v", off, err)
		}
		b.Capabilities = append(b.Capabilities, c)
		off += length
	}
	return b, nil
}

func parseDeviceCapability(typ CapabilityType, data []byte) (DeviceCapability, error) {
	c := DeviceCapability{Type: typ, Data: data}
	switch typ {
	case CapabilityUSB20Extension:
		if len(data) < 4 {
			return c, fmt.Errorf("USB 2.0 extension payload is %d bytes, want 4", len(data))
		}
		c.USB20Extension = &USB20Extension{Attributes: le32(data[0:4])}
	case CapabilitySuperSpeed:
		if len(data) < 7 {
			return c, fmt.Errorf("SuperSpeed payload is %d bytes, want 7", len(data))
		}
		c.SuperSpeed = &SuperSpeed{
			Attributes:           data[0],
			SpeedsSupported:      le16(data[1:3]),
			FunctionalitySupport: data[3],
			U1ExitLatency:        data[4],
			U2ExitLatency:        le16(data[5:7]),
		}
	case CapabilityContainerID:
		if len(data) < 17 {
			return c, fmt.Errorf("container ID payload is %d bytes, want 17", len(data))
		}
		id, err := guidUUID(data[1:17])
		if err != nil {
			return c, err
		}
		c.ContainerID = &ContainerID{ID: id}
	case CapabilityPlatform:
		if len(data) < 17 {
			return c, fmt.Errorf("platform capability payload is %d bytes, want at least 17", len(data))
		}
		id, err := guidUUID(data[1:17])
		if err != nil {
			return c, err
		}
		c.Platform = &PlatformCapability{UUID: id, Data: data[17:]}
	}
	return c, nil
}
