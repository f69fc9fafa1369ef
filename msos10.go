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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/gousb"
)

// Microsoft OS 1.0 descriptors. A device opts in by answering a string
// descriptor request at index 0xEE with the "MSFT100" signature; the
// bMS_VendorCode byte of that descriptor is then used as bRequest for the
// feature descriptor requests below.
const (
	osStringDescIndex  = 0xee
	osStringDescLength = 0x12
	// vendor code position within the OS string descriptor
	osStringVendorCodeOffset = 0x10

	// wIndex values selecting the MS OS 1.0 feature descriptors
	msos10CompatIDIndex = 0x0004
	msos10ExtPropsIndex = 0x0005
)

const osStringSignature = "MSFT100"

// OSStringDescriptor is the decoded OS string descriptor at index 0xEE.
type OSStringDescriptor struct {
	Raw []byte
	// VendorCode is bMS_VendorCode, the bRequest value for MS OS 1.0
	// feature descriptor requests.
	VendorCode uint8
}

func parseOSStringDescriptor(buf []byte) (*OSStringDescriptor, error) {
	if len(buf) < osStringDescLength {
		return nil, fmt.Errorf("OS string descriptor is %d bytes, want %d", len(buf), osStringDescLength)
	}
	if buf[0] != osStringDescLength || buf[1] != descTypeString {
		return nil, fmt.Errorf("not a string descriptor: bLength=0x%02X bDescriptorType=0x%02X", buf[0], buf[1])
	}
	if sig := decodeUTF16(buf[2:16]); sig != osStringSignature {
		return nil, fmt.Errorf("descriptor signature is %q, want %q", sig, osStringSignature)
	}
	return &OSStringDescriptor{
		Raw:        buf[:osStringDescLength],
		VendorCode: buf[osStringVendorCodeOffset],
	}, nil
}

// CompatID is the decoded Extended Compat ID OS feature descriptor. It
// assigns a compatible ID ("WINUSB", "RNDIS", ...) to each function of the
// device; Windows uses it to pick a driver without an INF file.
type CompatID struct {
	Raw       []byte
	Version   gousb.BCD
	Functions []CompatFunction
}

// CompatFunction is one 24-byte function section of the Extended Compat ID
// descriptor.
type CompatFunction struct {
	FirstInterface  int
	CompatibleID    string
	SubCompatibleID string
}

const (
	compatIDHeaderLen  = 16
	compatIDSectionLen = 24
)

func parseCompatID(buf []byte) (*CompatID, error) {
	if len(buf) < compatIDHeaderLen {
		return nil, fmt.Errorf("compat ID descriptor is %d bytes, need at least %d", len(buf), compatIDHeaderLen)
	}
	total := int(le32(buf[0:4]))
	if total > len(buf) {
		total = len(buf)
	}
	if idx := le16(buf[6:8]); idx != msos10CompatIDIndex {
		return nil, fmt.Errorf("feature descriptor index is 0x%04X, want 0x%04X", idx, msos10CompatIDIndex)
	}
	c := &CompatID{
		Raw:     buf[:total],
		Version: gousb.BCD(le16(buf[4:6])),
	}
	count := int(buf[8])
	off := compatIDHeaderLen
	for i := 0; i < count; i++ {
		if off+compatIDSectionLen > total {
			return nil, fmt.Errorf("function section %d of %d is truncated", i+1, count)
		}
		s := buf[off : off+compatIDSectionLen]
		c.Functions = append(c.Functions, CompatFunction{
			FirstInterface:  int(s[0]),
			CompatibleID:    asciiID(s[2:10]),
			SubCompatibleID: asciiID(s[10:18]),
		})
		off += compatIDSectionLen
	}
	return c, nil
}

// PropertyDataType is the registry data type of a custom property, shared
// by the MS OS 1.0 Extended Properties descriptor and the MS OS 2.0
// registry property feature.
type PropertyDataType uint32

// Registry property data types.
const (
	RegSZ                PropertyDataType = 1
	RegExpandSZ          PropertyDataType = 2
	RegBinary            PropertyDataType = 3
	RegDWordLittleEndian PropertyDataType = 4
	RegDWordBigEndian    PropertyDataType = 5
	RegLink              PropertyDataType = 6
	RegMultiSZ           PropertyDataType = 7
)

var propertyDataTypeDescription = map[PropertyDataType]string{
	RegSZ:                "REG_SZ",
	RegExpandSZ:          "REG_EXPAND_SZ",
	RegBinary:            "REG_BINARY",
	RegDWordLittleEndian: "REG_DWORD_LITTLE_ENDIAN",
	RegDWordBigEndian:    "REG_DWORD_BIG_ENDIAN",
	RegLink:              "REG_LINK",
	RegMultiSZ:           "REG_MULTI_SZ",
}

// String returns the registry type name, REG_SZ style.
func (t PropertyDataType) String() string {
	if d, ok := propertyDataTypeDescription[t]; ok {
		return d
	}
	return fmt.Sprintf("unknown (%d)", uint32(t))
}

// Property is a single custom property: a named registry value attached to
// the device interface, most commonly DeviceInterfaceGUID(s).
type Property struct {
	DataType PropertyDataType
	Name     string
	Data     []byte
	// Value is the property data rendered according to DataType.
	Value string
}

// propertyValue renders raw property data according to its registry type.
func propertyValue(t PropertyDataType, data []byte) string {
	switch t {
	case RegSZ, RegExpandSZ, RegLink:
		return trimNUL(decodeUTF16(data))
	case RegMultiSZ:
		parts := strings.Split(trimNUL(decodeUTF16(data)), "\x00")
		return strings.Join(parts, "; ")
	case RegDWordLittleEndian:
		if len(data) < 4 {
			return hex.EncodeToString(data)
		}
		return fmt.Sprintf("0x%08X", le32(data))
	case RegDWordBigEndian:
		if len(data) < 4 {
			return hex.EncodeToString(data)
		}
		return fmt.Sprintf("0x%08X", uint32(data[0])<<24|uint32(data[1])<<16|uint32(data[2])<<8|uint32(data[3]))
	default:
		return hex.EncodeToString(data)
	}
}

// ExtendedProperties is the decoded Extended Properties OS feature
// descriptor for one interface.
type ExtendedProperties struct {
	Raw        []byte
	Version    gousb.BCD
	Interface  int
	Properties []Property
}

const extPropsHeaderLen = 10

func parseExtendedProperties(iface int, buf []byte) (*ExtendedProperties, error) {
	if len(buf) < extPropsHeaderLen {
		return nil, fmt.Errorf("extended properties descriptor is %d bytes, need at least %d", len(buf), extPropsHeaderLen)
	}
	total := int(le32(buf[0:4]))
	if total > len(buf) {
		total = len(buf)
	}
	if idx := le16(buf[6:8]); idx != msos10ExtPropsIndex {
		return nil, fmt.Errorf("feature descriptor index is 0x%04X, want 0x%04X", idx, msos10ExtPropsIndex)
	}
	p := &ExtendedProperties{
		Raw:       buf[:total],
		Version:   gousb.BCD(le16(buf[4:6])),
		Interface: iface,
	}
	count := int(le16(buf[8:10]))
	off := extPropsHeaderLen
	for i := 0; i < count; i++ {
		prop, size, err := parseCustomProperty(buf[off:total])
		if err != nil {
			return nil, fmt.Errorf("custom property %d of %d: %v", i+1, count, err)
		}
		p.Properties = append(p.Properties, prop)
		off += size
	}
	return p, nil
}

// parseCustomProperty decodes one custom property section and returns the
// number of bytes it occupied.
func parseCustomProperty(buf []byte) (Property, int, error) {
	var p Property
	if len(buf) < 14 {
		return p, 0, fmt.Errorf("section is %d bytes, need at least 14", len(buf))
	}
	size := int(le32(buf[0:4]))
	if size < 14 || size > len(buf) {
		return p, 0, fmt.Errorf("section declares %d bytes, have %d", size, len(buf))
	}
	p.DataType = PropertyDataType(le32(buf[4:8]))
	nameLen := int(le16(buf[8:10]))
	if 10+nameLen+4 > size {
		return p, 0, fmt.Errorf("property name of %d bytes does not fit in a %d byte section", nameLen, size)
	}
	p.Name = trimNUL(decodeUTF16(buf[10 : 10+nameLen]))
	dataLen := int(le32(buf[10+nameLen : 14+nameLen]))
	if 14+nameLen+dataLen > size {
		return p, 0, fmt.Errorf("property data of %d bytes does not fit in a %d byte section", dataLen, size)
	}
	p.Data = buf[14+nameLen : 14+nameLen+dataLen]
	p.Value = propertyValue(p.DataType, p.Data)
	return p, size, nil
}
