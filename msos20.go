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

// Microsoft OS 2.0 descriptors. The platform capability descriptor in the
// BOS advertises one descriptor set per supported Windows version; the set
// itself is fetched with a vendor request (bRequest = bVendorCode,
// wIndex = 0x07) and decoded into a tree of configuration subsets, function
// subsets and feature descriptors.
// wIndex value selecting the descriptor set in the vendor request.
const msos20DescriptorIndex = 0x0007

// MSOS20DescriptorType is the wDescriptorType of a descriptor within an
// MS OS 2.0 descriptor set.
type MSOS20DescriptorType uint16

// MS OS 2.0 descriptor types (Microsoft OS 2.0 Descriptors Specification,
// table 9).
const (
	MSOS20SetHeader                 MSOS20DescriptorType = 0x00
	MSOS20SubsetHeaderConfiguration MSOS20DescriptorType = 0x01
	MSOS20SubsetHeaderFunction      MSOS20DescriptorType = 0x02
	MSOS20FeatureCompatibleID       MSOS20DescriptorType = 0x03
	MSOS20FeatureRegProperty        MSOS20DescriptorType = 0x04
	MSOS20FeatureMinResumeTime      MSOS20DescriptorType = 0x05
	MSOS20FeatureModelID            MSOS20DescriptorType = 0x06
	MSOS20FeatureCCGPDevice         MSOS20DescriptorType = 0x07
	MSOS20FeatureVendorRevision     MSOS20DescriptorType = 0x08
)

// MSOS20DescriptorSetInfo describes one descriptor set advertised by the
// MS OS 2.0 platform capability.
type MSOS20DescriptorSetInfo struct {
	// WindowsVersion is the minimum Windows version (NTDDI format) the
	// set applies to, e.g. 0x06030000 for Windows 8.1.
	WindowsVersion uint32
	// TotalLength is wMSOSDescriptorSetTotalLength.
	TotalLength uint16
	// VendorCode is bRequest for the descriptor set request.
	VendorCode uint8
	// AltEnumCode is non-zero if the device supports alternate
	// enumeration.
	AltEnumCode uint8
}

// MSOS20 returns the descriptor set information blocks of the MS OS 2.0
// platform capability, one per supported Windows version. Empty if the BOS
// does not carry the capability.
func (b *BOS) MSOS20() []MSOS20DescriptorSetInfo {
	var infos []MSOS20DescriptorSetInfo
	for _, c := range b.Capabilities {
		p := c.Platform
		if p == nil || p.UUID != MSOS20CapabilityUUID {
			continue
		}
		for d := p.Data; len(d) >= 8; d = d[8:] {
			infos = append(infos, MSOS20DescriptorSetInfo{
				WindowsVersion: le32(d[0:4]),
				TotalLength:    le16(d[4:6]),
				VendorCode:     d[6],
				AltEnumCode:    d[7],
			})
		}
	}
	return infos
}

// MSOS20Feature is a feature descriptor within an MS OS 2.0 descriptor
// set. Concrete types: MSOS20CompatibleID, MSOS20RegistryProperty,
// MSOS20MinResumeTime, MSOS20ModelID, MSOS20CCGPDevice,
// MSOS20VendorRevision and MSOS20Unknown.
type MSOS20Feature interface {
	featureType() MSOS20DescriptorType
}

// MSOS20CompatibleID assigns a compatible ID to the device or function.
type MSOS20CompatibleID struct {
	CompatibleID    string
	SubCompatibleID string
}

// MSOS20RegistryProperty adds a registry value under the device interface
// key.
type MSOS20RegistryProperty struct {
	Property
}

// MSOS20MinResumeTime overrides resume timing; both values are in
// milliseconds.
type MSOS20MinResumeTime struct {
	RecoveryTime  int
	SignalingTime int
}

// MSOS20ModelID uniquely identifies the physical device model.
type MSOS20ModelID struct {
	ID uuid.UUID
}

// MSOS20CCGPDevice requests enumeration with the container class generic
// parent driver.
type MSOS20CCGPDevice struct{}

// MSOS20VendorRevision is the vendor-assigned revision of the descriptor
// set; Windows re-reads the set when it increases.
type MSOS20VendorRevision struct {
	Revision uint16
}

// MSOS20Unknown preserves a feature descriptor this package does not
// decode.
type MSOS20Unknown struct {
	Type MSOS20DescriptorType
	Raw  []byte
}

func (MSOS20CompatibleID) featureType() MSOS20DescriptorType { return MSOS20FeatureCompatibleID }
func (MSOS20RegistryProperty) featureType() MSOS20DescriptorType { return MSOS20FeatureRegProperty }
func (MSOS20MinResumeTime) featureType() MSOS20DescriptorType { return MSOS20FeatureMinResumeTime }
func (MSOS20ModelID) featureType() MSOS20DescriptorType { return MSOS20FeatureModelID }
func (MSOS20CCGPDevice) featureType() MSOS20DescriptorType { return MSOS20FeatureCCGPDevice }
func (MSOS20VendorRevision) featureType() MSOS20DescriptorType { return MSOS20FeatureVendorRevision }
func (u MSOS20Unknown) featureType() MSOS20DescriptorType { return u.Type }

// MSOS20Function groups the features of one function (interface set) of a
// composite device.
type MSOS20Function struct {
	FirstInterface int
	Features       []MSOS20Feature
}

// MSOS20Configuration groups the functions and features that apply to one
// device configuration.
type MSOS20Configuration struct {
	// ConfigurationValue is bConfigurationValue of the subset header. In
	// practice firmwares populate it with the configuration index.
	ConfigurationValue int
	Features           []MSOS20Feature
	Functions          []MSOS20Function
}

// MSOS20Set is a fully decoded MS OS 2.0 descriptor set.
type MSOS20Set struct {
	Raw []byte
	// WindowsVersion is dwWindowsVersion of the set header.
	WindowsVersion uint32
	// Features holds device-level features, i.e. those not nested in a
	// configuration or function subset.
	Features       []MSOS20Feature
	Configurations []MSOS20Configuration
	// Functions holds function subsets that appear directly under the
	// set header; single-configuration firmwares commonly skip the
	// configuration subset.
	Functions []MSOS20Function
}

const msos20SetHeaderLen = 10

// parseMSOS20Set decodes a complete MS OS 2.0 descriptor set. The parser
// walks the set linearly: subset headers switch the attachment point for
// the feature descriptors that follow them.
func parseMSOS20Set(buf []byte) (*MSOS20Set, error) {
	if len(buf) < msos20SetHeaderLen {
		return nil, fmt.Errorf("descriptor set is %d bytes, need at least %d", len(buf), msos20SetHeaderLen)
	}
	if length := le16(buf[0:2]); int(length) != msos20SetHeaderLen {
		return nil, fmt.Errorf("set header declares %d bytes, want %d", length, msos20SetHeaderLen)
	}
	if typ := MSOS20DescriptorType(le16(buf[2:4])); typ != MSOS20SetHeader {
		return nil, fmt.Errorf("first descriptor has type 0x%04X, want set header (0x0000)", uint16(typ))
	}
	total := int(le16(buf[8:10]))
	if total > len(buf) {
		total = len(buf)
	}

	set := &MSOS20Set{
		Raw:            buf[:total],
		WindowsVersion: le32(buf[4:8]),
	}

	var (
		curCfg  *MSOS20Configuration
		curFunc *MSOS20Function
	)
	addFeature := func(f MSOS20Feature) {
		switch {
		case curFunc != nil:
			curFunc.Features = append(curFunc.Features, f)
		case curCfg != nil:
			curCfg.Features = append(curCfg.Features, f)
		default:
			set.Features = append(set.Features, f)
		}
	}
	// attach the function subset under construction to its owner
	flushFunc := func() {
		if curFunc == nil {
			return
		}
		if curCfg != nil {
			curCfg.Functions = append(curCfg.Functions, *curFunc)
		} else {
			set.Functions = append(set.Functions, *curFunc)
		}
		curFunc = nil
	}
	flushCfg := func() {
		flushFunc()
		if curCfg != nil {
			set.Configurations = append(set.Configurations, *curCfg)
			curCfg = nil
		}
	}

	off := msos20SetHeaderLen
	for off < total {
		rest := buf[off:total]
		if len(rest) < 4 {
			return nil, fmt.Errorf("trailing %d bytes at offset %d", len(rest), off)
		}
		length := int(le16(rest[0:2]))
		if length < 4 || length > len(rest) {
			return nil, fmt.Errorf("descriptor at offset %d declares %d bytes, have %d", off, length, len(rest))
		}
		d := rest[:length]
		typ := MSOS20DescriptorType(le16(d[2:4]))

		switch typ {
		case MSOS20SubsetHeaderConfiguration:
			if length < 8 {
				return nil, fmt.Errorf("configuration subset header at offset %d is %d bytes, want 8", off, length)
			}
			flushCfg()
			curCfg = &MSOS20Configuration{ConfigurationValue: int(d[4])}

		case MSOS20SubsetHeaderFunction:
			if length < 8 {
				return nil, fmt.Errorf("function subset header at offset %d is %d bytes, want 8", off, length)
			}
			flushFunc()
			curFunc = &MSOS20Function{FirstInterface: int(d[4])}

		case MSOS20FeatureCompatibleID:
			if length < 20 {
				return nil, fmt.Errorf("compatible ID feature at offset %d is %d bytes, want 20", off, length)
			}
			addFeature(MSOS20CompatibleID{
				CompatibleID:    asciiID(d[4:12]),
				SubCompatibleID: asciiID(d[12:20]),
			})

		case MSOS20FeatureRegProperty:
			p, err := parseMSOS20RegProperty(d)
			if err != nil {
				return nil, fmt.Errorf("registry property feature at offset %d: %v", off, err)
			}
			addFeature(p)

		case MSOS20FeatureMinResumeTime:
			if length < 6 {
				return nil, fmt.Errorf("minimum resume time feature at offset %d is %d bytes, want 6", off, length)
			}
			addFeature(MSOS20MinResumeTime{
				RecoveryTime:  int(d[4]),
				SignalingTime: int(d[5]),
			})

		case MSOS20FeatureModelID:
			if length < 20 {
				return nil, fmt.Errorf("model ID feature at offset %d is %d bytes, want 20", off, length)
			}
			id, err := guidUUID(d[4:20])
			if err != nil {
				return nil, fmt.Errorf("model ID feature at offset %d: %v", off, err)
			}
			addFeature(MSOS20ModelID{ID: id})

		case MSOS20FeatureCCGPDevice:
			addFeature(MSOS20CCGPDevice{})

		case MSOS20FeatureVendorRevision:
			if length < 6 {
				return nil, fmt.Errorf("vendor revision feature at offset %d is %d bytes, want 6", off, length)
			}
			addFeature(MSOS20VendorRevision{Revision: le16(d[4:6])})

		default:
			addFeature(MSOS20Unknown{Type: typ, Raw: d[4:]})
		}
		off += length
	}
	flushCfg()
	return set, nil
}

// parseMSOS20RegProperty decodes a registry property feature descriptor.
// Unlike its MS OS 1.0 counterpart, all length fields are 16 bit.
func parseMSOS20RegProperty(d []byte) (MSOS20RegistryProperty, error) {
	var p MSOS20RegistryProperty
	if len(d) < 10 {
		return p, fmt.Errorf("descriptor is %d bytes, need at least 10", len(d))
	}
	p.DataType = PropertyDataType(le16(d[4:6]))
	nameLen := int(le16(d[6:8]))
	if 8+nameLen+2 > len(d) {
		return p, fmt.Errorf("property name of %d bytes does not fit in %d bytes", nameLen, len(d))
	}
	p.Name = trimNUL(decodeUTF16(d[8 : 8+nameLen]))
	dataLen := int(le16(d[8+nameLen : 10+nameLen]))
	if 10+nameLen+dataLen > len(d) {
		return p, fmt.Errorf("property data of %d bytes does not fit in %d bytes", dataLen, len(d))
	}
	p.Data = d[10+nameLen : 10+nameLen+dataLen]
	p.Value = propertyValue(p.DataType, p.Data)
	return p, nil
}

// windowsVersionString names the NTDDI versions that commonly appear in
// descriptor sets.
func windowsVersionString(v uint32) string {
	switch v {
	case 0x06030000:
		return "Windows 8.1"
	case 0x0A000000:
		return "Windows 10"
	default:
		return fmt.Sprintf("0x%08X", v)
	}
}
