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
	"fmt"

	"github.com/google/gousb"
)

// Standard descriptor types and requests (USB 2.0 spec, section 9.4/9.6,
// plus the BOS descriptor from the USB 3.0 spec).
const (
	reqGetDescriptor = 0x06

	descTypeDevice           = 0x01
	descTypeString           = 0x03
	descTypeBOS              = 0x0f
	descTypeDeviceCapability = 0x10
)

const deviceDescLen = 18

// decoded device descriptor, 18 bytes
type usbDeviceDescriptor struct {
	BLength            uint8  // 0
	BDescriptorType    uint8  // 1
	BCDUSB             uint16 // 2:3
	BDeviceClass       uint8  // 4
	BDeviceSubClass    uint8  // 5
	BDeviceProtocol    uint8  // 6
	BMaxPacketSize0    uint8  // 7
	IDVendor           uint16 // 8:9
	IDProduct          uint16 // 10:11
	BCDDevice          uint16 // 12:13
	IManufacturer      uint8  // 14
	IProduct           uint8  // 15
	ISerialNumber      uint8  // 16
	BNumConfigurations uint8  // 17
}

// DeviceInfo is the decoded device descriptor of the inspected device.
type DeviceInfo struct {
	// Spec is bcdUSB, the USB specification release number. A BOS
	// descriptor (and with it MS OS 2.0 support) requires at least 2.01.
	Spec gousb.BCD
	// Device is bcdDevice, the device release number.
	Device gousb.BCD

	Vendor  gousb.ID
	Product gousb.ID

	Class                gousb.Class
	SubClass             gousb.Class
	Protocol             gousb.Protocol
	MaxControlPacketSize int
	NumConfigs           int

	// String descriptor indexes, used by Reader to fetch the product
	// strings.
	manufacturerIndex int
	productIndex      int
	serialIndex       int
}

// SupportsBOS reports whether the device version is high enough for the
// device to carry a BOS descriptor (bcdUSB >= 2.01).
func (d *DeviceInfo) SupportsBOS() bool {
	return d.Spec >= gousb.Version(2, 1)
}

func deviceInfoFromBytes(descBytes []byte) (*DeviceInfo, error) {
	if len(descBytes) < deviceDescLen {
		return nil, fmt.Errorf("device descriptor is %d bytes, want %d", len(descBytes), deviceDescLen)
	}
	d := &usbDeviceDescriptor{}
	if err := binary.Read(bytes.NewReader(descBytes[:deviceDescLen]), binary.LittleEndian, d); err != nil {
		return nil, fmt.Errorf("failed to decode the device descriptor: %v", err)
	}
	if d.BDescriptorType != descTypeDevice {
		return nil, fmt.Errorf("descriptor type is 0x%02X, want DEVICE (0x%02X)", d.BDescriptorType, descTypeDevice)
	}
	return &DeviceInfo{
		Spec:                 gousb.BCD(d.BCDUSB),
		Device:               gousb.BCD(d.BCDDevice),
		Vendor:               gousb.ID(d.IDVendor),
		Product:              gousb.ID(d.IDProduct),
		Class:                gousb.Class(d.BDeviceClass),
		SubClass:             gousb.Class(d.BDeviceSubClass),
		Protocol:             gousb.Protocol(d.BDeviceProtocol),
		MaxControlPacketSize: int(d.BMaxPacketSize0),
		NumConfigs:           int(d.BNumConfigurations),
		manufacturerIndex:    int(d.IManufacturer),
		productIndex:         int(d.IProduct),
		serialIndex:          int(d.ISerialNumber),
	}, nil
}
