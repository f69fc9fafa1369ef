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

// Package webusb reads and decodes the USB descriptors a device uses to get
// bound to the Windows WinUSB driver and to advertise WebUSB support: the
// Microsoft OS 1.0 descriptors (OS string, extended compat ID, extended
// properties), the BOS descriptor with its device capabilities, the
// Microsoft OS 2.0 descriptor set and the WebUSB URL descriptor.
//
// Reader drives the control transfers against a live device, typically a
// *gousb.Device. The parse functions work on raw descriptor bytes and are
// usable on captured data as well.
package webusb

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/google/uuid"
)

// Platform capability UUIDs this package recognizes.
var (
	// WebUSBCapabilityUUID identifies the WebUSB platform capability
	// (WebUSB spec, section 4.3).
	WebUSBCapabilityUUID = uuid.MustParse("3408B638-09A9-47A0-8BFD-A0768815B665")
	// MSOS20CapabilityUUID identifies the Microsoft OS 2.0 platform
	// capability.
	MSOS20CapabilityUUID = uuid.MustParse("D8DD60DF-4589-4CC7-9CD2-659D9E648A9F")
)

// GET_URL request code (WebUSB spec, section 5.3).
const webusbReqGetURL = 0x02

// WebUSBCapability is the decoded payload of the WebUSB platform
// capability.
type WebUSBCapability struct {
	// Version is bcdVersion of the supported protocol, 1.00 today.
	Version gousb.BCD
	// VendorCode is bVendorCode, the bRequest value for WebUSB control
	// requests.
	VendorCode uint8
	// LandingPage is the URL descriptor index of the landing page, zero if
	// the device does not advertise one.
	LandingPage uint8
}

// WebUSB returns the decoded WebUSB platform capability, or nil if the BOS
// does not carry one.
func (b *BOS) WebUSB() *WebUSBCapability {
	for _, c := range b.Capabilities {
		p := c.Platform
		if p == nil || p.UUID != WebUSBCapabilityUUID || len(p.Data) < 4 {
			continue
		}
		return &WebUSBCapability{
			Version:     gousb.BCD(le16(p.Data[0:2])),
			VendorCode:  p.Data[2],
			LandingPage: p.Data[3],
		}
	}
	return nil
}

// URLScheme is the bScheme prefix of a WebUSB URL descriptor.
type URLScheme uint8

const (
	URLSchemeHTTP  URLScheme = 0
	URLSchemeHTTPS URLScheme = 1
	// URLSchemeNone marks a URL carrying its scheme inline.
	URLSchemeNone URLScheme = 255
)

const urlDescriptorType = 0x03

// URLDescriptor is a WebUSB URL descriptor, usually the landing page.
type URLDescriptor struct {
	Scheme URLScheme
	// URL is the descriptor content without the scheme prefix.
	URL string
}

// String returns the full URL with the scheme prefix applied.
func (u *URLDescriptor) String() string {
	switch u.Scheme {
	case URLSchemeHTTP:
		return "http://" + u.URL
	case URLSchemeHTTPS:
		return "https://" + u.URL
	}
	return u.URL
}

func parseURLDescriptor(buf []byte) (*URLDescriptor, error) {
	if len(buf) < 3 {
		return nil, fmt.Errorf("URL descriptor is %d bytes, need at least 3", len(buf))
	}
	length := int(buf[0])
	if length < 3 || length > len(buf) {
		return nil, fmt.Errorf("URL descriptor declares %d bytes, have %d", length, len(buf))
	}
	if buf[1] != urlDescriptorType {
		return nil, fmt.Errorf("descriptor type is 0x%02X, want URL (0x%02X)", buf[1], urlDescriptorType)
	}
	return &URLDescriptor{
		Scheme: URLScheme(buf[2]),
		URL:    string(buf[3:length]),
	}, nil
}
