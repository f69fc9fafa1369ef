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
	"errors"
	"fmt"

	"github.com/google/gousb"
	"github.com/rs/zerolog"
)

// ErrNotFound reports that a device does not expose the requested
// descriptor. Absence of the optional descriptors is expected on most
// devices and is not treated as a failure by Read.
var ErrNotFound = errors.New("descriptor not found")

// ControlDevice is the device access Reader needs: control transfers on
// the default endpoint plus string descriptor reads. *gousb.Device
// implements it.
type ControlDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	GetStringDescriptor(descIndex int) (string, error)
}

var _ ControlDevice = (*gousb.Device)(nil)

// bmRequestType values for the two flavors of IN requests used here. The
// standard request type has no constant in gousb; its bits are zero.
var (
	stdDeviceIn    = uint8(gousb.ControlIn | gousb.ControlDevice)
	vendorDeviceIn = uint8(gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice)
)

// Reader reads WinUSB/WebUSB related descriptors from a single device.
type Reader struct {
	Device ControlDevice
	// Log receives per-request diagnostics; defaults to a no-op logger.
	Log zerolog.Logger
}

// NewReader returns a Reader for the given device.
func NewReader(dev ControlDevice) *Reader {
	return &Reader{Device: dev, Log: zerolog.Nop()}
}

// controlRead performs an IN control transfer and fails with ErrNotFound
// when the device returns fewer bytes than requested, the way a device
// without the descriptor STALLs or short-circuits the request.
func (r *Reader) controlRead(rType, request uint8, val, idx uint16, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.Device.Control(rType, request, val, idx, buf)
	if err != nil {
		return nil, err
	}
	if n < length {
		return nil, fmt.Errorf("short read for request 0x%02X value 0x%04X index 0x%04X: got %d of %d bytes: %w",
			request, val, idx, n, length, ErrNotFound)
	}
	return buf[:n], nil
}

// DeviceInfo reads and decodes the device descriptor.
func (r *Reader) DeviceInfo() (*DeviceInfo, error) {
	buf, err := r.controlRead(stdDeviceIn, reqGetDescriptor, descTypeDevice<<8, 0, deviceDescLen)
	if err != nil {
		return nil, fmt.Errorf("reading device descriptor: %w", err)
	}
	return deviceInfoFromBytes(buf)
}

// OSString reads the OS string descriptor at index 0xEE. Two strategies,
// both standard GET_DESCRIPTOR requests: probe the header for the length
// and re-read, falling back to a fixed 18-byte read.
func (r *Reader) OSString() (*OSStringDescriptor, error) {
	r.Log.Debug().Msg("reading OS string descriptor")
	val := uint16(descTypeString)<<8 | osStringDescIndex
	if hdr, err := r.controlRead(stdDeviceIn, reqGetDescriptor, val, 0, 4); err == nil && int(hdr[0]) >= osStringDescLength {
		if full, err := r.controlRead(stdDeviceIn, reqGetDescriptor, val, 0, int(hdr[0])); err == nil {
			if osd, err := parseOSStringDescriptor(full); err == nil {
				return osd, nil
			}
		}
	}
	full, err := r.controlRead(stdDeviceIn, reqGetDescriptor, val, 0, osStringDescLength)
	if err != nil {
		return nil, fmt.Errorf("reading OS string descriptor: %w", err)
	}
	return parseOSStringDescriptor(full)
}

// CompatID reads the Extended Compat ID OS feature descriptor using the
// vendor code from the OS string descriptor.
func (r *Reader) CompatID(vendorCode uint8) (*CompatID, error) {
	r.Log.Debug().Uint8("vendor_code", vendorCode).Msg("reading extended compat ID feature descriptor")
	hdr, err := r.controlRead(vendorDeviceIn, vendorCode, 0, msos10CompatIDIndex, 8)
	if err != nil {
		return nil, fmt.Errorf("reading compat ID header: %w", err)
	}
	total := int(le32(hdr[0:4]))
	if total < compatIDHeaderLen {
		return nil, fmt.Errorf("compat ID descriptor declares %d bytes, need at least %d: %w", total, compatIDHeaderLen, ErrNotFound)
	}
	full, err := r.controlRead(vendorDeviceIn, vendorCode, 0, msos10CompatIDIndex, total)
	if err != nil {
		return nil, fmt.Errorf("reading compat ID descriptor: %w", err)
	}
	return parseCompatID(full)
}

// ExtendedProperties reads the Extended Properties OS feature descriptor
// for the given interface.
func (r *Reader) ExtendedProperties(vendorCode uint8, iface int) (*ExtendedProperties, error) {
	r.Log.Debug().Int("interface", iface).Msg("reading extended properties feature descriptor")
	val := uint16(iface)
	hdr, err := r.controlRead(vendorDeviceIn, vendorCode, val, msos10ExtPropsIndex, extPropsHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("reading extended properties header: %w", err)
	}
	total := int(le32(hdr[0:4]))
	if total < extPropsHeaderLen {
		return nil, fmt.Errorf("extended properties descriptor declares %d bytes, need at least %d: %w", total, extPropsHeaderLen, ErrNotFound)
	}
	full, err := r.controlRead(vendorDeviceIn, vendorCode, val, msos10ExtPropsIndex, total)
	if err != nil {
		return nil, fmt.Errorf("reading extended properties descriptor: %w", err)
	}
	return parseExtendedProperties(iface, full)
}

// BOS reads and decodes the BOS descriptor.
func (r *Reader) BOS() (*BOS, error) {
	r.Log.Debug().Msg("reading BOS descriptor")
	hdr, err := r.controlRead(stdDeviceIn, reqGetDescriptor, descTypeBOS<<8, 0, bosHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("reading BOS header: %w", err)
	}
	total := int(le16(hdr[2:4]))
	if total < bosHeaderLen {
		return nil, fmt.Errorf("BOS descriptor declares %d bytes, need at least %d: %w", total, bosHeaderLen, ErrNotFound)
	}
	full, err := r.controlRead(stdDeviceIn, reqGetDescriptor, descTypeBOS<<8, 0, total)
	if err != nil {
		return nil, fmt.Errorf("reading BOS descriptor: %w", err)
	}
	return parseBOS(full)
}

// MSOS20Set fetches and decodes the MS OS 2.0 descriptor set advertised by
// the given capability info block.
func (r *Reader) MSOS20Set(info MSOS20DescriptorSetInfo) (*MSOS20Set, error) {
	r.Log.Debug().Uint8("vendor_code", info.VendorCode).Msg("reading MS OS 2.0 descriptor set")
	hdr, err := r.controlRead(vendorDeviceIn, info.VendorCode, 0, msos20DescriptorIndex, msos20SetHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor set header: %w", err)
	}
	total := int(le16(hdr[8:10]))
	if total < msos20SetHeaderLen {
		return nil, fmt.Errorf("descriptor set declares %d bytes, need at least %d: %w", total, msos20SetHeaderLen, ErrNotFound)
	}
	if info.TotalLength != 0 && int(info.TotalLength) != total {
		r.Log.Warn().
			Int("capability", int(info.TotalLength)).
			Int("set_header", total).
			Msg("MS OS 2.0 set length mismatch between capability and set header")
	}
	full, err := r.controlRead(vendorDeviceIn, info.VendorCode, 0, msos20DescriptorIndex, total)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor set: %w", err)
	}
	return parseMSOS20Set(full)
}

// LandingPage fetches the URL descriptor the WebUSB capability points at.
func (r *Reader) LandingPage(c *WebUSBCapability) (*URLDescriptor, error) {
	if c.LandingPage == 0 {
		return nil, fmt.Errorf("no landing page advertised: %w", ErrNotFound)
	}
	r.Log.Debug().Uint8("index", c.LandingPage).Msg("reading WebUSB URL descriptor")
	hdr, err := r.controlRead(vendorDeviceIn, c.VendorCode, uint16(c.LandingPage), webusbReqGetURL, 2)
	if err != nil {
		return nil, fmt.Errorf("reading URL descriptor header: %w", err)
	}
	length := int(hdr[0])
	if length < 3 {
		return nil, fmt.Errorf("URL descriptor declares %d bytes: %w", length, ErrNotFound)
	}
	full, err := r.controlRead(vendorDeviceIn, c.VendorCode, uint16(c.LandingPage), webusbReqGetURL, length)
	if err != nil {
		return nil, fmt.Errorf("reading URL descriptor: %w", err)
	}
	return parseURLDescriptor(full)
}

// Read collects everything the device exposes into a Report. Only the
// device descriptor is mandatory; the MS OS and WebUSB sections degrade to
// absent entries when the device does not answer.
func (r *Reader) Read() (*Report, error) {
	rep := &Report{}

	info, err := r.DeviceInfo()
	if err != nil {
		return nil, err
	}
	rep.Device = info
	r.readStrings(rep, info)
	r.readMSOS10(rep)
	r.readBOS(rep)
	return rep, nil
}

func (r *Reader) readStrings(rep *Report, info *DeviceInfo) {
	get := func(name string, idx int, dst *string) {
		if idx == 0 {
			return
		}
		s, err := r.Device.GetStringDescriptor(idx)
		if err != nil {
			r.Log.Debug().Err(err).Str("descriptor", name).Msg("string descriptor read failed")
			return
		}
		*dst = s
	}
	get("manufacturer", info.manufacturerIndex, &rep.Manufacturer)
	get("product", info.productIndex, &rep.Product)
	get("serial number", info.serialIndex, &rep.SerialNumber)
}

func (r *Reader) readMSOS10(rep *Report) {
	osd, err := r.OSString()
	if err != nil {
		r.Log.Debug().Err(err).Msg("no MS OS 1.0 support")
		return
	}
	m := &MSOS10{OSString: osd}
	rep.MSOS10 = m

	cid, err := r.CompatID(osd.VendorCode)
	if err != nil {
		r.Log.Debug().Err(err).Msg("extended compat ID descriptor not read")
	} else {
		m.CompatID = cid
	}

	// One extended properties descriptor per function; fall back to
	// interface 0 when the compat ID did not enumerate any.
	ifaces := []int{0}
	if cid != nil && len(cid.Functions) > 0 {
		ifaces = ifaces[:0]
		for _, f := range cid.Functions {
			ifaces = append(ifaces, f.FirstInterface)
		}
	}
	for _, iface := range ifaces {
		props, err := r.ExtendedProperties(osd.VendorCode, iface)
		if err != nil {
			r.Log.Debug().Err(err).Int("interface", iface).Msg("extended properties descriptor not read")
			continue
		}
		m.ExtendedProperties = append(m.ExtendedProperties, props)
	}
}

func (r *Reader) readBOS(rep *Report) {
	if rep.Device != nil && !rep.Device.SupportsBOS() {
		r.Log.Info().Str("bcd_usb", rep.Device.Spec.String()).Msg("bcdUSB below 2.01, BOS descriptor unlikely")
	}
	bos, err := r.BOS()
	if err != nil {
		r.Log.Debug().Err(err).Msg("BOS descriptor not read")
		return
	}
	rep.BOS = bos

	if w := bos.WebUSB(); w != nil {
		rep.WebUSB = &WebUSBInfo{Capability: w}
		url, err := r.LandingPage(w)
		if err != nil {
			r.Log.Debug().Err(err).Msg("WebUSB landing page not read")
		} else {
			rep.WebUSB.LandingPage = url
		}
	}

	for _, info := range bos.MSOS20() {
		set, err := r.MSOS20Set(info)
		if err != nil {
			r.Log.Debug().Err(err).Uint32("windows_version", info.WindowsVersion).Msg("MS OS 2.0 descriptor set not read")
			continue
		}
		rep.MSOS20 = append(rep.MSOS20, set)
	}
}
