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
	"github.com/google/uuid"
)

// Report is everything Read collected from one device.
type Report struct {
	Device *DeviceInfo
	// Bus describes where the device sits on the bus; filled in by the
	// caller from the enumeration data, see BusInfoFor.
	Bus *BusInfo `json:",omitempty"`

	Manufacturer string `json:",omitempty"`
	Product      string `json:",omitempty"`
	SerialNumber string `json:",omitempty"`

	MSOS10 *MSOS10      `json:",omitempty"`
	BOS    *BOS         `json:",omitempty"`
	MSOS20 []*MSOS20Set `json:",omitempty"`
	WebUSB *WebUSBInfo  `json:",omitempty"`
}

// MSOS10 groups the Microsoft OS 1.0 descriptors of a device.
type MSOS10 struct {
	OSString           *OSStringDescriptor
	CompatID           *CompatID             `json:",omitempty"`
	ExtendedProperties []*ExtendedProperties `json:",omitempty"`
}

// WebUSBInfo groups the WebUSB capability and its landing page.
type WebUSBInfo struct {
	Capability  *WebUSBCapability
	LandingPage *URLDescriptor `json:",omitempty"`
}

// BusInfo is the bus topology information known at enumeration time.
type BusInfo struct {
	Bus     int
	Address int
	// Path holds the port numbers from the root hub to the device.
	Path  []int `json:",omitempty"`
	Speed string
}

// BusInfoFor extracts bus information from a gousb device descriptor.
func BusInfoFor(desc *gousb.DeviceDesc) *BusInfo {
	return &BusInfo{
		Bus:     desc.Bus,
		Address: desc.Address,
		Path:    desc.Path,
		Speed:   desc.Speed.String(),
	}
}

// Text renders the report in the traditional sectioned form, raw
// descriptors hex-dumped alongside their decoded fields.
func (r *Report) Text() string {
	var b strings.Builder

	if bus := r.Bus; bus != nil {
		fmt.Fprintf(&b, "Device properties:\n")
		fmt.Fprintf(&b, "  bus number: %d\n", bus.Bus)
		fmt.Fprintf(&b, "  device address: %d\n", bus.Address)
		if len(bus.Path) > 0 {
			parts := make([]string, len(bus.Path))
			for i, p := range bus.Path {
				parts[i] = fmt.Sprintf("%d", p)
			}
			fmt.Fprintf(&b, "  port path: %s (from root hub)\n", strings.Join(parts, "->"))
		}
		fmt.Fprintf(&b, "  speed: %s\n", bus.Speed)
		b.WriteString("\n")
	}

	if d := r.Device; d != nil {
		fmt.Fprintf(&b, "Device descriptor:\n")
		fmt.Fprintf(&b, "  bcdUSB: %s\n", d.Spec)
		fmt.Fprintf(&b, "  VID:PID: %s:%s\n", d.Vendor, d.Product)
		fmt.Fprintf(&b, "  bcdDevice: %s\n", d.Device)
		fmt.Fprintf(&b, "  class: %s\n", d.Class)
		fmt.Fprintf(&b, "  configurations: %d\n", d.NumConfigs)
		if !d.SupportsBOS() {
			fmt.Fprintf(&b, "  (bcdUSB below 2.01: no BOS, MS OS 2.0 descriptors not supported)\n")
		}
		b.WriteString("\n")
	}

	if r.Manufacturer != "" || r.Product != "" || r.SerialNumber != "" {
		fmt.Fprintf(&b, "String descriptors:\n")
		if r.Manufacturer != "" {
			fmt.Fprintf(&b, "  Manufacturer: %s\n", r.Manufacturer)
		}
		if r.Product != "" {
			fmt.Fprintf(&b, "  Product: %s\n", r.Product)
		}
		if r.SerialNumber != "" {
			fmt.Fprintf(&b, "  Serial Number: %s\n", r.SerialNumber)
		}
		b.WriteString("\n")
	}

	r.textMSOS10(&b)
	r.textBOS(&b)
	r.textMSOS20(&b)
	r.textWebUSB(&b)

	return b.String()
}

func (r *Report) textMSOS10(b *strings.Builder) {
	m := r.MSOS10
	if m == nil {
		fmt.Fprintf(b, "MS OS 1.0 descriptors: not supported\n\n")
		return
	}
	fmt.Fprintf(b, "MS OS 1.0 descriptors:\n")
	fmt.Fprintf(b, "  OS string descriptor (vendor code 0x%02X):\n", m.OSString.VendorCode)
	b.WriteString(indentDump(m.OSString.Raw))

	if c := m.CompatID; c != nil {
		fmt.Fprintf(b, "  Extended compat ID descriptor (version %s):\n", c.Version)
		b.WriteString(indentDump(c.Raw))
		for _, f := range c.Functions {
			fmt.Fprintf(b, "    interface %d: compatible ID %q, sub-compatible ID %q\n",
				f.FirstInterface, f.CompatibleID, f.SubCompatibleID)
		}
	} else {
		fmt.Fprintf(b, "  Extended compat ID descriptor: not found\n")
	}

	for _, p := range m.ExtendedProperties {
		fmt.Fprintf(b, "  Extended properties descriptor (interface %d):\n", p.Interface)
		b.WriteString(indentDump(p.Raw))
		for _, prop := range p.Properties {
			fmt.Fprintf(b, "    %s = %s (%s)\n", prop.Name, prop.Value, prop.DataType)
		}
	}
	b.WriteString("\n")
}

func (r *Report) textBOS(b *strings.Builder) {
	bos := r.BOS
	if bos == nil {
		fmt.Fprintf(b, "BOS descriptor: not found\n\n")
		return
	}
	fmt.Fprintf(b, "BOS descriptor: %d device capabilities\n", len(bos.Capabilities))
	for _, c := range bos.Capabilities {
		switch {
		case c.USB20Extension != nil:
			fmt.Fprintf(b, "  USB 2.0 extension:\n    attributes: 0x%08X (LPM: %t)\n",
				c.USB20Extension.Attributes, c.USB20Extension.LPM())
		case c.SuperSpeed != nil:
			s := c.SuperSpeed
			fmt.Fprintf(b, "  SuperSpeed USB:\n    attributes: 0x%02X\n    supported speeds: 0x%04X\n    supported functionality: 0x%02X\n",
				s.Attributes, s.SpeedsSupported, s.FunctionalitySupport)
		case c.ContainerID != nil:
			fmt.Fprintf(b, "  Container ID:\n    %s\n", c.ContainerID.ID)
		case c.Platform != nil:
			fmt.Fprintf(b, "  Platform capability:\n    UUID: %s%s\n", c.Platform.UUID, platformLabel(c.Platform.UUID))
		default:
			fmt.Fprintf(b, "  %s capability:\n", c.Type)
			b.WriteString(indentDump(c.Data))
		}
	}
	b.WriteString("\n")
}

func platformLabel(id uuid.UUID) string {
	switch id {
	case WebUSBCapabilityUUID:
		return " (WebUSB)"
	case MSOS20CapabilityUUID:
		return " (MS OS 2.0)"
	}
	return ""
}

func (r *Report) textMSOS20(b *strings.Builder) {
	for _, set := range r.MSOS20 {
		fmt.Fprintf(b, "MS OS 2.0 descriptor set (%s):\n", windowsVersionString(set.WindowsVersion))
		b.WriteString(indentDump(set.Raw))
		writeFeatures := func(indent string, fs []MSOS20Feature) {
			for _, f := range fs {
				b.WriteString(indent + featureString(f) + "\n")
			}
		}
		writeFeatures("  ", set.Features)
		for _, fn := range set.Functions {
			fmt.Fprintf(b, "  function (first interface %d):\n", fn.FirstInterface)
			writeFeatures("    ", fn.Features)
		}
		for _, cfg := range set.Configurations {
			fmt.Fprintf(b, "  configuration %d:\n", cfg.ConfigurationValue)
			writeFeatures("    ", cfg.Features)
			for _, fn := range cfg.Functions {
				fmt.Fprintf(b, "    function (first interface %d):\n", fn.FirstInterface)
				writeFeatures("      ", fn.Features)
			}
		}
		b.WriteString("\n")
	}
}

func featureString(f MSOS20Feature) string {
	switch f := f.(type) {
	case MSOS20CompatibleID:
		if f.SubCompatibleID != "" {
			return fmt.Sprintf("compatible ID %q, sub-compatible ID %q", f.CompatibleID, f.SubCompatibleID)
		}
		return fmt.Sprintf("compatible ID %q", f.CompatibleID)
	case MSOS20RegistryProperty:
		return fmt.Sprintf("registry property %s = %s (%s)", f.Name, f.Value, f.DataType)
	case MSOS20MinResumeTime:
		return fmt.Sprintf("minimum resume time: recovery %d ms, signaling %d ms", f.RecoveryTime, f.SignalingTime)
	case MSOS20ModelID:
		return fmt.Sprintf("model ID %s", f.ID)
	case MSOS20CCGPDevice:
		return "CCGP device"
	case MSOS20VendorRevision:
		return fmt.Sprintf("vendor revision %d", f.Revision)
	case MSOS20Unknown:
		return fmt.Sprintf("unknown feature 0x%04X (%d bytes)", uint16(f.Type), len(f.Raw))
	default:
		return fmt.Sprintf("%v", f)
	}
}

func (r *Report) textWebUSB(b *strings.Builder) {
	w := r.WebUSB
	if w == nil {
		fmt.Fprintf(b, "WebUSB: not supported\n")
		return
	}
	fmt.Fprintf(b, "WebUSB:\n")
	fmt.Fprintf(b, "  version: %s\n", w.Capability.Version)
	fmt.Fprintf(b, "  vendor code: 0x%02X\n", w.Capability.VendorCode)
	if w.LandingPage != nil {
		fmt.Fprintf(b, "  landing page: %s\n", w.LandingPage)
	} else {
		fmt.Fprintf(b, "  landing page: none\n")
	}
}

// indentDump hex-dumps a descriptor indented to fit the report layout.
func indentDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(hex.Dump(data), "\n"), "\n") {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
