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

// webusbinfo opens a USB device by VID:PID and prints the descriptors it
// exposes for WinUSB/WebUSB driver binding: MS OS 1.0 feature descriptors,
// the BOS device capabilities, the MS OS 2.0 descriptor set and the WebUSB
// landing page.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
	"github.com/google/gousb/usbid"
	"github.com/rs/zerolog"

	"github.com/usbdiag/webusb"
)

var (
	debug   = flag.Int("debug", 0, "libusb debug level (0..4)")
	asJSON  = flag.Bool("json", false, "print the report as JSON instead of text")
	timeout = flag.Duration("timeout", time.Second, "control transfer timeout")
	verbose = flag.Bool("v", false, "log every descriptor request")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] VID:PID\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func parseVIDPID(s string) (gousb.ID, gousb.ID, error) {
	vid, pid, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not a VID:PID pair", s)
	}
	v, err := parseID(vid)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid VID %q: %v", vid, err)
	}
	p, err := parseID(pid)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid PID %q: %v", pid, err)
	}
	return v, p, nil
}

func parseID(s string) (gousb.ID, error) {
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(id), nil
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.WarnLevel)
	}

	vid, pid, err := parseVIDPID(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
	}

	ctx := gousb.NewContext()
	defer ctx.Close()
	ctx.Debug(*debug)

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		log.Fatal().Err(err).Str("vid", vid.String()).Str("pid", pid.String()).Msg("could not open device")
	}
	if dev == nil {
		log.Fatal().Str("vid", vid.String()).Str("pid", pid.String()).Msg("device not found")
	}
	defer dev.Close()
	dev.ControlTimeout = *timeout

	r := webusb.NewReader(dev)
	r.Log = log

	report, err := r.Read()
	if err != nil {
		log.Fatal().Err(err).Msg("reading descriptors failed")
	}
	report.Bus = webusb.BusInfoFor(dev.Desc)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatal().Err(err).Msg("encoding report failed")
		}
		return
	}

	fmt.Printf("%03d:%03d %s\n\n", dev.Desc.Bus, dev.Desc.Address, usbid.Describe(dev.Desc))
	fmt.Print(report.Text())
}
