// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package smi2021smoketest is leveraged by a smoketest runner to verify that a
// SMI2021 accepts a firmware and comes back with its final identity.
package smi2021smoketest

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/smiboot/blob"
	"periph.io/x/smiboot/experimental/host/usbbus"
	"periph.io/x/smiboot/hostextra/smi2021"
)

// SmokeTest is imported by a smoketest runner.
type SmokeTest struct {
	devs []*usbbus.Dev
}

// Name implements the SmokeTest interface.
func (s *SmokeTest) Name() string {
	return "smi2021"
}

// Description implements the SmokeTest interface.
func (s *SmokeTest) Description() string {
	return "Uploads a firmware to a SMI2021 in bootloader mode"
}

// Run implements the SmokeTest interface.
func (s *SmokeTest) Run(f *flag.FlagSet, args []string) (err error) {
	path := f.String("fw", "", "firmware file to upload, e.g. /lib/firmware/smi2021_3c.bin")
	wait := f.Duration("wait", 5*time.Second, "time to wait for the device to re-enumerate")
	if err := f.Parse(args); err != nil {
		return err
	}
	if f.NArg() != 0 {
		f.Usage()
		return errors.New("unrecognized arguments")
	}
	if *path == "" {
		return errors.New("-fw is required")
	}
	desc, err := descriptorFor(filepath.Base(*path))
	if err != nil {
		return err
	}
	if _, err := os.Stat(*path); err != nil {
		return err
	}

	log := logrus.New()
	bus := usbbus.New(usbbus.ID{VenID: smi2021.VendorID, DevID: smi2021.ProductID}, s, log)
	defer bus.Halt()
	if err := bus.Scan(); err != nil {
		return err
	}
	if len(s.devs) != 1 {
		return fmt.Errorf("exactly one device is expected, got %d", len(s.devs))
	}
	dev := s.devs[0]

	drv := smi2021.New(blob.NewDir(filepath.Dir(*path)), smi2021.WithDescriptors([]smi2021.Descriptor{desc}), smi2021.WithLogger(log))
	dec, err := drv.Attach(context.Background(), dev)
	if err != nil {
		return err
	}
	if dec.Kind != smi2021.Upload {
		return fmt.Errorf("expected an upload, got %s", dec)
	}
	return waitFor(bus, usbbus.ID{VenID: smi2021.VendorID, DevID: uint16(desc.ID)}, *wait)
}

// OnAttach implements usbbus.Handler.
func (s *SmokeTest) OnAttach(d *usbbus.Dev) error {
	s.devs = append(s.devs, d)
	return nil
}

// OnDetach implements usbbus.Handler.
func (s *SmokeTest) OnDetach(desc usbbus.Desc) {
}

// descriptorFor returns the known firmware named name.
func descriptorFor(name string) (smi2021.Descriptor, error) {
	for _, d := range smi2021.Firmwares {
		if d.Name == name {
			return d, nil
		}
	}
	return smi2021.Descriptor{}, fmt.Errorf("%s is not a known SMI2021 firmware", name)
}

// waitFor polls the bus until a device with id shows up.
func waitFor(bus *usbbus.Bus, id usbbus.ID, wait time.Duration) error {
	for end := time.Now().Add(wait); time.Now().Before(end); time.Sleep(250 * time.Millisecond) {
		if err := bus.Scan(); err != nil {
			return err
		}
		for _, d := range bus.All() {
			if d.ID == id {
				return nil
			}
		}
	}
	return fmt.Errorf("device did not re-enumerate as %s within %s", id, wait)
}
