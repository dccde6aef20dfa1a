// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// smi2021-info prints out the SMI2021 devices in bootloader mode found on the
// USB bus and which firmware smi2021-boot would upload. Nothing is uploaded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"periph.io/x/smiboot/blob"
	"periph.io/x/smiboot/experimental/host/usbbus"
	"periph.io/x/smiboot/hostextra"
	"periph.io/x/smiboot/hostextra/smi2021"
)

type lister struct {
	devs []*usbbus.Dev
}

func (l *lister) OnAttach(d *usbbus.Dev) error {
	l.devs = append(l.devs, d)
	return nil
}

func (l *lister) OnDetach(desc usbbus.Desc) {
}

// dirStore returns a Store searching the directories in list, skipping empty
// entries.
func dirStore(list string) blob.Search {
	var s blob.Search
	for _, d := range filepath.SplitList(list) {
		if d != "" {
			s = append(s, blob.NewDir(d))
		}
	}
	return s
}

func process(ctx context.Context, c *smi2021.Catalog, requested int) error {
	if _, err := c.Resolve(ctx); err != nil {
		return err
	}
	for _, e := range c.Entries() {
		if e.Available {
			fmt.Printf("  %-16s 0x%02x  %d bytes, %d chunks\n", e.Name, e.ID, len(e.Blob), len(e.Blob)/smi2021.ChunkSize)
			if len(e.Blob)%smi2021.ChunkSize != 0 {
				fmt.Printf("  %-16s       invalid size\n", "")
			}
		} else {
			fmt.Printf("  %-16s 0x%02x  not found\n", e.Name, e.ID)
		}
	}
	fmt.Printf("  Decision:        %s\n", smi2021.Select(c.Available(), requested))
	c.ReleaseAll()
	return nil
}

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose mode")
	fw := flag.String("fw", "0", "firmware ID requested when more than one is available, e.g. 0x3c")
	dirs := flag.String("dir", "/lib/firmware/updates"+string(os.PathListSeparator)+"/lib/firmware", "firmware directories, searched in order")
	flag.Parse()
	log := logrus.New()
	log.SetOutput(io.Discard)
	if *verbose {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
	}
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	requested, err := strconv.ParseInt(*fw, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid -fw: %w", err)
	}
	store := dirStore(*dirs)
	if len(store) == 0 {
		return errors.New("no firmware location, use -dir")
	}

	l := &lister{}
	bus := usbbus.New(usbbus.ID{VenID: smi2021.VendorID, DevID: smi2021.ProductID}, l, log)
	defer bus.Halt()
	if _, err := hostextra.Init(bus); err != nil {
		return err
	}

	plural := ""
	if len(l.devs) > 1 {
		plural = "s"
	}
	fmt.Printf("Found %d device%s\n", len(l.devs), plural)
	ctx := context.Background()
	for i, d := range l.devs {
		fmt.Printf("- Device #%d: %s (%s)\n", i, d, d.Name())
		if err := process(ctx, smi2021.NewCatalog(store, smi2021.Firmwares), int(requested)); err != nil {
			fmt.Printf("  %v\n", err)
		}
		if i != len(l.devs)-1 {
			fmt.Printf("\n")
		}
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "smi2021-info: %s.\n", err)
		os.Exit(1)
	}
}
