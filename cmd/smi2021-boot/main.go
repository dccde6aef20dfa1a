// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// smi2021-boot uploads firmware to SMI2021 devices waiting in bootloader mode.
//
// Firmware images are looked up by name (smi2021_3c.bin, smi2021_3e.bin,
// smi2021_3f.bin) in the directories listed by -dir and, optionally, in a S3
// bucket. When more than one is found, -fw selects the one to upload. With
// -watch, devices left waiting can be served later by writing the ID to the
// -fw-file file and sending SIGHUP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/smiboot/blob"
	"periph.io/x/smiboot/devices/screen"
	"periph.io/x/smiboot/experimental/host/usbbus"
	"periph.io/x/smiboot/hostextra"
	"periph.io/x/smiboot/hostextra/smi2021"
	"periph.io/x/smiboot/journal"
)

// handler bridges the bus notifications to the driver.
type handler struct {
	ctx context.Context
	drv *smi2021.Driver
	log logrus.FieldLogger

	mu sync.Mutex
	// Devices seen on the bus and the ones waiting for an operator choice.
	devs     map[string]smi2021.Device
	deferred map[string]bool
	// Outcome of the devices seen so far, for the one shot mode.
	uploaded int
	pending  int
	failed   int
}

func (h *handler) OnAttach(d *usbbus.Dev) error {
	return h.attach(d)
}

func (h *handler) OnDetach(desc usbbus.Desc) {
	h.mu.Lock()
	if h.deferred[desc.String()] {
		h.pending--
	}
	delete(h.devs, desc.String())
	delete(h.deferred, desc.String())
	h.mu.Unlock()
	h.drv.Detach(desc)
}

func (h *handler) attach(d smi2021.Device) error {
	dec, err := h.drv.Attach(h.ctx, d)
	log := h.log.WithFields(logrus.Fields{"device": d.String(), "decision": dec.String()})
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.devs == nil {
		h.devs = map[string]smi2021.Device{}
		h.deferred = map[string]bool{}
	}
	h.devs[d.String()] = d
	if err != nil {
		h.failed++
		return err
	}
	switch dec.Kind {
	case smi2021.Upload:
		h.uploaded++
		log.Info("firmware uploaded, device will re-enumerate")
	case smi2021.Defer:
		h.pending++
		h.deferred[d.String()] = true
		log.Warn("several firmwares available, rerun with -fw set to one of 0x3c, 0x3e or 0x3f, or with -watch write the ID to -fw-file and send SIGHUP")
	case smi2021.NoCandidates:
		h.pending++
		log.Warn("no firmware found, install one of " + names())
	}
	return nil
}

// reselect uploads firmware id to every attached device still waiting for a
// choice. It returns the number of uploads.
func (h *handler) reselect(id int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, name := range h.drv.Devices() {
		d := h.devs[name]
		if d == nil || !h.deferred[name] {
			continue
		}
		log := h.log.WithFields(logrus.Fields{"device": name, "requested": fmt.Sprintf("0x%02x", id)})
		dec, err := h.drv.Request(h.ctx, d, id)
		if err != nil {
			delete(h.deferred, name)
			h.pending--
			h.failed++
			log.WithError(err).Error("upload failed")
			continue
		}
		if dec.Kind == smi2021.Upload {
			delete(h.deferred, name)
			h.pending--
			h.uploaded++
			n++
			log.Info("firmware uploaded, device will re-enumerate")
			continue
		}
		log.WithField("decision", dec.String()).Warn("firmware not available for this device")
	}
	return n
}

// readID reads a firmware ID, e.g. "0x3e", from the file at path.
func readID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(b)), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return int(id), nil
}

// reloadOnHangup calls h.reselect with the ID found in path every time c
// fires, until ctx is done.
func reloadOnHangup(ctx context.Context, h *handler, path string, c <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
			id, err := readID(path)
			if err != nil {
				h.log.WithError(err).Error("could not read firmware ID")
				continue
			}
			h.log.WithField("requested", fmt.Sprintf("0x%02x", id)).Info("firmware ID reloaded")
			h.reselect(id)
		}
	}
}

func names() string {
	var n []string
	for _, d := range smi2021.Firmwares {
		n = append(n, d.Name)
	}
	return strings.Join(n, ", ")
}

func newStore(ctx context.Context, dirs, bucket, region, prefix string) (blob.Store, error) {
	var s blob.Search
	for _, d := range filepath.SplitList(dirs) {
		if d != "" {
			s = append(s, blob.NewDir(d))
		}
	}
	if bucket != "" {
		b, err := blob.NewS3(ctx, region, bucket, prefix)
		if err != nil {
			return nil, err
		}
		s = append(s, b)
	}
	if len(s) == 0 {
		return nil, errors.New("no firmware location, use -dir or -s3-bucket")
	}
	return s, nil
}

func printHistory(ctx context.Context, path string, n int) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()
	all, err := j.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, a := range all {
		fmt.Printf("%s  %-20s  %-16s  %-8s %s\n", a.Started.Local().Format(time.DateTime), a.Device, a.Name, a.State, a.Error)
	}
	return nil
}

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose mode")
	asJSON := flag.Bool("json", false, "log as JSON")
	fw := flag.String("fw", "0", "firmware ID to upload when more than one is available, e.g. 0x3c")
	fwFile := flag.String("fw-file", "", "file holding the firmware ID; overrides -fw and is read again on SIGHUP with -watch")
	dirs := flag.String("dir", "/lib/firmware/updates"+string(os.PathListSeparator)+"/lib/firmware", "firmware directories, searched in order")
	bucket := flag.String("s3-bucket", "", "S3 bucket to look up firmware in after -dir")
	region := flag.String("s3-region", "", "S3 region")
	prefix := flag.String("s3-prefix", "", "S3 key prefix")
	journalPath := flag.String("journal", "", "sqlite file recording upload attempts")
	history := flag.Int("history", 0, "print the last N upload attempts from -journal and exit")
	watch := flag.Bool("watch", false, "keep running and handle devices as they are plugged")
	interval := flag.Duration("interval", time.Second, "bus scan interval with -watch")
	progress := flag.Bool("progress", false, "draw upload progress")
	flag.Parse()

	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if *asJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *history > 0 {
		if *journalPath == "" {
			return errors.New("-history requires -journal")
		}
		return printHistory(ctx, *journalPath, *history)
	}

	requested, err := strconv.ParseInt(*fw, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid -fw: %w", err)
	}
	if *fwFile != "" {
		id, err := readID(*fwFile)
		switch {
		case err == nil:
			requested = int64(id)
		case errors.Is(err, os.ErrNotExist):
			log.WithField("path", *fwFile).Debug("no firmware ID file yet")
		default:
			return fmt.Errorf("invalid -fw-file: %w", err)
		}
	}
	store, err := newStore(ctx, *dirs, *bucket, *region, *prefix)
	if err != nil {
		return err
	}
	opts := []smi2021.Option{smi2021.WithRequested(int(requested)), smi2021.WithLogger(log)}
	if *journalPath != "" {
		j, err := journal.Open(*journalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, smi2021.WithRecorder(j))
	}
	if *progress {
		s := screen.New(40)
		defer s.Halt()
		opts = append(opts, smi2021.WithUploadProgress(s.Update))
	}
	log.WithField("store", store.String()).Debug("looking up firmware")

	h := &handler{ctx: ctx, drv: smi2021.New(store, opts...), log: log}
	bus := usbbus.New(usbbus.ID{VenID: smi2021.VendorID, DevID: smi2021.ProductID}, h, log)
	defer bus.Halt()
	if _, err := hostextra.Init(bus); err != nil {
		return err
	}

	if *watch {
		log.WithField("interval", *interval).Info("waiting for devices")
		if *fwFile != "" {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go reloadOnHangup(ctx, h, *fwFile, hup)
		}
		if err := bus.Watch(ctx, *interval); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	switch {
	case h.failed != 0:
		return fmt.Errorf("%d device(s) failed", h.failed)
	case h.uploaded+h.pending == 0:
		return errors.New("found no SMI2021 in bootloader mode on the USB bus")
	case h.pending != 0:
		return fmt.Errorf("%d device(s) need user action", h.pending)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "smi2021-boot: %s.\n", err)
		os.Exit(1)
	}
}
