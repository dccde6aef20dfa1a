// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"periph.io/x/smiboot/blob"
)

func TestDriverSingleFirmware(t *testing.T) {
	m := &blob.Memory{}
	m.Set("fw_3c", makeFirmware(10))
	rec := &fakeRecorder{}
	drv := New(m, WithDescriptors([]Descriptor{{ID: 0x3c, Name: "fw_3c"}}), WithRecorder(rec))
	dev := &fakeDevice{fakeSession: fakeSession{reply: []byte{0x01, 0x07}}, name: "001:004"}
	dec, err := drv.Attach(context.Background(), dev)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Kind != Upload || dec.Descriptor.ID != 0x3c {
		t.Fatalf("Attach() = %s", dec)
	}
	if n := dev.count(valuePrepare); n != 1 {
		t.Fatalf("%d prepare requests", n)
	}
	if n := dev.count(valueChunk); n != 10 {
		t.Fatalf("%d chunk requests", n)
	}
	if n := dev.count(valueFinalize); n != 1 {
		t.Fatalf("%d finalize requests", n)
	}
	if len(dev.calls) != 12 {
		t.Fatalf("%d transfers", len(dev.calls))
	}
	if len(rec.finished) != 1 || rec.finished[0] != "done" || rec.begun[0] != "001:004 fw_3c 620" {
		t.Fatalf("recorder saw %v / %v", rec.begun, rec.finished)
	}
}

func TestDriverDefer(t *testing.T) {
	m := &blob.Memory{}
	for _, d := range Firmwares {
		m.Set(d.Name, makeFirmware(2))
	}
	drv := New(m)
	dev := &fakeDevice{fakeSession: fakeSession{reply: []byte{0x01, 0x07}}, name: "001:005"}
	ctx := context.Background()
	dec, err := drv.Attach(ctx, dev)
	if err != nil || dec.Kind != Defer {
		t.Fatalf("Attach() = %s, %v", dec, err)
	}
	if len(dev.calls) != 0 {
		t.Fatalf("%d transfers on a deferred device", len(dev.calls))
	}

	// The operator now picks one.
	dec, err = drv.Request(ctx, dev, 0x3f)
	if err != nil || dec.Kind != Upload || dec.Descriptor.ID != 0x3f {
		t.Fatalf("Request() = %s, %v", dec, err)
	}
	if n := dev.count(valueChunk); n != 2 {
		t.Fatalf("%d chunk requests", n)
	}

	drv.Detach(dev)
	if _, err := drv.Request(ctx, dev, 0x3f); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("Request() after Detach = %v", err)
	}
	// Detach twice is a no-op.
	drv.Detach(dev)
}

func TestDriverRequested(t *testing.T) {
	m := &blob.Memory{}
	m.Set("smi2021_3c.bin", makeFirmware(1))
	m.Set("smi2021_3e.bin", makeFirmware(1))
	drv := New(m, WithRequested(0x3e))
	dev := &fakeDevice{fakeSession: fakeSession{reply: []byte{0x01, 0x07}}, name: "d"}
	dec, err := drv.Attach(context.Background(), dev)
	if err != nil || dec.Kind != Upload || dec.Descriptor.ID != 0x3e {
		t.Fatalf("Attach() = %s, %v", dec, err)
	}
}

func TestDriverNoCandidates(t *testing.T) {
	drv := New(&blob.Memory{})
	dev := &fakeDevice{name: "d"}
	dec, err := drv.Attach(context.Background(), dev)
	if err != nil || dec.Kind != NoCandidates {
		t.Fatalf("Attach() = %s, %v", dec, err)
	}
	if len(dev.calls) != 0 {
		t.Fatalf("%d transfers", len(dev.calls))
	}
}

func TestDriverStorageError(t *testing.T) {
	broken := errors.New("EACCES")
	drv := New(&blob.Memory{Err: broken})
	dev := &fakeDevice{name: "d"}
	_, err := drv.Attach(context.Background(), dev)
	var e *StorageError
	if !errors.As(err, &e) || !errors.Is(err, broken) {
		t.Fatalf("Attach() = %v", err)
	}
	if len(dev.calls) != 0 {
		t.Fatalf("%d transfers", len(dev.calls))
	}
}

func TestDriverUploadError(t *testing.T) {
	m := &blob.Memory{}
	m.Set("smi2021_3c.bin", make([]byte, 100))
	rec := &fakeRecorder{}
	drv := New(m, WithRecorder(rec))
	dev := &fakeDevice{fakeSession: fakeSession{reply: []byte{0x01, 0x07}}, name: "d"}
	dec, err := drv.Attach(context.Background(), dev)
	var e *InvalidImageSizeError
	if !errors.As(err, &e) || dec.Kind != Upload {
		t.Fatalf("Attach() = %s, %v", dec, err)
	}
	if len(rec.finished) != 1 || rec.finished[0] != "failed" {
		t.Fatalf("recorder saw %v", rec.finished)
	}
}

func TestDriverDevices(t *testing.T) {
	drv := New(&blob.Memory{})
	ctx := context.Background()
	for _, n := range []string{"b", "a"} {
		if _, err := drv.Attach(ctx, &fakeDevice{name: n}); err != nil {
			t.Fatal(err)
		}
	}
	if got := drv.Devices(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Devices() = %v", got)
	}
	drv.Detach(&fakeDevice{name: "a"})
	if got := drv.Devices(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("Devices() = %v", got)
	}
}

func TestDriverProgress(t *testing.T) {
	m := &blob.Memory{}
	m.Set("smi2021_3c.bin", makeFirmware(3))
	var last Progress
	var devName string
	drv := New(m, WithUploadProgress(func(dev string, p Progress) {
		devName = dev
		last = p
	}))
	dev := &fakeDevice{fakeSession: fakeSession{reply: []byte{0x01, 0x07}}, name: "d"}
	if _, err := drv.Attach(context.Background(), dev); err != nil {
		t.Fatal(err)
	}
	if devName != "d" || last.State != Done || last.Frame != 3 || last.Frames != 3 {
		t.Fatalf("last progress %q %+v", devName, last)
	}
}

//

type fakeRecorder struct {
	begun    []string
	finished []string
}

func (f *fakeRecorder) Begin(ctx context.Context, device string, id int, name string, size int) (string, error) {
	f.begun = append(f.begun, device+" "+name+" "+strconv.Itoa(size))
	return "attempt", nil
}

func (f *fakeRecorder) Finish(ctx context.Context, attempt string, state string, cause error) error {
	f.finished = append(f.finished, state)
	return nil
}
