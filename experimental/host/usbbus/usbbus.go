// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package usbbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	"periph.io/x/periph"
	"periph.io/x/periph/conn"
)

// ID is the USB identity of a device.
type ID struct {
	VenID uint16
	DevID uint16
}

func (i ID) String() string {
	return fmt.Sprintf("%04x:%04x", i.VenID, i.DevID)
}

// Desc represents the description of an USB device on an USB bus.
type Desc struct {
	ID   ID
	Bus  int
	Addr int
}

// String returns the bus position followed by the identity, e.g.
// "001:004 1c88:0007". It is unique among the devices currently plugged.
func (d Desc) String() string {
	return fmt.Sprintf("%03d:%03d %s", d.Bus, d.Addr, d.ID)
}

// Handler is notified of matching devices appearing and disappearing.
//
// The calls are serialized.
type Handler interface {
	// OnAttach is called with a freshly opened device. The device stays open
	// until it disappears or the Bus is halted.
	OnAttach(d *Dev) error
	// OnDetach is called once the device is gone. Its handle is already
	// closed.
	OnDetach(desc Desc)
}

// Bus watches the USB bus for devices matching one ID.
//
// Bus implements periph.Driver: Init does one synchronous scan. Watch keeps
// scanning until its context is cancelled.
type Bus struct {
	id  ID
	h   Handler
	log logrus.FieldLogger

	mu   sync.Mutex
	ctx  *gousb.Context
	open map[Desc]*Dev
	all  descriptors
}

// New returns a Bus reporting devices matching id to h. log may be nil.
func New(id ID, h Handler, log logrus.FieldLogger) *Bus {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Bus{id: id, h: h, log: log, open: map[Desc]*Dev{}}
}

// All returns all the USB devices detected during the last scan.
func (b *Bus) All() []Desc {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Desc, len(b.all))
	copy(out, b.all)
	return out
}

// Watch scans the bus every interval until ctx is done.
func (b *Bus) Watch(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := b.Scan(); err != nil {
			b.log.WithError(err).Warn("usb scan failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Scan enumerates the bus once, opens new matching devices and reports
// vanished ones.
func (b *Bus) Scan() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		b.ctx = gousb.NewContext()
	}
	var seen descriptors
	devs, err := b.ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		// Return true to keep the device open.
		desc := fromDesc(d)
		seen = append(seen, desc)
		_, known := b.open[desc]
		return desc.ID == b.id && !known
	})
	// This API is really poor as there can be multiple devices opened and you
	// don't know how many failed.
	// If the user needs root access, LIBUSB_ERROR_ACCESS (-3) will be returned.
	sort.Sort(seen)
	b.all = seen

	_, removed := diff(b.open, b.match(seen))
	for _, desc := range removed {
		b.open[desc].d.Close()
		delete(b.open, desc)
		b.log.WithField("device", desc.String()).Debug("device gone")
		b.h.OnDetach(desc)
	}

	for _, d := range devs {
		desc := fromDesc(d.Desc)
		name, err := d.GetStringDescriptor(2)
		if err != nil {
			// Sometimes the USB device will return junk, default to the vendor and
			// device ids.
			name = desc.ID.String()
		}
		dev := &Dev{desc: desc, name: name, d: d}
		b.open[desc] = dev
		b.log.WithFields(logrus.Fields{"device": desc.String(), "name": name}).Debug("device found")
		if err := b.h.OnAttach(dev); err != nil {
			b.log.WithError(err).WithField("device", desc.String()).Error("attach failed")
		}
	}
	return err
}

// Halt closes every open device and releases libusb.
//
// The handler is told about every closed device.
func (b *Bus) Halt() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for desc, d := range b.open {
		if err1 := d.d.Close(); err1 != nil {
			err = err1
		}
		delete(b.open, desc)
		b.h.OnDetach(desc)
	}
	if b.ctx != nil {
		if err1 := b.ctx.Close(); err1 != nil {
			err = err1
		}
		b.ctx = nil
	}
	return err
}

func (b *Bus) match(all []Desc) []Desc {
	var out []Desc
	for _, d := range all {
		if d.ID == b.id {
			out = append(out, d)
		}
	}
	return out
}

// Options:
// - https://github.com/kylelemons/gousb (which was forked multiple times)
//   - https://github.com/truveris/gousb
// - https://github.com/gotmc/libusb
// The only one which does not require libusb but only works on linux:
// - https://github.com/swetland/go-usb/tree/master/src/usb

// Dev is an open handle to an USB device.
//
// The device can disappear at any moment, in which case Control fails.
type Dev struct {
	desc Desc
	name string
	d    *gousb.Device
}

// String returns Desc.String(). It is stable while the device is plugged.
func (d *Dev) String() string {
	return d.desc.String()
}

// Name returns the product string descriptor, or the ID when the device does
// not report one.
func (d *Dev) Name() string {
	return d.name
}

// Desc returns the bus position and identity of the device.
func (d *Dev) Desc() Desc {
	return d.desc
}

// Halt implements conn.Resource. The device is owned by the Bus, so it is a
// no-op.
func (d *Dev) Halt() error {
	return nil
}

// Control does a control transfer on the default endpoint.
//
// Calls must not be concurrent as the timeout is stored on the handle.
func (d *Dev) Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error) {
	d.d.ControlTimeout = timeout
	n, err := d.d.Control(rType, request, val, idx, data)
	if err != nil {
		return n, fmt.Errorf("usbbus: %s: control 0x%02x/0x%02x/0x%04x: %w", d.desc, rType, request, val, err)
	}
	return n, nil
}

// String implements periph.Driver.
func (b *Bus) String() string {
	return "usbbus"
}

// Prerequisites implements periph.Driver.
func (b *Bus) Prerequisites() []string {
	return nil
}

// After implements periph.Driver.
func (b *Bus) After() []string {
	return nil
}

// Init implements periph.Driver. It does the initial scan.
func (b *Bus) Init() (bool, error) {
	if b.h == nil {
		return false, errors.New("usbbus: no handler")
	}
	if err := b.Scan(); err != nil {
		return true, err
	}
	return true, nil
}

//

type descriptors []Desc

func (d descriptors) Len() int      { return len(d) }
func (d descriptors) Swap(i, j int) { d[i], d[j] = d[j], d[i] }
func (d descriptors) Less(i, j int) bool {
	if d[i].Bus < d[j].Bus {
		return true
	}
	if d[i].Bus > d[j].Bus {
		return false
	}
	return d[i].Addr < d[j].Addr
}

func fromDesc(d *gousb.DeviceDesc) Desc {
	return Desc{ID{uint16(d.Vendor), uint16(d.Product)}, d.Bus, d.Address}
}

// diff returns the devices in cur not in prev and the ones in prev not in
// cur, both sorted.
func diff(prev map[Desc]*Dev, cur []Desc) (added, removed descriptors) {
	now := make(map[Desc]bool, len(cur))
	for _, d := range cur {
		now[d] = true
		if _, ok := prev[d]; !ok {
			added = append(added, d)
		}
	}
	for d := range prev {
		if !now[d] {
			removed = append(removed, d)
		}
	}
	sort.Sort(added)
	sort.Sort(removed)
	return added, removed
}

var _ periph.Driver = &Bus{}
var _ conn.Resource = &Bus{}
var _ conn.Resource = &Dev{}
