// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/smiboot/blob"
)

// Recorder keeps track of upload attempts.
//
// periph.io/x/smiboot/journal implements it.
type Recorder interface {
	Begin(ctx context.Context, device string, id int, name string, size int) (string, error)
	Finish(ctx context.Context, attempt string, state string, cause error) error
}

// Option configures a Driver.
type Option func(*Driver)

// WithRequested sets the firmware ID to upload when several are available. 0
// means no preference.
func WithRequested(id int) Option {
	return func(d *Driver) {
		d.requested = id
	}
}

// WithDescriptors replaces Firmwares as the list of known firmware images.
func WithDescriptors(descs []Descriptor) Option {
	return func(d *Driver) {
		d.descs = append([]Descriptor(nil), descs...)
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// WithRecorder records every upload attempt in r.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) {
		d.rec = r
	}
}

// WithUploadProgress forwards the Loader progress of every upload to f.
func WithUploadProgress(f func(dev string, p Progress)) Option {
	return func(d *Driver) {
		d.progress = f
	}
}

// Driver handles SMI2021 devices showing up in bootloader mode.
//
// The bus calls Attach when a matching device appears and Detach when it goes
// away. Calls for a given device must be serialized; calls for different
// devices may be concurrent.
type Driver struct {
	store     blob.Store
	descs     []Descriptor
	requested int
	log       logrus.FieldLogger
	rec       Recorder
	progress  func(string, Progress)

	mu       sync.Mutex
	catalogs map[string]*Catalog
}

// New returns a Driver looking up firmware in store.
func New(store blob.Store, opts ...Option) *Driver {
	d := &Driver{
		store:    store,
		descs:    Firmwares,
		log:      discard,
		catalogs: map[string]*Catalog{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) String() string {
	return "smi2021"
}

// Attach resolves the available firmware for dev, selects one and uploads it.
//
// NoCandidates and Defer are returned with a nil error; they require operator
// action. The error is the typed error of the failed stage, if any.
func (d *Driver) Attach(ctx context.Context, dev Device) (Decision, error) {
	log := d.log.WithField("device", dev.String())
	c := NewCatalog(d.store, d.descs)
	c.log = log
	d.mu.Lock()
	if old := d.catalogs[dev.String()]; old != nil {
		old.ReleaseAll()
	}
	d.catalogs[dev.String()] = c
	d.mu.Unlock()

	if _, err := c.Resolve(ctx); err != nil {
		log.WithError(err).Error("firmware lookup failed")
		return Decision{}, err
	}
	return d.decide(ctx, dev, c, d.requested, log)
}

// Request selects firmware id for an attached device and uploads it if it
// is available. It is meant for devices Attach deferred.
func (d *Driver) Request(ctx context.Context, dev Device, id int) (Decision, error) {
	d.mu.Lock()
	c := d.catalogs[dev.String()]
	d.mu.Unlock()
	if c == nil {
		return Decision{}, ErrNotAttached
	}
	log := d.log.WithFields(logrus.Fields{"device": dev.String(), "requested": fmt.Sprintf("0x%02x", id)})
	return d.decide(ctx, dev, c, id, log)
}

// Detach releases every firmware held for dev. Unknown devices are ignored.
func (d *Driver) Detach(dev fmt.Stringer) {
	d.mu.Lock()
	c := d.catalogs[dev.String()]
	delete(d.catalogs, dev.String())
	d.mu.Unlock()
	if c != nil {
		c.ReleaseAll()
		d.log.WithField("device", dev.String()).Info("device detached")
	}
}

// Devices returns the attached devices, sorted.
func (d *Driver) Devices() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.catalogs))
	for k := range d.catalogs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d *Driver) decide(ctx context.Context, dev Device, c *Catalog, requested int, log logrus.FieldLogger) (Decision, error) {
	dec := Select(c.Available(), requested)
	switch dec.Kind {
	case NoCandidates:
		log.Error("could not find any firmware for this device")
		return dec, nil
	case Defer:
		log.WithField("available", c.Available()).Warn("could not decide what firmware to upload, user action required")
		return dec, nil
	}
	fw, _ := c.Blob(dec.Descriptor)
	log = log.WithField("firmware", dec.Descriptor.Name)
	log.Infof("uploading firmware for 0x%02x", dec.Descriptor.ID)
	return dec, d.upload(ctx, dev, dec.Descriptor, fw, log)
}

func (d *Driver) upload(ctx context.Context, dev Device, desc Descriptor, fw []byte, log logrus.FieldLogger) error {
	opts := []LoaderOption{WithLoaderLogger(log)}
	if d.progress != nil {
		name := dev.String()
		opts = append(opts, WithProgress(func(p Progress) { d.progress(name, p) }))
	}
	l := NewLoader(dev, opts...)

	var attempt string
	if d.rec != nil {
		var err error
		if attempt, err = d.rec.Begin(ctx, dev.String(), desc.ID, desc.Name, len(fw)); err != nil {
			log.WithError(err).Warn("could not record upload attempt")
		}
	}
	err := l.Load(fw)
	if attempt != "" {
		if err2 := d.rec.Finish(ctx, attempt, l.State().String(), err); err2 != nil {
			log.WithError(err2).Warn("could not record upload result")
		}
	}
	return err
}
