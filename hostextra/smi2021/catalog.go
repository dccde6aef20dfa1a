// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"periph.io/x/smiboot/blob"
)

// Entry is the catalog state of one Descriptor.
type Entry struct {
	Descriptor
	// Blob is the firmware content, owned by the Catalog. Only set when
	// Available is true.
	Blob      []byte
	Available bool
}

// Catalog tracks which of the known firmware images are present for one
// attached device and owns their content.
//
// A Catalog is not safe for concurrent use.
type Catalog struct {
	store   blob.Store
	log     logrus.FieldLogger
	entries []Entry
}

// NewCatalog returns an empty Catalog for descs, resolved against store.
func NewCatalog(store blob.Store, descs []Descriptor) *Catalog {
	c := &Catalog{store: store, log: discard, entries: make([]Entry, len(descs))}
	for i := range descs {
		c.entries[i].Descriptor = descs[i]
	}
	return c
}

// Resolve looks up every descriptor in the store and returns which firmware
// ID is available.
//
// A missing firmware is not an error. Any other store failure aborts the
// resolution with a *StorageError and leaves the Catalog empty.
func (c *Catalog) Resolve(ctx context.Context) (map[int]bool, error) {
	c.ReleaseAll()
	out := make(map[int]bool, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		c.log.WithField("name", e.Name).Debug("looking for firmware")
		b, err := c.store.Load(ctx, e.Name)
		if err != nil {
			if errors.Is(err, blob.ErrNotExist) {
				if _, ok := out[e.ID]; !ok {
					out[e.ID] = false
				}
				continue
			}
			c.ReleaseAll()
			return nil, &StorageError{Name: e.Name, Err: err}
		}
		e.Blob = b
		e.Available = true
		out[e.ID] = true
		c.log.WithFields(logrus.Fields{"name": e.Name, "id": e.ID, "size": len(b)}).Info("found firmware")
	}
	return out, nil
}

// Available returns the descriptors whose firmware is held, in table order.
func (c *Catalog) Available() []Descriptor {
	var out []Descriptor
	for i := range c.entries {
		if c.entries[i].Available {
			out = append(out, c.entries[i].Descriptor)
		}
	}
	return out
}

// Entries returns a copy of the catalog entries.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Blob returns the content of the first available entry for d.
//
// The slice is borrowed; it becomes invalid after ReleaseAll.
func (c *Catalog) Blob(d Descriptor) ([]byte, bool) {
	for i := range c.entries {
		if e := &c.entries[i]; e.Available && e.Descriptor == d {
			return e.Blob, true
		}
	}
	return nil, false
}

// ReleaseAll drops every held firmware and marks all entries unavailable.
//
// It is safe to call any number of times.
func (c *Catalog) ReleaseAll() {
	for i := range c.entries {
		e := &c.entries[i]
		if e.Available {
			c.log.WithFields(logrus.Fields{"name": e.Name, "id": e.ID}).Debug("releasing firmware")
		}
		e.Blob = nil
		e.Available = false
	}
}
