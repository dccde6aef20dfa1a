// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"context"
	"errors"
	"testing"

	"periph.io/x/smiboot/blob"
)

func TestCatalogResolve(t *testing.T) {
	m := &blob.Memory{}
	m.Set("smi2021_3e.bin", makeFirmware(1))
	c := NewCatalog(m, Firmwares)
	got, err := c.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := map[int]bool{0x3c: false, 0x3e: true, 0x3f: false}
	if len(got) != len(want) {
		t.Fatalf("Resolve() = %v", got)
	}
	for id, ok := range want {
		if got[id] != ok {
			t.Fatalf("Resolve()[0x%x] = %t", id, got[id])
		}
	}
	a := c.Available()
	if len(a) != 1 || a[0] != Firmwares[1] {
		t.Fatalf("Available() = %v", a)
	}
	if b, ok := c.Blob(Firmwares[1]); !ok || len(b) != ChunkSize {
		t.Fatalf("Blob() = %d bytes, %t", len(b), ok)
	}
	if _, ok := c.Blob(Firmwares[0]); ok {
		t.Fatal("Blob() of a missing firmware")
	}
}

func TestCatalogStorageError(t *testing.T) {
	broken := errors.New("EIO")
	st := &flakyStore{Memory: &blob.Memory{}, failOn: "smi2021_3f.bin", err: broken}
	st.Set("smi2021_3c.bin", makeFirmware(1))
	st.Set("smi2021_3e.bin", makeFirmware(1))
	c := NewCatalog(st, Firmwares)
	_, err := c.Resolve(context.Background())
	var e *StorageError
	if !errors.As(err, &e) || e.Name != "smi2021_3f.bin" || !errors.Is(err, broken) {
		t.Fatalf("Resolve() = %v", err)
	}
	for _, e := range c.Entries() {
		if e.Available || e.Blob != nil {
			t.Fatalf("%s still held after failed resolution", e.Name)
		}
	}
}

func TestCatalogReleaseAll(t *testing.T) {
	m := &blob.Memory{}
	for _, d := range Firmwares {
		m.Set(d.Name, makeFirmware(1))
	}
	c := NewCatalog(m, Firmwares)
	// Releasing an unresolved catalog is fine.
	c.ReleaseAll()
	if _, err := c.Resolve(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(c.Available()); n != 3 {
		t.Fatalf("Available() = %d", n)
	}
	c.ReleaseAll()
	c.ReleaseAll()
	for _, e := range c.Entries() {
		if e.Available || e.Blob != nil {
			t.Fatalf("%s still held", e.Name)
		}
	}
	if n := len(c.Available()); n != 0 {
		t.Fatalf("Available() = %d", n)
	}
}

func TestCatalogDuplicateID(t *testing.T) {
	descs := []Descriptor{{ID: 0x3c, Name: "a.bin"}, {ID: 0x3c, Name: "b.bin"}}
	m := &blob.Memory{}
	m.Set("b.bin", makeFirmware(1))
	c := NewCatalog(m, descs)
	got, err := c.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !got[0x3c] {
		t.Fatalf("Resolve() = %v", got)
	}
	if a := c.Available(); len(a) != 1 || a[0].Name != "b.bin" {
		t.Fatalf("Available() = %v", a)
	}
}

//

// flakyStore fails for one name.
type flakyStore struct {
	*blob.Memory
	failOn string
	err    error
}

func (f *flakyStore) Load(ctx context.Context, name string) ([]byte, error) {
	if name == f.failOn {
		return nil, f.err
	}
	return f.Memory.Load(ctx, name)
}
