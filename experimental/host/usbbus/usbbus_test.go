// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package usbbus

import (
	"sort"
	"testing"
)

func TestDescString(t *testing.T) {
	d := Desc{ID: ID{0x1c88, 0x0007}, Bus: 1, Addr: 12}
	if s := d.String(); s != "001:012 1c88:0007" {
		t.Fatal(s)
	}
}

func TestDescriptorsSort(t *testing.T) {
	all := descriptors{
		{Bus: 2, Addr: 1},
		{Bus: 1, Addr: 5},
		{Bus: 1, Addr: 2},
	}
	sort.Sort(all)
	if all[0].Addr != 2 || all[1].Addr != 5 || all[2].Bus != 2 {
		t.Fatalf("unexpected order %v", all)
	}
}

func TestDiff(t *testing.T) {
	id := ID{0x1c88, 0x0007}
	a := Desc{ID: id, Bus: 1, Addr: 3}
	b := Desc{ID: id, Bus: 1, Addr: 4}
	c := Desc{ID: id, Bus: 2, Addr: 1}
	prev := map[Desc]*Dev{a: nil, b: nil}
	added, removed := diff(prev, []Desc{b, c})
	if len(added) != 1 || added[0] != c {
		t.Fatalf("added = %v", added)
	}
	if len(removed) != 1 || removed[0] != a {
		t.Fatalf("removed = %v", removed)
	}
	added, removed = diff(nil, nil)
	if len(added) != 0 || len(removed) != 0 {
		t.Fatalf("diff(nil, nil) = %v, %v", added, removed)
	}
}

func TestMatch(t *testing.T) {
	id := ID{0x1c88, 0x0007}
	b := New(id, nil, nil)
	got := b.match([]Desc{{ID: id, Bus: 1}, {ID: ID{0x1c88, 0x003c}, Bus: 1, Addr: 2}})
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("match() = %v", got)
	}
}

func TestInitNoHandler(t *testing.T) {
	b := New(ID{}, nil, nil)
	if ok, err := b.Init(); ok || err == nil {
		t.Fatalf("Init() = %t, %v", ok, err)
	}
}
