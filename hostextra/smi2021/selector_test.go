// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import "testing"

func TestSelect(t *testing.T) {
	a := Descriptor{ID: 0x3c, Name: "a"}
	b := Descriptor{ID: 0x3e, Name: "b"}
	c := Descriptor{ID: 0x3f, Name: "c"}
	dup := Descriptor{ID: 0x3c, Name: "dup"}
	data := []struct {
		name      string
		available []Descriptor
		requested int
		want      Decision
	}{
		{"none", nil, 0, Decision{Kind: NoCandidates}},
		{"none requested", nil, 0x3c, Decision{Kind: NoCandidates}},
		{"single", []Descriptor{b}, 0, Decision{Kind: Upload, Descriptor: b}},
		{"single other requested", []Descriptor{b}, 0x3c, Decision{Kind: Upload, Descriptor: b}},
		{"two requested", []Descriptor{a, b}, 0x3e, Decision{Kind: Upload, Descriptor: b}},
		{"two none requested", []Descriptor{a, b}, 0, Decision{Kind: Defer}},
		{"two mismatch", []Descriptor{a, b}, 0x3f, Decision{Kind: Defer}},
		{"three none requested", []Descriptor{a, b, c}, 0, Decision{Kind: Defer}},
		{"three requested", []Descriptor{a, b, c}, 0x3f, Decision{Kind: Upload, Descriptor: c}},
		{"duplicate id", []Descriptor{a, dup}, 0x3c, Decision{Kind: Defer}},
		{"duplicate id other", []Descriptor{a, dup, b}, 0x3e, Decision{Kind: Upload, Descriptor: b}},
	}
	for i, line := range data {
		if got := Select(line.available, line.requested); got != line.want {
			t.Fatalf("#%d %s: Select() = %s, want %s", i, line.name, got, line.want)
		}
	}
}

func TestDecisionString(t *testing.T) {
	d := Decision{Kind: Upload, Descriptor: Firmwares[0]}
	if s := d.String(); s != "upload smi2021_3c.bin (0x3c)" {
		t.Fatal(s)
	}
	if s := (Decision{Kind: Defer}).String(); s != "defer" {
		t.Fatal(s)
	}
}
