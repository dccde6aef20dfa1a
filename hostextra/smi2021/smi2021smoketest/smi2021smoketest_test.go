// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021smoketest

import (
	"flag"
	"io"
	"testing"
)

func TestDescriptorFor(t *testing.T) {
	d, err := descriptorFor("smi2021_3e.bin")
	if err != nil || d.ID != 0x3e {
		t.Fatalf("descriptorFor() = %v, %v", d, err)
	}
	if _, err := descriptorFor("smi2021_ff.bin"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunArgs(t *testing.T) {
	data := [][]string{
		{},
		{"extra"},
		{"-fw", "/nonexistent/unknown.bin"},
		{"-fw", "/nonexistent/smi2021_3c.bin"},
	}
	for i, args := range data {
		f := flag.NewFlagSet("smi2021", flag.ContinueOnError)
		f.SetOutput(io.Discard)
		s := &SmokeTest{}
		if err := s.Run(f, args); err == nil {
			t.Fatalf("#%d: Run(%v) succeeded", i, args)
		}
	}
}
