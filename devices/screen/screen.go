// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screen draws a firmware upload progress strip on the terminal
// (stdout) using ANSI color codes.
package screen // import "periph.io/x/smiboot/devices/screen"

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"sync"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/periph/conn"
	"periph.io/x/smiboot/hostextra/smi2021"
)

var (
	sent    = color.NRGBA{0x00, 0xc0, 0x00, 0xff}
	pending = color.NRGBA{0x40, 0x40, 0x40, 0xff}
	failed  = color.NRGBA{0xc0, 0x00, 0x00, 0xff}
)

// Dev is a 1D progress strip that outputs to the console.
type Dev struct {
	w   io.Writer
	l   int
	mu  sync.Mutex
	buf bytes.Buffer
}

// New returns a Dev l cells wide that displays at the console.
func New(l int) *Dev {
	return NewWriter(colorable.NewColorableStdout(), l)
}

// NewWriter returns a Dev writing to w.
func NewWriter(w io.Writer, l int) *Dev {
	if l < 1 {
		l = 1
	}
	return &Dev{w: w, l: l}
}

func (d *Dev) String() string {
	return "Screen"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors so it is not corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Update redraws the strip for p. It is meant to be passed to
// smi2021.WithUploadProgress.
func (d *Dev) Update(dev string, p smi2021.Progress) {
	_ = d.draw(dev, p)
}

func (d *Dev) draw(dev string, p smi2021.Progress) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	_, _ = fmt.Fprintf(&d.buf, "%s %-12s ", dev, p.State)
	done := d.cells(p)
	for i := 0; i < d.l; i++ {
		c := pending
		if i < done {
			c = sent
		}
		if p.State == smi2021.Failed {
			c = failed
		}
		_, _ = io.WriteString(&d.buf, ansi256.Default.Block(c))
	}
	_, _ = fmt.Fprintf(&d.buf, "\033[0m %d/%d", p.Frame, p.Frames)
	if p.State == smi2021.Done || p.State == smi2021.Failed {
		_, _ = d.buf.WriteString("\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

// cells returns the number of cells to fill for p.
func (d *Dev) cells(p smi2021.Progress) int {
	if p.Frames == 0 {
		return 0
	}
	return p.Frame * d.l / p.Frames
}

var _ conn.Resource = &Dev{}
var _ fmt.Stringer = &Dev{}
