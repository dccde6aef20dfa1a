// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"fmt"
	"time"
)

// USB identity of a SMI2021 in bootloader mode.
const (
	VendorID  uint16 = 0x1c88
	ProductID uint16 = 0x0007
)

// Framing of the upload protocol.
const (
	// ChunkSize is the number of firmware bytes carried by one frame.
	ChunkSize = 62
	// HeaderSize is the size of the fixed frame header.
	HeaderSize = 2
	// FrameSize is the size of one chunk frame on the wire.
	FrameSize = HeaderSize + ChunkSize
	// Timeout bounds every control transfer.
	Timeout = 1000 * time.Millisecond
)

// Descriptor identifies one firmware variant the device family can run.
type Descriptor struct {
	ID   int
	Name string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (0x%02x)", d.Name, d.ID)
}

// Firmwares is the list of firmware images known to work with the SMI2021.
//
// The ID matches the product ID the device enumerates with once running
// that firmware.
var Firmwares = []Descriptor{
	{ID: 0x3c, Name: "smi2021_3c.bin"},
	{ID: 0x3e, Name: "smi2021_3e.bin"},
	{ID: 0x3f, Name: "smi2021_3f.bin"},
}
