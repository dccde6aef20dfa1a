// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"fmt"
	"time"
)

// Session is a control channel to one attached device.
//
// Control performs a single control transfer and blocks until it completes or
// timeout elapses. The direction is encoded in rType; for IN transfers data is
// filled with the reply. It returns the number of bytes transferred.
//
// It does not interpret the payload.
type Session interface {
	Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error)
}

// Device is an attached device as seen by the Driver.
//
// String must be stable for the lifetime of the attachment; it is the key
// Detach is called with.
type Device interface {
	Session
	fmt.Stringer
}

// bmRequestType bits.
const (
	dirOut       uint8 = 0x00
	dirIn        uint8 = 0x80
	typeVendor   uint8 = 0x40
	recipientDev uint8 = 0x00
)
