// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package smi2021 uploads firmware to a SMI2021 (EasyCAP) video grabber
// sitting in its bootloader.
//
// A freshly plugged SMI2021 enumerates as 1c88:0007 and only understands a
// tiny vendor protocol over the control endpoint. The host must push one of
// the known firmware images before the device re-enumerates with its final
// identity.
//
// Protocol
//
// All requests are vendor requests to the device recipient with request code
// 0x01 and a one second timeout:
//
//  prepare   IN   value 0x0001  reply must be 01 07
//  chunk N   OUT  value 0x0005  05 ff + 62 bytes of firmware
//  finalize  OUT  value 0x0007  07 00
//
// Firmware selection
//
// The firmware images are looked up by name in a blob.Store. When exactly one
// is present it is uploaded. When more than one is present the operator has to
// pick one, either upfront with WithRequested or later with Driver.Request.
//
// Package smi2021 does not talk to libusb itself; see
// periph.io/x/smiboot/experimental/host/usbbus for the bus side.
package smi2021
