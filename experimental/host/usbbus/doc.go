// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package usbbus watches the USB bus for a given device identity.
//
// It opens every matching device as it shows up, hands it to a Handler and
// reports when it goes away. Hotplug events are not used; the bus is polled.
//
// This package depends on https://github.com/google/gousb. gousb uses cgo that
// depends on libusb being installed. This is generally not the case by
// default.
//
// Debian
//
// This includes Raspbian and Ubuntu.
//
// First configure cgo as explained at https://periph.io/x/smiboot#hdr-Debian.
//
// You need to install libusb-1.0:
//
//  sudo apt install libusb-1.0-0-dev
//
// MacOS
//
// First configure cgo as explained at https://periph.io/x/smiboot#hdr-MacOS.
//
//  brew install libusb
//
// Windows
//
// The package is currently not supported on Windows.
package usbbus
