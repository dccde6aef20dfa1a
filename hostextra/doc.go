// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hostextra loads the extra drivers for the host itself.
//
// The host is the machine where this code is running.
//
// Contrary to periph.io/x/periph/host, the drivers loaded by hostextra depend
// on either third party Go packages and/or on cgo, and are constructed by the
// caller before being registered.
//
// Subpackages contain the drivers for devices found on the host's buses.
package hostextra
