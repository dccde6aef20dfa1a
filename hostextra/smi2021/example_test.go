// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021_test

import (
	"fmt"

	"periph.io/x/smiboot/hostextra/smi2021"
)

func ExampleSelect() {
	available := []smi2021.Descriptor{smi2021.Firmwares[0], smi2021.Firmwares[2]}
	fmt.Println(smi2021.Select(available, 0))
	fmt.Println(smi2021.Select(available, 0x3f))
	// Output:
	// defer
	// upload smi2021_3f.bin (0x3f)
}
