// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hostextra

import (
	"fmt"

	"periph.io/x/periph"
	"periph.io/x/periph/host"
)

// Init registers drivers then calls host.Init(), which calls periph.Init().
//
// The drivers are usually a *usbbus.Bus, which needs a handler and therefore
// cannot register itself from an init() function. Since host.Init() is used,
// all drivers in periph.io/x/periph/host are also automatically loaded.
//
// A driver that failed to initialize is reported as an error.
func Init(drivers ...periph.Driver) (*periph.State, error) {
	for _, d := range drivers {
		if err := periph.Register(d); err != nil {
			return nil, err
		}
	}
	state, err := host.Init()
	if err != nil {
		return state, err
	}
	for _, f := range state.Failed {
		for _, d := range drivers {
			if f.D.String() == d.String() {
				return state, fmt.Errorf("hostextra: %s: %v", d, f.Err)
			}
		}
	}
	return state, nil
}
