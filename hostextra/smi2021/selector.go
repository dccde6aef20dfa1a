// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

// Kind is the outcome of a firmware selection.
type Kind int

const (
	// NoCandidates means no firmware is available. The operator has to install
	// one of the Firmwares.
	NoCandidates Kind = iota
	// Upload means Decision.Descriptor is to be uploaded.
	Upload
	// Defer means several firmwares are available and none was requested.
	Defer
)

func (k Kind) String() string {
	switch k {
	case NoCandidates:
		return "no candidates"
	case Upload:
		return "upload"
	case Defer:
		return "defer"
	default:
		return "unknown"
	}
}

// Decision is the result of Select.
type Decision struct {
	Kind Kind
	// Descriptor is only set when Kind is Upload.
	Descriptor Descriptor
}

func (d Decision) String() string {
	if d.Kind == Upload {
		return "upload " + d.Descriptor.String()
	}
	return d.Kind.String()
}

// Select decides which firmware to upload.
//
// A single available firmware is always chosen. With several, requested must
// match the ID of exactly one of them; 0 means no preference. Ambiguity is
// decided by the number of available entries, not by distinct IDs.
func Select(available []Descriptor, requested int) Decision {
	switch len(available) {
	case 0:
		return Decision{Kind: NoCandidates}
	case 1:
		return Decision{Kind: Upload, Descriptor: available[0]}
	}
	if requested == 0 {
		return Decision{Kind: Defer}
	}
	match := -1
	for i := range available {
		if available[i].ID != requested {
			continue
		}
		if match != -1 {
			return Decision{Kind: Defer}
		}
		match = i
	}
	if match == -1 {
		return Decision{Kind: Defer}
	}
	return Decision{Kind: Upload, Descriptor: available[match]}
}
