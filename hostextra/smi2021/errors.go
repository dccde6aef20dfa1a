// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"errors"
	"fmt"
)

// ErrNotAttached is returned when an operation names a device that was never
// attached or was already detached.
var ErrNotAttached = errors.New("smi2021: device not attached")

// InvalidImageSizeError is returned when the firmware length is not a non
// zero multiple of ChunkSize. Nothing was sent to the device.
type InvalidImageSizeError struct {
	Size int
}

func (e *InvalidImageSizeError) Error() string {
	return fmt.Sprintf("smi2021: firmware has wrong size %d, must be a multiple of %d", e.Size, ChunkSize)
}

// StorageError is returned when the blob store failed for another reason than
// the firmware being absent.
type StorageError struct {
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("smi2021: loading %s: %v", e.Name, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// HandshakeError is returned when the device could not be prepared for
// upload.
//
// Err is set when the transfer itself failed; otherwise Reply holds the
// unexpected big endian reply.
type HandshakeError struct {
	Reply uint16
	Err   error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("smi2021: could not prepare device for upload: %v", e.Err)
	}
	return fmt.Sprintf("smi2021: could not prepare device for upload: got reply 0x%04x, expected 0x%04x", e.Reply, prepareReply)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ChunkTransferError is returned when sending a chunk frame failed. The
// device is left half programmed and must be power cycled.
type ChunkTransferError struct {
	Index int
	Err   error
}

func (e *ChunkTransferError) Error() string {
	return fmt.Sprintf("smi2021: firmware upload failed at chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkTransferError) Unwrap() error {
	return e.Err
}

// FinalizeAckError is returned when the device did not accept the completion
// acknowledgment.
type FinalizeAckError struct {
	Err error
}

func (e *FinalizeAckError) Error() string {
	return fmt.Sprintf("smi2021: device failed to ack firmware: %v", e.Err)
}

func (e *FinalizeAckError) Unwrap() error {
	return e.Err
}
