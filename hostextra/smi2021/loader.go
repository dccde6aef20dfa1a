// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smi2021

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
)

// State is the state of a Loader.
type State int

// Loader states, in the order they are traversed.
const (
	Idle State = iota
	Preparing
	Transferring
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Transferring:
		return "transferring"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Progress is reported to the callback set with WithProgress.
type Progress struct {
	State State
	// Frame is the number of chunk frames accepted by the device so far.
	Frame int
	// Frames is the total number of chunk frames of the image.
	Frames int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithProgress sets a callback invoked on every state change and after every
// accepted frame. It runs on the uploading goroutine and must return quickly.
func WithProgress(f func(Progress)) LoaderOption {
	return func(l *Loader) {
		l.progress = f
	}
}

// WithLoaderLogger sets the logger used by the Loader.
func WithLoaderLogger(log logrus.FieldLogger) LoaderOption {
	return func(l *Loader) {
		l.log = log
	}
}

// Wire values of the upload protocol.
const (
	request       uint8  = 0x01
	valuePrepare  uint16 = 0x0001
	valueChunk    uint16 = 0x0005
	valueFinalize uint16 = 0x0007
	prepareReply  uint16 = 0x0107
	finalizeAck   uint16 = 0x0007
)

var frameHeader = [HeaderSize]byte{0x05, 0xff}

var errShortTransfer = errors.New("short transfer")

// Loader drives one firmware upload over a Session.
//
// A Loader makes a single attempt and never retries. It borrows the firmware
// only for the duration of Load.
type Loader struct {
	s        Session
	log      logrus.FieldLogger
	progress func(Progress)
	state    State
	frames   int
	// sent is the number of frames accepted during the current Load.
	sent int
}

// NewLoader returns a Loader talking over s.
func NewLoader(s Session, opts ...LoaderOption) *Loader {
	l := &Loader{s: s, log: discard}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current state.
func (l *Loader) State() State {
	return l.state
}

// Load uploads fw to the device.
//
// On success the state is Done and the device is expected to re-enumerate
// with its final identity. On failure the state is Failed and the returned
// error is one of *InvalidImageSizeError, *HandshakeError,
// *ChunkTransferError or *FinalizeAckError.
func (l *Loader) Load(fw []byte) error {
	l.frames = 0
	l.sent = 0
	err := l.load(fw)
	if err != nil {
		l.log.WithError(err).WithField("state", l.state).Error("firmware upload failed")
		l.set(Failed, l.sent)
		return err
	}
	l.set(Done, l.frames)
	return nil
}

func (l *Loader) load(fw []byte) error {
	l.set(Preparing, 0)
	if len(fw) == 0 || len(fw)%ChunkSize != 0 {
		return &InvalidImageSizeError{Size: len(fw)}
	}
	l.frames = len(fw) / ChunkSize
	if err := l.prepare(); err != nil {
		return err
	}

	l.set(Transferring, 0)
	var frame [FrameSize]byte
	copy(frame[:], frameHeader[:])
	for i := 0; i < l.frames; i++ {
		copy(frame[HeaderSize:], fw[i*ChunkSize:(i+1)*ChunkSize])
		if err := l.send(valueChunk, frame[:]); err != nil {
			return &ChunkTransferError{Index: i, Err: err}
		}
		l.sent = i + 1
		l.report(l.sent)
	}

	l.set(Finalizing, l.frames)
	var ack [2]byte
	binary.LittleEndian.PutUint16(ack[:], finalizeAck)
	if err := l.send(valueFinalize, ack[:]); err != nil {
		return &FinalizeAckError{Err: err}
	}
	l.log.WithField("frames", l.frames).Info("firmware uploaded")
	return nil
}

// prepare puts the device in upload mode.
func (l *Loader) prepare() error {
	var reply [2]byte
	n, err := l.s.Control(dirIn|typeVendor|recipientDev, request, valuePrepare, 0, reply[:], Timeout)
	if err != nil {
		return &HandshakeError{Err: err}
	}
	if n != len(reply) {
		return &HandshakeError{Err: errShortTransfer}
	}
	if v := binary.BigEndian.Uint16(reply[:]); v != prepareReply {
		return &HandshakeError{Reply: v}
	}
	l.log.WithField("frames", l.frames).Debug("device ready for upload")
	return nil
}

func (l *Loader) send(val uint16, b []byte) error {
	n, err := l.s.Control(dirOut|typeVendor|recipientDev, request, val, 0, b, Timeout)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errShortTransfer
	}
	return nil
}

func (l *Loader) set(s State, frame int) {
	l.state = s
	l.report(frame)
}

func (l *Loader) report(frame int) {
	if l.progress != nil {
		l.progress(Progress{State: l.state, Frame: frame, Frames: l.frames})
	}
}

// discard is the default logger; the library is silent unless given one.
var discard logrus.FieldLogger = func() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}()
