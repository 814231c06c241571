// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Frame is a complete outbound wire frame:
// preamble (D5 82), length, payload, additive checksum, XOR checksum.
// The length byte counts the payload bytes only.
type Frame []byte

// Length returns the frame's length byte
func (f Frame) Length() uint8 {
	if len(f) < HeaderSize {
		return 0
	}
	return f[2]
}

// Payload returns the command-specific bytes between the length byte and
// the checksums
func (f Frame) Payload() []byte {
	if len(f) < FrameOverhead {
		return nil
	}
	return f[HeaderSize : len(f)-ChecksumSize]
}

// Checksums returns the trailing additive and XOR checksum bytes
func (f Frame) Checksums() (additive, xor uint8) {
	if len(f) < FrameOverhead {
		return 0, 0
	}
	return f[len(f)-2], f[len(f)-1]
}

// Type identifies the command carried by the frame
func (f Frame) Type() MessageType {
	payload := f.Payload()
	switch {
	case len(payload) == assignPayloadSize && bytes.HasPrefix(payload, assignHeader[:]):
		return MsgAssignServoNumber
	case len(payload) == positionPayloadSize && bytes.HasPrefix(payload, positionHeader[:]):
		return MsgPositionCommand
	}
	return MsgUnknown
}

// ServoNumber returns the servo number of an assign-servo-number frame
func (f Frame) ServoNumber() (uint8, bool) {
	if f.Type() != MsgAssignServoNumber {
		return 0, false
	}
	return f.Payload()[len(assignHeader)], true
}

// Command returns the position command carried by a position frame
func (f Frame) Command() (PositionCommand, bool) {
	if f.Type() != MsgPositionCommand {
		return PositionCommand{}, false
	}
	payload := f.Payload()
	if payload[3] == optionsPoll {
		return Poll(), true
	}
	return MoveTo(binary.LittleEndian.Uint16(payload[4:6])), true
}

// ParseFrame validates data as a single outbound frame: preamble, length
// byte and both checksums. The returned Frame does not alias data.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < FrameOverhead {
		return nil, truncated(len(data), FrameOverhead)
	}
	if data[0] != Preamble1 || data[1] != Preamble2 {
		return nil, fmt.Errorf("%w: 0x%02X 0x%02X", ErrInvalidPreamble, data[0], data[1])
	}
	length := int(data[2])
	total := FrameOverhead + length
	if len(data) < total {
		return nil, truncated(len(data), total)
	}
	if len(data) > total {
		return nil, fmt.Errorf("%w: length byte %d, got %d payload bytes", ErrLengthMismatch, length, len(data)-FrameOverhead)
	}

	f := make(Frame, total)
	copy(f, data)

	additive, xor := f.Checksums()
	if err := verifyChecksums(f.Payload(), additive, xor); err != nil {
		return nil, err
	}
	return f, nil
}
