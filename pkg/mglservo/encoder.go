// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

import "encoding/binary"

// encodeFrame wraps a payload with preamble, length byte and checksums
func encodeFrame(payload []byte) Frame {
	frame := make(Frame, 0, FrameOverhead+len(payload))
	frame = append(frame, Preamble1, Preamble2, uint8(len(payload)))
	frame = append(frame, payload...)

	additive, xor := payloadChecksums(payload)
	return append(frame, additive, xor)
}

// EncodeAssignServoNumber builds the frame that assigns a servo number.
// Payload: 00 00 AA 55, number, bitwise complement of number.
func EncodeAssignServoNumber(servo uint8) Frame {
	payload := make([]byte, 0, assignPayloadSize)
	payload = append(payload, assignHeader[:]...)
	payload = append(payload, servo, servo^0xFF)
	return encodeFrame(payload)
}

// EncodePositionCommand builds a set-position frame, or a status poll when
// cmd is Poll(). The servo always answers with an acknowledgement.
//
// Payload: 01 00, respond flag, options, position (little-endian), 9 reserved
// zero bytes.
func EncodePositionCommand(cmd PositionCommand) Frame {
	payload := make([]byte, positionPayloadSize)
	copy(payload, positionHeader[:])
	payload[2] = respondFlag
	payload[3] = optionsPoll
	if position, ok := cmd.Position(); ok {
		payload[3] = optionsMove
		binary.LittleEndian.PutUint16(payload[4:6], position)
	}
	return encodeFrame(payload)
}
