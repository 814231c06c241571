// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mglservo implements the serial protocol spoken by MGL-style EFIS
// throttle servos.
//
// The EFIS sends fixed-layout command frames (preamble, length byte, payload,
// two single-byte checksums) and the servo answers with a short
// acknowledgement carrying position, voltage, torque and status flags. This
// package provides frame encoding, checksum computation, acknowledgement
// decoding and human-readable formatting. It performs no I/O.
package mglservo

// Protocol framing bytes
const (
	Preamble1 = 0xD5
	Preamble2 = 0x82
)

// Frame layout
const (
	HeaderSize    = 3 // preamble (2) + length (1)
	ChecksumSize  = 2 // additive + XOR
	FrameOverhead = HeaderSize + ChecksumSize
)

// Checksum seeds, fixed by protocol convention
const (
	SeedAdditive = 0xAA
	SeedXOR      = 0x55
)

// Assign-servo-number payload: 4 header bytes + number + complement
const (
	assignPayloadSize = 6
)

var assignHeader = [4]byte{0x00, 0x00, 0xAA, 0x55}

// Position command payload: header (2) + respond (1) + options (1) +
// position (2) + reserved fill (9)
const (
	positionPayloadSize = 15
	positionFillSize    = 9

	respondFlag = 0x01

	optionsPoll = 0x00
	optionsMove = 0x01 // hold torque measurement, do not set torque
)

var positionHeader = [2]byte{0x01, 0x00}

// Acknowledgement layout (offsets into the reply)
const (
	AckFrameSize = 10

	ackFlagsOffset   = 5
	ackPositionLo    = 6
	ackPositionHi    = 7
	ackVoltageOffset = 8
	ackTorqueOffset  = 9
)

// Acknowledgement status flag masks
const (
	AckEngagedMask  = 0x01
	AckSlippingMask = 0x02
	// AckVoltageAlarmMask overlaps both bits above. Device documentation
	// has not confirmed a distinct alarm bit.
	AckVoltageAlarmMask = 0x03
)

// MessageType identifies an outbound command by its payload header
type MessageType int

// Message type values
const (
	MsgUnknown MessageType = iota
	MsgAssignServoNumber
	MsgPositionCommand
)
