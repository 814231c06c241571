// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

// AckStatus is the servo state reported in an acknowledgement
type AckStatus struct {
	Position     uint16 `json:"position" cbor:"0,keyasint"`
	Voltage      uint8  `json:"voltage" cbor:"1,keyasint"`
	Torque       uint8  `json:"torque" cbor:"2,keyasint"`
	Engaged      bool   `json:"engaged" cbor:"3,keyasint"`
	Slipping     bool   `json:"slipping" cbor:"4,keyasint"`
	VoltageAlarm bool   `json:"voltage_alarm" cbor:"5,keyasint"`

	// Length is the number of bytes received, for diagnostics
	Length int `json:"ack_length" cbor:"6,keyasint"`
}

// DecodeAck decodes a servo acknowledgement. data must hold at least
// AckFrameSize bytes.
//
// The reported position is stored low byte first at offsets 6-7. No checksum
// is checked here; see VerifyAck.
func DecodeAck(data []byte) (*AckStatus, error) {
	if len(data) < AckFrameSize {
		return nil, truncated(len(data), AckFrameSize)
	}

	flags := data[ackFlagsOffset]
	return &AckStatus{
		Position:     uint16(data[ackPositionHi])*256 + uint16(data[ackPositionLo]),
		Voltage:      data[ackVoltageOffset],
		Torque:       data[ackTorqueOffset],
		Engaged:      flags&AckEngagedMask != 0,
		Slipping:     flags&AckSlippingMask != 0,
		VoltageAlarm: flags&AckVoltageAlarmMask != 0,
		Length:       len(data),
	}, nil
}

// VerifyAck checks the checksum pair trailing an acknowledgement that carries
// one. The reply is taken as header (3), payload, additive and XOR checksums,
// so data must extend at least ChecksumSize bytes past AckFrameSize.
func VerifyAck(data []byte) error {
	if len(data) < AckFrameSize+ChecksumSize {
		return truncated(len(data), AckFrameSize+ChecksumSize)
	}
	n := len(data)
	return verifyChecksums(data[HeaderSize:n-ChecksumSize], data[n-2], data[n-1])
}
