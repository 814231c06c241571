// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

import (
	"fmt"
	"strings"
)

// FormatHex renders bytes as a space separated 0xNN list
func FormatHex(data []byte) string {
	var s strings.Builder
	for i, b := range data {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "0x%02X", b)
	}
	return s.String()
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(t MessageType) string {
	switch t {
	case MsgAssignServoNumber:
		return "ASSIGN_SERVO_NUMBER"
	case MsgPositionCommand:
		return "POSITION_COMMAND"
	default:
		return "UNKNOWN"
	}
}

// String implements fmt.Stringer
func (t MessageType) String() string {
	return FormatMessageType(t)
}

// FormatFrame formats an outbound frame into a human-readable string
func FormatFrame(f Frame) string {
	additive, xor := f.Checksums()
	result := fmt.Sprintf("%s len=%d chk=0x%02X/0x%02X\n", FormatMessageType(f.Type()), f.Length(), additive, xor)

	switch f.Type() {
	case MsgAssignServoNumber:
		servo, _ := f.ServoNumber()
		result += fmt.Sprintf("  Servo number: %d\n", servo)
	case MsgPositionCommand:
		cmd, _ := f.Command()
		result += fmt.Sprintf("  Command: %s\n", cmd)
	}

	return result + fmt.Sprintf("  Bytes: %s\n", FormatHex(f))
}

// FormatAck formats a decoded acknowledgement into a human-readable string
func FormatAck(s *AckStatus) string {
	return fmt.Sprintf("  Position: %d\n  Voltage: %d\n  Torque: %d\n  Engaged: %s, Slipping: %s, Voltage alarm: %s\n  Ack length: %d bytes\n",
		s.Position, s.Voltage, s.Torque,
		formatFlag(s.Engaged), formatFlag(s.Slipping), formatFlag(s.VoltageAlarm),
		s.Length)
}

func formatFlag(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
