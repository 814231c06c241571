// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"testing"

	"github.com/Thermoquad/autothrottle/pkg/throttle"
	"go.uber.org/zap/zaptest"
)

// fakeServo answers every written frame with reply. A nil reply behaves like
// a silent servo whose reads time out. readErr fails every read.
type fakeServo struct {
	reply   []byte
	readErr error
	writes  int
	unread  []byte
}

func (f *fakeServo) Write(p []byte) (int, error) {
	f.writes++
	f.unread = append([]byte(nil), f.reply...)
	return len(p), nil
}

func (f *fakeServo) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	n := copy(p, f.unread)
	f.unread = f.unread[n:]
	return n, nil
}

var testThrottleConfig = throttle.Config{
	FullPosition:  1800,
	OverTorque:    60,
	ServoNumber:   1,
	ReadTimeoutMs: 100,
}

// ackReply builds a 10-byte acknowledgement
func ackReply(flags byte, position uint16, voltage, torque uint8) []byte {
	return []byte{0xD5, 0x82, 0x07, 0x00, 0x00, flags, byte(position), byte(position >> 8), voltage, torque}
}

func newTestController(t *testing.T, servo *fakeServo) *throttle.Controller {
	t.Helper()
	return throttle.NewController(servo, testThrottleConfig,
		throttle.WithLogger(zaptest.NewLogger(t)),
		throttle.WithStatistics(throttle.NewStatistics()),
	)
}
