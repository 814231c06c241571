// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedFrame indicates fewer bytes than the frame layout requires.
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrChecksumMismatch indicates a recomputed checksum differs from the
	// trailing checksum byte.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInvalidPreamble indicates a frame not starting with D5 82.
	ErrInvalidPreamble = errors.New("invalid preamble")
	// ErrLengthMismatch indicates the length byte disagrees with the frame size.
	ErrLengthMismatch = errors.New("length mismatch")
)

// truncated wraps ErrTruncatedFrame with the observed and required sizes
func truncated(got, want int) error {
	return fmt.Errorf("%w: got %d bytes, need %d", ErrTruncatedFrame, got, want)
}

// ChecksumError reports which checksum failed and both values.
type ChecksumError struct {
	Additive bool // false: XOR checksum
	Expected uint8
	Received uint8
}

// Error implements error.
func (e *ChecksumError) Error() string {
	name := "xor"
	if e.Additive {
		name = "additive"
	}
	return fmt.Sprintf("%s checksum mismatch: expected 0x%02X, got 0x%02X", name, e.Expected, e.Received)
}

// Unwrap lets errors.Is match ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// verifyChecksums compares the trailing checksum pair against the payload
func verifyChecksums(payload []byte, additive, xor uint8) error {
	wantAdd, wantXor := payloadChecksums(payload)
	if additive != wantAdd {
		return &ChecksumError{Additive: true, Expected: wantAdd, Received: additive}
	}
	if xor != wantXor {
		return &ChecksumError{Expected: wantXor, Received: xor}
	}
	return nil
}
