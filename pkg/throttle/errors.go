// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package throttle

import (
	"errors"
	"fmt"
)

// ErrControllerClosed is returned by commands issued after Close.
var ErrControllerClosed = errors.New("controller closed")

// ErrTransportTimeout indicates the servo sent nothing before the read deadline.
var ErrTransportTimeout = errors.New("transport timeout: no reply from servo")

// TransportError wraps a failure of the underlying byte channel.
type TransportError struct {
	Op  string // "reset", "write" or "read"
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying channel error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
