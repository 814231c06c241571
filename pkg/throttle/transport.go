// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package throttle

import (
	"errors"
	"io"
	"net"
	"os"
)

// Transport is the half-duplex byte channel to the servo.
//
// A Read that returns (0, nil) is a read timeout, which is how serial ports
// report an expired read deadline. Errors satisfying net.Error with Timeout()
// are treated the same way.
type Transport interface {
	io.Reader
	io.Writer
}

// InputResetter is implemented by transports that can discard bytes received
// but not yet read. The controller resets input before every frame so a
// reply that arrived after its deadline cannot prefix the next ack.
type InputResetter interface {
	ResetInputBuffer() error
}

// isTimeout reports whether err is a read deadline expiry
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
