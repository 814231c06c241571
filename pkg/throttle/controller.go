// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package throttle drives a single throttle servo over a Transport using the
// mglservo protocol.
package throttle

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"go.uber.org/zap"
)

// Controller issues commands to one servo and returns its decoded status.
//
// Commands are strictly sequential: a frame is written, then the reply is
// read (or times out) before the next frame may be sent. Concurrent callers
// are serialised. The controller never retries.
type Controller struct {
	transport Transport
	cfg       Config
	logger    *zap.Logger
	stats     *Statistics

	mu     sync.Mutex
	closed bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used for frame tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStatistics records command outcomes into stats
func WithStatistics(stats *Statistics) Option {
	return func(c *Controller) {
		c.stats = stats
	}
}

// NewController creates a controller. cfg is copied.
func NewController(t Transport, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		transport: t,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns a copy of the controller configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// Statistics returns the attached statistics tracker, or nil
func (c *Controller) Statistics() *Statistics {
	return c.stats
}

// Command sends a position command (or poll) and returns the servo's
// acknowledgement.
//
// Errors: ErrTransportTimeout when nothing arrives, *TransportError on
// channel failure, mglservo.ErrTruncatedFrame on a short reply and
// mglservo.ErrChecksumMismatch when ack verification is enabled and fails.
func (c *Controller) Command(cmd mglservo.PositionCommand) (*mglservo.AckStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrControllerClosed
	}

	status, err := c.command(cmd)
	if c.stats != nil {
		c.stats.Record(err)
	}
	if err != nil {
		c.logger.Debug("command failed", zap.Stringer("command", cmd), zap.Error(err))
	}
	return status, err
}

func (c *Controller) command(cmd mglservo.PositionCommand) (*mglservo.AckStatus, error) {
	if err := c.resetInput(); err != nil {
		return nil, err
	}
	if err := c.send(mglservo.EncodePositionCommand(cmd)); err != nil {
		return nil, err
	}

	reply, err := c.readAck()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ack received",
		zap.Int("length", len(reply)),
		zap.String("bytes", mglservo.FormatHex(reply)))

	if c.cfg.VerifyAck {
		if err := mglservo.VerifyAck(reply); err != nil {
			return nil, fmt.Errorf("ack verification: %w", err)
		}
	}

	status, err := mglservo.DecodeAck(reply)
	if err != nil {
		return nil, fmt.Errorf("ack decode: %w", err)
	}
	return status, nil
}

// Poll requests servo status without motion
func (c *Controller) Poll() (*mglservo.AckStatus, error) {
	return c.Command(mglservo.Poll())
}

// MoveToFull commands the configured full-throttle position
func (c *Controller) MoveToFull() (*mglservo.AckStatus, error) {
	return c.Command(mglservo.MoveTo(c.cfg.FullPosition))
}

// AssignServoNumber sends the configured servo number to the servo. The
// servo does not acknowledge this frame.
func (c *Controller) AssignServoNumber() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}
	return c.send(mglservo.EncodeAssignServoNumber(c.cfg.ServoNumber))
}

// Close waits for an in-flight command to finish and rejects later ones
// with ErrControllerClosed. The transport is left open for its owner to
// close.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// OverTorque reports whether the status torque exceeds the configured limit
func (c *Controller) OverTorque(s *mglservo.AckStatus) bool {
	return s != nil && s.Torque > c.cfg.OverTorque
}

// resetInput discards stale input when the transport supports it
func (c *Controller) resetInput() error {
	r, ok := c.transport.(InputResetter)
	if !ok {
		return nil
	}
	if err := r.ResetInputBuffer(); err != nil {
		return &TransportError{Op: "reset", Err: err}
	}
	return nil
}

// send writes one frame
func (c *Controller) send(frame mglservo.Frame) error {
	c.logger.Debug("send frame",
		zap.Stringer("type", frame.Type()),
		zap.String("bytes", mglservo.FormatHex(frame)))

	n, err := c.transport.Write(frame)
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if n != len(frame) {
		return &TransportError{Op: "write", Err: io.ErrShortWrite}
	}
	return nil
}

// ackSize is the number of bytes read per acknowledgement
func (c *Controller) ackSize() int {
	if c.cfg.VerifyAck {
		return mglservo.AckFrameSize + mglservo.ChecksumSize
	}
	return mglservo.AckFrameSize
}

// readAck reads up to ackSize bytes, stopping early at a read timeout.
// A timeout before the first byte is ErrTransportTimeout; a partial reply
// is returned as-is for the decoder to reject.
func (c *Controller) readAck() ([]byte, error) {
	buf := make([]byte, c.ackSize())
	n := 0
	for n < len(buf) {
		m, err := c.transport.Read(buf[n:])
		n += m
		if err != nil {
			if isTimeout(err) {
				break
			}
			if errors.Is(err, io.EOF) && n > 0 {
				break
			}
			return nil, &TransportError{Op: "read", Err: err}
		}
		if m == 0 {
			break
		}
	}

	if n == 0 {
		return nil, ErrTransportTimeout
	}
	return buf[:n], nil
}
