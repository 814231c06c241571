// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package throttle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
)

// Counters is a point-in-time copy of command statistics
type Counters struct {
	StartTime   time.Time
	LastAckTime time.Time

	Commands        uint64
	Acks            uint64
	Timeouts        uint64
	TruncatedFrames uint64
	ChecksumErrors  uint64
	IOErrors        uint64
	OtherErrors     uint64
}

// Errors returns the total number of failed commands
func (c Counters) Errors() uint64 {
	return c.Timeouts + c.TruncatedFrames + c.ChecksumErrors + c.IOErrors + c.OtherErrors
}

// SuccessRate returns the percentage of commands that produced an ack
func (c Counters) SuccessRate() float64 {
	if c.Commands == 0 {
		return 0
	}
	return float64(c.Acks) * 100.0 / float64(c.Commands)
}

// CommandRate returns commands per second since StartTime
func (c Counters) CommandRate() float64 {
	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(c.Commands) / elapsed
}

// Statistics tracks command outcomes. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{c: Counters{StartTime: time.Now()}}
}

// Record classifies the outcome of one command
func (s *Statistics) Record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Commands++

	var transportErr *TransportError
	switch {
	case err == nil:
		s.c.Acks++
		s.c.LastAckTime = time.Now()
	case errors.Is(err, ErrTransportTimeout):
		s.c.Timeouts++
	case errors.Is(err, mglservo.ErrTruncatedFrame):
		s.c.TruncatedFrames++
	case errors.Is(err, mglservo.ErrChecksumMismatch):
		s.c.ChecksumErrors++
	case errors.As(err, &transportErr):
		s.c.IOErrors++
	default:
		s.c.OtherErrors++
	}
}

// Snapshot returns a copy of the current counters
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = Counters{StartTime: time.Now()}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()
	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Commands:        %8d\n", c.Commands)
	result += fmt.Sprintf("Acks:            %8d (%.1f%%)\n", c.Acks, c.SuccessRate())

	if c.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", c.Timeouts)
	}
	if c.TruncatedFrames > 0 {
		result += fmt.Sprintf("Truncated Acks:  %8d\n", c.TruncatedFrames)
	}
	if c.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", c.ChecksumErrors)
	}
	if c.IOErrors > 0 {
		result += fmt.Sprintf("I/O Errors:      %8d\n", c.IOErrors)
	}
	if c.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d\n", c.OtherErrors)
	}

	result += fmt.Sprintf("Command Rate:    %8.1f cmds/sec\n", c.CommandRate())
	result += "================================\n"

	return result
}
