// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package throttle

import (
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type readResult struct {
	data []byte
	err  error
}

// scriptedTransport records writes and replays reads in order. Once the
// script is exhausted every Read reports a timeout (0, nil).
type scriptedTransport struct {
	written  []byte
	reads    []readResult
	writeErr error
	shortBy  int
}

func (s *scriptedTransport) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	n := len(p) - s.shortBy
	s.written = append(s.written, p[:n]...)
	return n, nil
}

func (s *scriptedTransport) Read(p []byte) (int, error) {
	if len(s.reads) == 0 {
		return 0, nil
	}
	r := &s.reads[0]
	n := copy(p, r.data)
	r.data = r.data[n:]
	if len(r.data) == 0 {
		err := r.err
		s.reads = s.reads[1:]
		return n, err
	}
	return n, nil
}

// ackBytes builds a 10-byte acknowledgement
func ackBytes(flags byte, position uint16, voltage, torque uint8) []byte {
	return []byte{0xD5, 0x82, 0x07, 0x00, 0x00, flags, byte(position), byte(position >> 8), voltage, torque}
}

var testConfig = Config{FullPosition: 1800, OverTorque: 60, ServoNumber: 1, ReadTimeoutMs: 100}

func TestController_MoveTo_EndToEnd(t *testing.T) {
	tr := &scriptedTransport{reads: []readResult{{data: ackBytes(0x01, 1200, 12, 40)}}}
	stats := NewStatistics()
	c := NewController(tr, testConfig, WithLogger(zaptest.NewLogger(t)), WithStatistics(stats))

	status, err := c.Command(mglservo.MoveTo(1200))
	require.NoError(t, err)

	require.Equal(t, []byte{
		0xD5, 0x82, 0x0F,
		0x01, 0x00, 0x01, 0x01, 0xB0, 0x04,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x61, 0xE0,
	}, tr.written)

	require.Equal(t, mglservo.AckStatus{
		Position:     1200,
		Voltage:      12,
		Torque:       40,
		Engaged:      true,
		Slipping:     false,
		VoltageAlarm: true,
		Length:       10,
	}, *status)

	counters := stats.Snapshot()
	assert.EqualValues(t, 1, counters.Commands)
	assert.EqualValues(t, 1, counters.Acks)
	assert.False(t, counters.LastAckTime.IsZero())
}

func TestController_Poll(t *testing.T) {
	tr := &scriptedTransport{reads: []readResult{{data: ackBytes(0x00, 333, 14, 2)}}}
	c := NewController(tr, testConfig)

	status, err := c.Poll()
	require.NoError(t, err)
	assert.Equal(t, []byte(mglservo.EncodePositionCommand(mglservo.Poll())), tr.written)
	assert.EqualValues(t, 333, status.Position)
	assert.False(t, status.Engaged)
}

func TestController_MoveToFull(t *testing.T) {
	tr := &scriptedTransport{reads: []readResult{{data: ackBytes(0x01, 1800, 12, 10)}}}
	c := NewController(tr, testConfig)

	_, err := c.MoveToFull()
	require.NoError(t, err)

	cmd, ok := mglservo.Frame(tr.written).Command()
	require.True(t, ok)
	pos, isMove := cmd.Position()
	require.True(t, isMove)
	assert.EqualValues(t, 1800, pos)
}

func TestController_ChunkedReply(t *testing.T) {
	ack := ackBytes(0x02, 0xABCD, 11, 5)
	tr := &scriptedTransport{reads: []readResult{
		{data: ack[:3]},
		{data: ack[3:4]},
		{data: ack[4:]},
	}}
	c := NewController(tr, testConfig)

	status, err := c.Poll()
	require.NoError(t, err)
	assert.EqualValues(t, 0xABCD, status.Position)
	assert.True(t, status.Slipping)
}

func TestController_Errors(t *testing.T) {
	tests := []struct {
		name      string
		transport *scriptedTransport
		check     func(t *testing.T, err error)
		counter   func(c Counters) uint64
	}{
		{
			name:      "timeout before any byte",
			transport: &scriptedTransport{},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrTransportTimeout)
			},
			counter: func(c Counters) uint64 { return c.Timeouts },
		},
		{
			name:      "deadline error before any byte",
			transport: &scriptedTransport{reads: []readResult{{err: os.ErrDeadlineExceeded}}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrTransportTimeout)
			},
			counter: func(c Counters) uint64 { return c.Timeouts },
		},
		{
			name:      "partial reply then timeout",
			transport: &scriptedTransport{reads: []readResult{{data: ackBytes(0, 1, 2, 3)[:6]}}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, mglservo.ErrTruncatedFrame)
			},
			counter: func(c Counters) uint64 { return c.TruncatedFrames },
		},
		{
			name:      "partial reply then EOF",
			transport: &scriptedTransport{reads: []readResult{{data: ackBytes(0, 1, 2, 3)[:8], err: io.EOF}}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, mglservo.ErrTruncatedFrame)
			},
			counter: func(c Counters) uint64 { return c.TruncatedFrames },
		},
		{
			name:      "read failure",
			transport: &scriptedTransport{reads: []readResult{{err: io.ErrUnexpectedEOF}}},
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "read", te.Op)
				assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			},
			counter: func(c Counters) uint64 { return c.IOErrors },
		},
		{
			name:      "write failure",
			transport: &scriptedTransport{writeErr: errors.New("port closed")},
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "write", te.Op)
				assert.Contains(t, err.Error(), "port closed")
			},
			counter: func(c Counters) uint64 { return c.IOErrors },
		},
		{
			name:      "short write",
			transport: &scriptedTransport{shortBy: 1},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, io.ErrShortWrite)
			},
			counter: func(c Counters) uint64 { return c.IOErrors },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := NewStatistics()
			c := NewController(tt.transport, testConfig, WithStatistics(stats))

			status, err := c.Command(mglservo.MoveTo(100))
			require.Error(t, err)
			assert.Nil(t, status)
			tt.check(t, err)

			counters := stats.Snapshot()
			assert.EqualValues(t, 1, tt.counter(counters))
			assert.EqualValues(t, 0, counters.Acks)
		})
	}
}

func TestController_VerifyAck(t *testing.T) {
	cfg := testConfig
	cfg.VerifyAck = true

	good := []byte{0xD5, 0x82, 0x07, 0x10, 0x20, 0x01, 0xB0, 0x04, 0x0C, 0x28, 0xC3, 0xF4}

	t.Run("valid checksums", func(t *testing.T) {
		tr := &scriptedTransport{reads: []readResult{{data: good}}}
		status, err := NewController(tr, cfg).Poll()
		require.NoError(t, err)
		assert.EqualValues(t, 1200, status.Position)
		assert.Equal(t, 12, status.Length)
	})

	t.Run("corrupted reply", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[9] = 0x29
		tr := &scriptedTransport{reads: []readResult{{data: bad}}}
		stats := NewStatistics()
		_, err := NewController(tr, cfg, WithStatistics(stats)).Poll()
		require.ErrorIs(t, err, mglservo.ErrChecksumMismatch)
		assert.EqualValues(t, 1, stats.Snapshot().ChecksumErrors)
	})

	t.Run("reply without checksums", func(t *testing.T) {
		tr := &scriptedTransport{reads: []readResult{{data: good[:mglservo.AckFrameSize]}}}
		_, err := NewController(tr, cfg).Poll()
		require.ErrorIs(t, err, mglservo.ErrTruncatedFrame)
	})
}

func TestController_AssignServoNumber(t *testing.T) {
	cfg := testConfig
	cfg.ServoNumber = 4
	tr := &scriptedTransport{reads: []readResult{{data: []byte{0xEE}}}}
	c := NewController(tr, cfg)

	require.NoError(t, c.AssignServoNumber())
	assert.Equal(t, []byte(mglservo.EncodeAssignServoNumber(4)), tr.written)
	// nothing is read for an assignment
	assert.Len(t, tr.reads, 1)
}

func TestController_OverTorque(t *testing.T) {
	c := NewController(&scriptedTransport{}, testConfig)

	assert.False(t, c.OverTorque(nil))
	assert.False(t, c.OverTorque(&mglservo.AckStatus{Torque: 60}))
	assert.True(t, c.OverTorque(&mglservo.AckStatus{Torque: 61}))
}

func TestController_ConfigIsCopied(t *testing.T) {
	cfg := testConfig
	c := NewController(&scriptedTransport{}, cfg)
	cfg.FullPosition = 1

	assert.EqualValues(t, 1800, c.Config().FullPosition)
	assert.Nil(t, c.Statistics())
}

// echoTransport answers every frame with one ack and flags overlapping
// commands.
type echoTransport struct {
	pending  []byte
	overlaps int
	frames   int
}

func (e *echoTransport) Write(p []byte) (int, error) {
	if len(e.pending) > 0 {
		e.overlaps++
	}
	e.frames++
	e.pending = ackBytes(0x01, uint16(e.frames), 12, 1)
	return len(p), nil
}

func (e *echoTransport) Read(p []byte) (int, error) {
	n := copy(p, e.pending)
	e.pending = e.pending[n:]
	return n, nil
}

func TestController_SequentialUnderConcurrency(t *testing.T) {
	tr := &echoTransport{}
	c := NewController(tr, testConfig)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(pos uint16) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := c.Command(mglservo.MoveTo(pos))
				assert.NoError(t, err)
			}
		}(uint16(i * 100))
	}
	wg.Wait()

	assert.Equal(t, 200, tr.frames)
	assert.Zero(t, tr.overlaps)
}

// lineTransport models a serial line with an input buffer. Each written frame
// queues the next reply; reads drain the buffer and time out when it is empty.
type lineTransport struct {
	input   []byte
	replies [][]byte
	resets  int
}

func (l *lineTransport) Write(p []byte) (int, error) {
	if len(l.replies) > 0 {
		l.input = append(l.input, l.replies[0]...)
		l.replies = l.replies[1:]
	}
	return len(p), nil
}

func (l *lineTransport) Read(p []byte) (int, error) {
	n := copy(p, l.input)
	l.input = l.input[n:]
	return n, nil
}

func (l *lineTransport) ResetInputBuffer() error {
	l.resets++
	l.input = nil
	return nil
}

func TestController_LateReplyDoesNotPrefixNextAck(t *testing.T) {
	first := ackBytes(0x00, 7, 0, 1)
	tr := &lineTransport{replies: [][]byte{
		first[:6],
		ackBytes(0x01, 1200, 12, 40),
	}}
	c := NewController(tr, testConfig, WithLogger(zaptest.NewLogger(t)))

	_, err := c.Poll()
	require.ErrorIs(t, err, mglservo.ErrTruncatedFrame)

	// The rest of the first reply arrives after its deadline
	tr.input = append(tr.input, first[6:]...)

	status, err := c.Command(mglservo.MoveTo(1200))
	require.NoError(t, err)
	assert.Equal(t, uint16(1200), status.Position)
	assert.Equal(t, uint8(40), status.Torque)
	assert.True(t, status.Engaged)
	assert.Equal(t, 2, tr.resets)
}

type failingReset struct {
	scriptedTransport
}

func (f *failingReset) ResetInputBuffer() error {
	return errors.New("port gone")
}

func TestController_ResetFailure(t *testing.T) {
	tr := &failingReset{}
	c := NewController(tr, testConfig)

	_, err := c.Poll()
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "reset", transportErr.Op)
	assert.Empty(t, tr.written, "nothing is sent after a failed reset")
}

// blockingTransport holds every read until release is closed
type blockingTransport struct {
	reading chan struct{}
	release chan struct{}
	writes  int
}

func (b *blockingTransport) Write(p []byte) (int, error) {
	b.writes++
	return len(p), nil
}

func (b *blockingTransport) Read(p []byte) (int, error) {
	close(b.reading)
	<-b.release
	return copy(p, ackBytes(0x01, 300, 12, 5)), nil
}

func TestController_CloseWaitsForInFlightCommand(t *testing.T) {
	tr := &blockingTransport{reading: make(chan struct{}), release: make(chan struct{})}
	stats := NewStatistics()
	c := NewController(tr, testConfig, WithStatistics(stats))

	result := make(chan error, 1)
	go func() {
		_, err := c.Poll()
		result <- err
	}()
	<-tr.reading

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a command was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(tr.release)
	require.NoError(t, <-result)
	<-closed

	_, err := c.Poll()
	assert.ErrorIs(t, err, ErrControllerClosed)
	assert.ErrorIs(t, c.AssignServoNumber(), ErrControllerClosed)
	assert.Equal(t, 1, tr.writes)
	assert.EqualValues(t, 1, stats.Snapshot().Commands)
}
