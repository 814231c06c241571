// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/autothrottle/pkg/throttle"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// startBridge runs a WebSocket serial bridge. reply is called for every
// frame received and returns the bytes to send back, or nil for silence.
func startBridge(t *testing.T, reply func(frame int) []byte) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for frame := 1; ; frame++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			if data := reply(frame); data != nil {
				if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialBridge(t *testing.T, url string) (Connection, *throttle.Controller) {
	t.Helper()
	conn, err := OpenWebSocketConnection(url, "", "", false, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, throttle.NewController(conn, testThrottleConfig, throttle.WithLogger(zaptest.NewLogger(t)))
}

func TestWebSocketConnection_TimeoutIsRecoverable(t *testing.T) {
	url := startBridge(t, func(frame int) []byte {
		if frame == 1 {
			return nil
		}
		return ackReply(0x01, uint16(frame*100), 12, 40)
	})
	_, ctl := dialBridge(t, url)

	_, err := ctl.Poll()
	require.ErrorIs(t, err, throttle.ErrTransportTimeout)

	status, err := ctl.Poll()
	require.NoError(t, err)
	assert.Equal(t, uint16(200), status.Position)

	status, err = ctl.Poll()
	require.NoError(t, err)
	assert.Equal(t, uint16(300), status.Position)
}

func TestWebSocketConnection_LateReplyIsDiscarded(t *testing.T) {
	url := startBridge(t, func(frame int) []byte {
		if frame == 1 {
			// Answer after the client has given up
			time.Sleep(100 * time.Millisecond)
			return ackReply(0x00, 7, 0, 1)
		}
		return ackReply(0x01, 1200, 12, 40)
	})
	_, ctl := dialBridge(t, url)

	_, err := ctl.Poll()
	require.ErrorIs(t, err, throttle.ErrTransportTimeout)

	// Let the late reply land in the queue
	time.Sleep(200 * time.Millisecond)

	status, err := ctl.Poll()
	require.NoError(t, err)
	assert.Equal(t, uint16(1200), status.Position)
	assert.True(t, status.Engaged)
}

func TestWebSocketConnection_ReadAfterConnectionLoss(t *testing.T) {
	url := startBridge(t, func(frame int) []byte {
		return ackReply(0x01, 500, 12, 40)
	})
	conn, _ := dialBridge(t, url)

	ws := conn.(*WebSocketConnection)
	require.NoError(t, ws.conn.Close())
	<-ws.done

	buf := make([]byte, 16)
	_, err := conn.Read(buf)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
