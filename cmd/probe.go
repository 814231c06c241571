// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/Thermoquad/autothrottle/pkg/throttle"
	"github.com/spf13/cobra"
)

// Probe exit codes
const (
	probeExitAck             = 0
	probeExitTimeout         = 1
	probeExitConnectionError = 2
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the link by polling until the servo answers",
	Long: `Poll the servo repeatedly until a valid acknowledgement arrives or the
timeout is reached.

Silent polls and damaged replies are retried; an I/O failure on the
connection stops the probe.

Exit codes:
  0 - Acknowledgement received before timeout
  1 - Timeout reached without a valid acknowledgement
  2 - Connection error

Useful for checking wiring, baud rate and the WebSocket serial bridge.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for an acknowledgement")
}

func runProbe(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(probeExitConnectionError)
	}

	fmt.Printf("Autothrottle - Probe\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Servo: %d\n", s.cfg.ServoNumber)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Polling for acknowledgement...\n\n")

	code := probe(s.controller, time.Duration(probeTimeout)*time.Second, os.Stdout, os.Stderr)
	s.Close()
	os.Exit(code)
	return nil
}

// probe polls until an acknowledgement, a connection failure or the deadline,
// and returns the process exit code.
func probe(ctl *throttle.Controller, timeout time.Duration, stdout, stderr io.Writer) int {
	deadline := time.Now().Add(timeout)
	attempts := 0
	var lastErr error

	for time.Now().Before(deadline) {
		attempts++
		status, err := ctl.Poll()
		if err == nil {
			fmt.Fprintf(stdout, "SUCCESS: Received acknowledgement after %d poll(s)\n", attempts)
			fmt.Fprint(stdout, mglservo.FormatAck(status))
			return probeExitAck
		}

		var transportErr *throttle.TransportError
		if errors.As(err, &transportErr) {
			fmt.Fprintf(stderr, "Connection error: %v\n", err)
			return probeExitConnectionError
		}
		lastErr = err
	}

	fmt.Fprintf(stderr, "TIMEOUT: No valid acknowledgement within %s (%d polls", timeout, attempts)
	if lastErr != nil {
		fmt.Fprintf(stderr, ", last error: %v", lastErr)
	}
	fmt.Fprintln(stderr, ")")
	return probeExitTimeout
}
