// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/spf13/cobra"
)

var pollFormat string

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Read servo status without moving it",
	Long: `Send a single poll command and print the servo's acknowledgement.

The poll frame carries the respond flag but no motion, so the servo reports
its current position, supply voltage, torque and status flags.

Output formats:
  text - human-readable summary (default)
  json - indented JSON object
  cbor - raw CBOR encoded status with integer keys`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().StringVarP(&pollFormat, "format", "f", formatText, "Output format: text, json or cbor")
}

func runPoll(cmd *cobra.Command, args []string) error {
	if err := validateFormat(pollFormat); err != nil {
		return err
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	status, err := s.controller.Poll()
	if err != nil {
		return err
	}

	return writeStatus(os.Stdout, pollFormat, mglservo.Poll(), status, s.controller.OverTorque(status))
}
